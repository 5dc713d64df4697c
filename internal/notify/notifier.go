package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UsageAlert signals that an identity crossed the lifetime token threshold.
// It is emitted at most once per identity.
type UsageAlert struct {
	UserID           uuid.UUID `json:"user_id"`
	CumulativeTokens int64     `json:"cumulative_tokens"`
	Threshold        int64     `json:"threshold"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Notifier delivers fire-and-forget usage alerts. Delivery failures must not
// fail the request that triggered the alert; callers log and move on.
type Notifier interface {
	PublishUsageAlert(ctx context.Context, alert UsageAlert) error
}

// LogNotifier writes alerts to the application log. It is the fallback when
// no NATS URL is configured.
type LogNotifier struct{}

func (LogNotifier) PublishUsageAlert(_ context.Context, alert UsageAlert) error {
	slog.Warn("usage alert: token threshold crossed",
		"user_id", alert.UserID,
		"cumulative_tokens", alert.CumulativeTokens,
		"threshold", alert.Threshold,
	)
	return nil
}
