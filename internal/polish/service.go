package polish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-notes/inkwell/internal/metrics"
	"github.com/inkwell-notes/inkwell/internal/notify"
)

// Generator is the upstream call the orchestrator makes once per admitted
// request. Satisfied by *Client; tests substitute a local server or a stub.
type Generator interface {
	Generate(ctx context.Context, content string, style Style, instruction string) ([]byte, error)
}

// Service orchestrates a polish request end to end: gate, generate, normalize,
// settle. The phases are strictly ordered and the debit happens only after the
// response normalized, so a failed generation never consumes quota.
type Service struct {
	store    Store
	client   Generator
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(store Store, client Generator, notifier notify.Notifier) *Service {
	return &Service{
		store:    store,
		client:   client,
		notifier: notifier,
		now:      time.Now,
	}
}

// Request is one polish invocation.
type Request struct {
	Content     string `json:"content" validate:"required"`
	Style       Style  `json:"style" validate:"required"`
	Instruction string `json:"instruction"`
}

// Response carries the polished text plus the post-settlement quota view so
// the client can refresh its counter display without a second round trip.
type Response struct {
	Text   string `json:"text"`
	Fund   Fund   `json:"fund"`
	Usage  Usage  `json:"usage"`
	Status Status `json:"quota"`
}

// admit resets the ledger's daily window and runs the gate.
func (s *Service) admit(ctx context.Context, userID uuid.UUID) (*Ledger, Fund, error) {
	ledger, err := s.store.ResetIfStale(ctx, userID, Today(s.now()))
	if err != nil {
		return nil, "", err
	}
	fund, err := Decide(*ledger, FreeDailyLimit)
	if err != nil {
		return nil, "", err
	}
	return ledger, fund, nil
}

// Polish runs the full pipeline. On a concurrent ledger update during
// settlement it re-admits and retries the settlement exactly once; the
// upstream call is never repeated, so the user is billed for the generation
// that actually ran or not at all.
func (s *Service) Polish(ctx context.Context, userID uuid.UUID, req Request) (*Response, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyContent
	}
	if !req.Style.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStyle, req.Style)
	}

	ledger, fund, err := s.admit(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPaymentRequired) {
			metrics.PolishRequestsTotal.WithLabelValues("denied").Inc()
		}
		return nil, err
	}

	raw, err := s.client.Generate(ctx, req.Content, req.Style, req.Instruction)
	if err != nil {
		metrics.PolishRequestsTotal.WithLabelValues("upstream_error").Inc()
		return nil, err
	}

	result, err := Normalize(raw)
	if err != nil {
		metrics.PolishRequestsTotal.WithLabelValues("schema_error").Inc()
		return nil, err
	}

	updated, crossed, err := s.store.Settle(ctx, ledger, fund, result.Usage)
	if errors.Is(err, ErrStaleLedger) {
		// Someone else settled between our read and write. Re-run the gate
		// against the fresh ledger; the generation already happened, so only
		// the accounting is retried.
		ledger, fund, err = s.admit(ctx, userID)
		if err != nil {
			return nil, err
		}
		updated, crossed, err = s.store.Settle(ctx, ledger, fund, result.Usage)
	}
	if err != nil {
		metrics.PolishRequestsTotal.WithLabelValues("settlement_error").Inc()
		return nil, fmt.Errorf("recording usage: %w", err)
	}

	if crossed {
		s.fireAlert(ctx, updated)
	}

	metrics.PolishRequestsTotal.WithLabelValues("success").Inc()
	metrics.PolishTokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.PolishTokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))

	return &Response{
		Text:   result.Text,
		Fund:   fund,
		Usage:  result.Usage,
		Status: statusOf(updated),
	}, nil
}

// fireAlert publishes the one-time threshold notification. The flag is already
// persisted, so a delivery failure is logged and swallowed rather than failing
// the request or re-arming the alert.
func (s *Service) fireAlert(ctx context.Context, l *Ledger) {
	metrics.UsageAlertsTotal.Inc()
	alert := notify.UsageAlert{
		UserID:           l.UserID,
		CumulativeTokens: l.CumulativeTokens,
		Threshold:        TokenAlertThreshold,
		OccurredAt:       s.now().UTC(),
	}
	if err := s.notifier.PublishUsageAlert(ctx, alert); err != nil {
		slog.Error("publishing usage alert", "user_id", l.UserID, "error", err)
	}
}

// Quota returns the identity's current quota view, resetting the daily window
// first so the free counter is never reported against a past day.
func (s *Service) Quota(ctx context.Context, userID uuid.UUID) (*Status, error) {
	ledger, err := s.store.ResetIfStale(ctx, userID, Today(s.now()))
	if err != nil {
		return nil, err
	}
	st := statusOf(ledger)
	return &st, nil
}

// TopUp credits purchased generations onto the identity's balance.
func (s *Service) TopUp(ctx context.Context, userID uuid.UUID, credits int) (*Status, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("credits must be positive, got %d", credits)
	}
	ledger, err := s.store.AddBalance(ctx, userID, Today(s.now()), credits)
	if err != nil {
		return nil, err
	}
	st := statusOf(ledger)
	return &st, nil
}

func statusOf(l *Ledger) Status {
	return Status{
		FreeUsedToday:    l.FreeUsedToday,
		FreeDailyLimit:   FreeDailyLimit,
		Balance:          l.Balance,
		CumulativeTokens: l.CumulativeTokens,
	}
}
