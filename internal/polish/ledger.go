package polish

import (
	"time"

	"github.com/google/uuid"
)

const (
	// FreeDailyLimit is the number of generations an identity may run per
	// UTC calendar day at no balance cost.
	FreeDailyLimit = 5

	// TokenAlertThreshold is the lifetime token count past which a one-time
	// usage alert is emitted.
	TokenAlertThreshold = 1_000_000
)

// Ledger is one identity's metering record, matching the user_quotas table.
// FreeUsedToday is only meaningful when LastResetDate equals the current UTC
// date; gate decisions must run on a reset ledger.
type Ledger struct {
	UserID           uuid.UUID `json:"user_id"`
	FreeUsedToday    int       `json:"free_used_today"`
	LastResetDate    string    `json:"last_reset_date"`
	CumulativeTokens int64     `json:"cumulative_tokens"`
	Balance          int       `json:"balance"`
	AlertSent        bool      `json:"alert_sent"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Today returns the UTC calendar date in YYYY-MM-DD form. All daily-window
// arithmetic uses this representation so the reset boundary is midnight UTC
// regardless of server locale.
func Today(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// ResetIfStale returns a copy of the ledger with the free counter zeroed when
// its reset date is not today. A same-day ledger is returned unchanged.
// Balance, cumulative tokens, and the alert flag survive the reset.
func ResetIfStale(l Ledger, today string) Ledger {
	if l.LastResetDate == today {
		return l
	}
	l.FreeUsedToday = 0
	l.LastResetDate = today
	return l
}

// Fund identifies which funding source a settlement debits.
type Fund string

const (
	FundFree Fund = "free"
	FundPaid Fund = "paid"
)

// Decide is the quota gate: given a freshly reset ledger it returns the
// funding source for an admitted request, or ErrPaymentRequired when both the
// free allowance and the paid balance are exhausted. It has no side effects.
func Decide(l Ledger, freeLimit int) (Fund, error) {
	if l.FreeUsedToday < freeLimit {
		return FundFree, nil
	}
	if l.Balance >= 1 {
		return FundPaid, nil
	}
	return "", ErrPaymentRequired
}

// Usage is the token pair reported by the upstream provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the billable token count for one generation.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Status is the quota view served to the billing page.
type Status struct {
	FreeUsedToday    int   `json:"free_used_today"`
	FreeDailyLimit   int   `json:"free_daily_limit"`
	Balance          int   `json:"balance"`
	CumulativeTokens int64 `json:"cumulative_tokens"`
}
