package polish

import (
	"context"

	"github.com/google/uuid"
)

// Store persists per-identity quota ledgers.
type Store interface {
	// GetOrCreate returns the identity's ledger, creating a zeroed one
	// dated today when none exists.
	GetOrCreate(ctx context.Context, userID uuid.UUID, today string) (*Ledger, error)

	// ResetIfStale zeroes the free counter when the stored reset date is
	// not today, then returns the current ledger. It must run before every
	// gate decision.
	ResetIfStale(ctx context.Context, userID uuid.UUID, today string) (*Ledger, error)

	// Settle applies exactly one funding debit plus token accounting as a
	// single conditional write guarded on prev's counters, folding the
	// alert-threshold check-and-set into the same write. It reports whether
	// this settlement crossed the threshold. When the row no longer matches
	// prev it returns ErrStaleLedger and writes nothing.
	Settle(ctx context.Context, prev *Ledger, fund Fund, usage Usage) (*Ledger, bool, error)

	// AddBalance credits purchased generations onto the ledger, creating it
	// if needed.
	AddBalance(ctx context.Context, userID uuid.UUID, today string, credits int) (*Ledger, error)
}
