package polish

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the pgx-backed Store over the user_quotas table.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ledgerColumns = `user_id, free_used_today, last_reset_date, cumulative_tokens, balance, alert_sent, updated_at`

func scanLedger(row pgx.Row) (*Ledger, error) {
	var l Ledger
	err := row.Scan(
		&l.UserID,
		&l.FreeUsedToday,
		&l.LastResetDate,
		&l.CumulativeTokens,
		&l.Balance,
		&l.AlertSent,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID, today string) (*Ledger, error) {
	query := `
		INSERT INTO user_quotas (user_id, last_reset_date)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + ledgerColumns

	l, err := scanLedger(r.pool.QueryRow(ctx, query, userID, today))
	if err != nil {
		return nil, fmt.Errorf("getting or creating quota ledger: %w", err)
	}
	return l, nil
}

func (r *Repository) ResetIfStale(ctx context.Context, userID uuid.UUID, today string) (*Ledger, error) {
	query := `
		UPDATE user_quotas
		SET free_used_today = 0, last_reset_date = $2, updated_at = NOW()
		WHERE user_id = $1 AND last_reset_date <> $2
		RETURNING ` + ledgerColumns

	l, err := scanLedger(r.pool.QueryRow(ctx, query, userID, today))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resetting quota ledger: %w", err)
	}
	// Already current, or the row does not exist yet.
	return r.GetOrCreate(ctx, userID, today)
}

// Settle is a single conditional UPDATE: the WHERE clause pins every counter
// to the values the gate decision was made against, so a concurrent settlement
// makes this one match zero rows instead of double-debiting. The alert flag is
// set in the same statement the token total is added, which keeps the
// at-most-once alert guarantee without a transaction.
func (r *Repository) Settle(ctx context.Context, prev *Ledger, fund Fund, usage Usage) (*Ledger, bool, error) {
	query := `
		UPDATE user_quotas
		SET free_used_today = free_used_today + $5,
		    balance = balance - $6,
		    cumulative_tokens = cumulative_tokens + $7,
		    alert_sent = alert_sent OR (cumulative_tokens + $7 > $8),
		    updated_at = NOW()
		WHERE user_id = $1
		  AND free_used_today = $2
		  AND balance = $3
		  AND cumulative_tokens = $4
		  AND last_reset_date = $9
		RETURNING ` + ledgerColumns

	freeDelta, paidDelta := 0, 0
	if fund == FundPaid {
		paidDelta = 1
	} else {
		freeDelta = 1
	}

	l, err := scanLedger(r.pool.QueryRow(ctx, query,
		prev.UserID,
		prev.FreeUsedToday,
		prev.Balance,
		prev.CumulativeTokens,
		freeDelta,
		paidDelta,
		int64(usage.Total()),
		int64(TokenAlertThreshold),
		prev.LastResetDate,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrStaleLedger
		}
		return nil, false, fmt.Errorf("settling quota ledger: %w", err)
	}

	crossed := l.AlertSent && !prev.AlertSent
	return l, crossed, nil
}

func (r *Repository) AddBalance(ctx context.Context, userID uuid.UUID, today string, credits int) (*Ledger, error) {
	query := `
		INSERT INTO user_quotas (user_id, last_reset_date, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = user_quotas.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING ` + ledgerColumns

	l, err := scanLedger(r.pool.QueryRow(ctx, query, userID, today, credits))
	if err != nil {
		return nil, fmt.Errorf("crediting quota balance: %w", err)
	}
	return l, nil
}
