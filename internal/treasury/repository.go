// Package treasury exposes the single-row ledger that tracks operator
// revenue against funds locked in open co-orders.
package treasury

import (
	"context"
	"database/sql"
	"fmt"
)

// Snapshot is a point-in-time view of the ledger row.
type Snapshot struct {
	Balance     int64 `json:"balance"`
	LockedFunds int64 `json:"locked_funds"`
}

// Withdrawable is the portion of the balance not backing an open
// co-order.
func (s Snapshot) Withdrawable() int64 {
	return s.Balance - s.LockedFunds
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := r.db.QueryRowContext(ctx,
		"SELECT balance, locked_funds FROM ledger WHERE id = 1",
	).Scan(&s.Balance, &s.LockedFunds)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read ledger: %w", err)
	}
	return s, nil
}

// Withdraw pays out everything not locked by open co-orders and
// returns the amount. A fully locked balance withdraws zero, which is
// a successful no-op, not a failure. Locked funds never leave the
// ledger here; they are settled by the co-order that holds them.
func (r *Repository) Withdraw(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var s Snapshot
	err = tx.QueryRowContext(ctx,
		"SELECT balance, locked_funds FROM ledger WHERE id = 1 FOR UPDATE",
	).Scan(&s.Balance, &s.LockedFunds)
	if err != nil {
		return 0, fmt.Errorf("failed to lock ledger: %w", err)
	}

	amount := s.Withdrawable()
	if amount == 0 {
		return 0, nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE ledger SET balance = balance - $1 WHERE id = 1", amount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to debit ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return amount, nil
}
