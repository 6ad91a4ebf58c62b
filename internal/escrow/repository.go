// Package escrow owns the co-purchase state machine: a reserved order
// funded in instalments by arbitrary contributors against a deposit
// deadline, with buyer withdrawal and operator cleanup windows. Every
// operation runs as one database transaction so stock, order and
// locked-funds bookkeeping move together or not at all.
package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/pricing"
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*Repository)

// WithClock replaces the wall clock used for deadline arithmetic.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func NewRepository(db *sql.DB, opts ...Option) *Repository {
	r := &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const orderColumns = `id, buyer, product_id, quantity, total_price, total_paid,
	stock_released, created_at, deposit_deadline, withdraw_deadline`

func scanOrder(row interface{ Scan(...any) error }) (*domain.CoOrder, error) {
	o := &domain.CoOrder{}
	err := row.Scan(
		&o.ID, &o.Buyer, &o.ProductID, &o.Quantity, &o.TotalPrice, &o.TotalPaid,
		&o.StockReleased, &o.CreatedAt, &o.DepositDeadline, &o.WithdrawDeadline,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repository) lockOrder(ctx context.Context, tx *sql.Tx, orderID int64) (*domain.CoOrder, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM co_orders
		WHERE id = $1
		FOR UPDATE
	`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: co-order %d", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Create reserves stock for a new co-order and locks the opening
// instalment. When the instalment already covers the total the order
// fulfils in the same transaction and Fulfilled is set.
func (r *Repository) Create(ctx context.Context, buyer, productID string, quantity, instalment int64) (*domain.CoOrder, bool, error) {
	if instalment <= 0 {
		return nil, false, fmt.Errorf("%w: no payment attached", domain.ErrInsufficientPayment)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	product := domain.Product{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, price, quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&product.ID, &product.Name, &product.Price, &product.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return nil, false, err
	}

	total, err := pricing.Quote(product, quantity)
	if err != nil {
		return nil, false, err
	}

	if min := pricing.MinimumInstalment(total); instalment < min {
		return nil, false, fmt.Errorf("%w: instalment %d below minimum %d", domain.ErrInsufficientPayment, instalment, min)
	}

	// The reservation is taken now and held for the life of the order.
	result, err := tx.ExecContext(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, productID, quantity)
	if err != nil {
		return nil, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if affected == 0 {
		return nil, false, fmt.Errorf("%w: quantity %d exceeds stock", domain.ErrInvalidArgument, quantity)
	}

	now := r.now().UTC()
	order, err := scanOrder(tx.QueryRowContext(ctx, `
		INSERT INTO co_orders (buyer, product_id, quantity, total_price, total_paid,
			created_at, deposit_deadline, withdraw_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+orderColumns+`
	`, buyer, productID, quantity, total, instalment,
		now, now.Add(domain.DepositWindow), now.Add(domain.WithdrawWindow)))
	if err != nil {
		return nil, false, err
	}

	fulfilled := order.Funded()
	if fulfilled {
		// Fulfilled in the opening call: nothing to lock, the full
		// payment is operator revenue at once.
		if _, err := tx.ExecContext(ctx, `DELETE FROM co_orders WHERE id = $1`, order.ID); err != nil {
			return nil, false, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger SET balance = balance + $1 WHERE id = 1
		`, instalment); err != nil {
			return nil, false, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger SET balance = balance + $1, locked_funds = locked_funds + $1 WHERE id = 1
		`, instalment); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return order, fulfilled, nil
}

// Deposit adds an instalment from any contributor. When the new paid
// total covers the price the order fulfils: the row is removed and its
// entire paid amount, excess included, unlocks into operator revenue.
func (r *Repository) Deposit(ctx context.Context, orderID, amount int64) (*domain.CoOrder, bool, error) {
	if amount <= 0 {
		return nil, false, fmt.Errorf("%w: no payment attached", domain.ErrInsufficientPayment)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, false, err
	}

	if !order.DepositOpen(r.now()) {
		return nil, false, fmt.Errorf("%w: deposit window closed", domain.ErrOutsideWindow)
	}

	previousPaid := order.TotalPaid
	order.TotalPaid += amount

	fulfilled := order.Funded()
	if fulfilled {
		if _, err := tx.ExecContext(ctx, `DELETE FROM co_orders WHERE id = $1`, orderID); err != nil {
			return nil, false, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger SET balance = balance + $1, locked_funds = locked_funds - $2 WHERE id = 1
		`, amount, previousPaid); err != nil {
			return nil, false, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE co_orders SET total_paid = $2 WHERE id = $1
		`, orderID, order.TotalPaid); err != nil {
			return nil, false, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE ledger SET balance = balance + $1, locked_funds = locked_funds + $1 WHERE id = 1
		`, amount); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return order, fulfilled, nil
}

// Withdraw refunds the entire paid amount to the buyer. Before the
// deposit deadline the order stays open with a zero paid total; after
// it the stalled order is removed as well. The refund itself is the
// caller's concern and must happen only after this commits.
func (r *Repository) Withdraw(ctx context.Context, orderID int64, caller string) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		return 0, false, err
	}

	if caller != order.Buyer {
		return 0, false, fmt.Errorf("%w: only the buyer may withdraw", domain.ErrUnauthorized)
	}

	now := r.now()
	if !order.WithdrawOpen(now) {
		return 0, false, fmt.Errorf("%w: withdraw window closed", domain.ErrOutsideWindow)
	}

	amount := order.TotalPaid
	removed := !order.DepositOpen(now)
	if removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM co_orders WHERE id = $1`, orderID); err != nil {
			return 0, false, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE co_orders SET total_paid = 0 WHERE id = $1
		`, orderID); err != nil {
			return 0, false, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger SET balance = balance - $1, locked_funds = locked_funds - $1 WHERE id = 1
	`, amount); err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, err
	}

	return amount, removed, nil
}

// ReleaseStock returns a stalled order's reservation to the catalog
// once the deposit window has closed. Funds stay locked; only the
// buyer's withdrawal or a cleanup moves them. A reservation can be
// released once.
func (r *Repository) ReleaseStock(ctx context.Context, orderID int64) (*domain.CoOrder, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, 0, err
	}

	if order.DepositOpen(r.now()) {
		return nil, 0, fmt.Errorf("%w: deposit window still open", domain.ErrOutsideWindow)
	}
	if order.StockReleased {
		return nil, 0, fmt.Errorf("%w: stock already released", domain.ErrConflict)
	}

	var newQuantity int64
	err = tx.QueryRowContext(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity
	`, order.ProductID, order.Quantity).Scan(&newQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: product %s no longer exists", domain.ErrNotFound, order.ProductID)
	}
	if err != nil {
		return nil, 0, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE co_orders SET stock_released = TRUE WHERE id = $1
	`, orderID); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}

	order.StockReleased = true
	return order, newQuantity, nil
}

// CleanOverdue removes an order whose buyer never withdrew within the
// withdrawal window. The locked funds are forfeited into operator
// revenue.
func (r *Repository) CleanOverdue(ctx context.Context, orderID int64) (*domain.CoOrder, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if order.WithdrawOpen(r.now()) {
		return nil, fmt.Errorf("%w: withdraw window still open", domain.ErrOutsideWindow)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM co_orders WHERE id = $1`, orderID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger SET locked_funds = locked_funds - $1 WHERE id = 1
	`, order.TotalPaid); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

// GetByID returns (nil, nil) when the order does not exist.
func (r *Repository) GetByID(ctx context.Context, orderID int64) (*domain.CoOrder, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM co_orders
		WHERE id = $1
	`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.CoOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM co_orders
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.CoOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// Now exposes the repository clock so callers derive phases from the
// same time source the state machine uses.
func (r *Repository) Now() time.Time {
	return r.now()
}
