package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/pricing"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type Receipt struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
	Remaining  int64  `json:"remaining_stock"`
}

// Buy settles a direct purchase in one transaction: it re-quotes the
// price, requires the attached payment to match it exactly, decrements
// stock and credits the ledger balance. Any failure rolls the whole
// thing back.
func (r *Repository) Buy(ctx context.Context, productID string, quantity, payment int64) (*Receipt, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
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
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}

	total, err := pricing.Quote(product, quantity)
	if err != nil {
		return nil, err
	}

	if payment < total {
		return nil, fmt.Errorf("%w: attached %d, price is %d", domain.ErrInsufficientPayment, payment, total)
	}
	if payment > total {
		// Overpayment cannot be refunded, so reject it outright.
		return nil, fmt.Errorf("%w: attached %d, exact price %d required", domain.ErrInvalidArgument, payment, total)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, productID, quantity)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: quantity %d exceeds stock", domain.ErrInvalidArgument, quantity)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger SET balance = balance + $1 WHERE id = 1
	`, payment); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Receipt{
		ProductID:  product.ID,
		Name:       product.Name,
		Quantity:   quantity,
		TotalPrice: total,
		Remaining:  product.Quantity - quantity,
	}, nil
}
