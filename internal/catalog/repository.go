package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopfront/ledger/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, name string, price, quantity int64) (*domain.Product, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: product name must not be empty", domain.ErrInvalidArgument)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrInvalidArgument)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidArgument)
	}

	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, price, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, name, price, quantity, created_at, updated_at
	`, domain.ProductID(name), name, price, quantity).Scan(
		&product.ID, &product.Name, &product.Price, &product.Quantity,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %q already exists", domain.ErrConflict, name)
	}
	if err != nil {
		return nil, err
	}

	return product, nil
}

// GetByID returns (nil, nil) when the product does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&product.ID, &product.Name, &product.Price, &product.Quantity,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) UpdatePrice(ctx context.Context, id string, price int64) (*domain.Product, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrInvalidArgument)
	}
	return r.update(ctx, id, "price", price)
}

func (r *Repository) UpdateQuantity(ctx context.Context, id string, quantity int64) (*domain.Product, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidArgument)
	}
	return r.update(ctx, id, "quantity", quantity)
}

func (r *Repository) update(ctx context.Context, id, column string, value int64) (*domain.Product, error) {
	product := &domain.Product{}

	// column is one of the two fixed names above, never user input.
	err := r.db.QueryRowContext(ctx, `
		UPDATE products SET `+column+` = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, price, quantity, created_at, updated_at
	`, id, value).Scan(
		&product.ID, &product.Name, &product.Price, &product.Quantity,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}

	return nil
}
