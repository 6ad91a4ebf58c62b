// Package pricing holds the pure price arithmetic shared by direct
// purchases and co-purchase escrow. All amounts are integers in the
// smallest currency unit; division truncates, never rounds up.
package pricing

import (
	"fmt"

	"github.com/shopfront/ledger/internal/domain"
)

// Orders of at least this quantity get the bulk discount.
const DiscountThreshold = 3

// Total returns the price for quantity units at the given unit price,
// with a 10% discount from the threshold up.
func Total(unitPrice, quantity int64) int64 {
	base := unitPrice * quantity
	if quantity >= DiscountThreshold {
		return base * 9 / 10
	}
	return base
}

// MinimumInstalment is the smallest opening deposit accepted when a
// co-purchase is created: 10% of the discounted total.
func MinimumInstalment(totalPrice int64) int64 {
	return totalPrice / 10
}

// Quote validates the requested quantity against the product's stock
// and returns the discounted total. It has no side effects.
func Quote(p domain.Product, quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}
	if quantity > p.Quantity {
		return 0, fmt.Errorf("%w: quantity %d exceeds stock %d", domain.ErrInvalidArgument, quantity, p.Quantity)
	}
	return Total(p.Price, quantity), nil
}
