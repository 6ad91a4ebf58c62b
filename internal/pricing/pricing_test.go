package pricing

import (
	"errors"
	"testing"

	"github.com/shopfront/ledger/internal/domain"
)

func TestTotal(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		quantity  int64
		want      int64
	}{
		{"single unit has no discount", 50000, 1, 50000},
		{"two units have no discount", 50000, 2, 100000},
		{"three units get 10% off", 50000, 3, 135000},
		{"discount truncates, never rounds up", 33, 3, 89}, // 99*9/10
		{"large quantity keeps the discount", 50000, 8, 360000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Total(tt.unitPrice, tt.quantity); got != tt.want {
				t.Errorf("Total(%d, %d) = %d, want %d", tt.unitPrice, tt.quantity, got, tt.want)
			}
		})
	}
}

func TestMinimumInstalment(t *testing.T) {
	if got := MinimumInstalment(50000); got != 5000 {
		t.Errorf("MinimumInstalment(50000) = %d, want 5000", got)
	}
	if got := MinimumInstalment(999); got != 99 {
		t.Errorf("MinimumInstalment(999) = %d, want 99 (truncated)", got)
	}
}

func TestQuote(t *testing.T) {
	product := domain.Product{
		ID:       domain.ProductID("Ferrari"),
		Name:     "Ferrari",
		Price:    50000,
		Quantity: 8,
	}

	t.Run("quotes within stock", func(t *testing.T) {
		total, err := Quote(product, 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 135000 {
			t.Errorf("expected total 135000, got %d", total)
		}
	})

	t.Run("rejects quantity exceeding stock", func(t *testing.T) {
		if _, err := Quote(product, 10); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		if _, err := Quote(product, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
