package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/shopfront/ledger/internal/domain"
)

func TestRequireCaller(t *testing.T) {
	t.Run("returns the caller id", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/products", nil)
		r.Header.Set(CallerHeader, "alice")

		caller, err := RequireCaller(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if caller != "alice" {
			t.Errorf("expected caller 'alice', got %q", caller)
		}
	})

	t.Run("rejects anonymous calls", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/products", nil)

		if _, err := RequireCaller(r); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestPayment(t *testing.T) {
	t.Run("parses the attached amount", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/co-orders", nil)
		r.Header.Set(PaymentHeader, "30000")

		amount, err := Payment(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if amount != 30000 {
			t.Errorf("expected 30000, got %d", amount)
		}
	})

	t.Run("missing header means zero", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/products", nil)

		amount, err := Payment(r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if amount != 0 {
			t.Errorf("expected 0, got %d", amount)
		}
	})

	t.Run("rejects malformed amounts", func(t *testing.T) {
		for _, raw := range []string{"abc", "-5", "1.5"} {
			r := httptest.NewRequest("POST", "/co-orders", nil)
			r.Header.Set(PaymentHeader, raw)

			if _, err := Payment(r); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("payment %q: expected ErrInvalidArgument, got %v", raw, err)
			}
		}
	})
}
