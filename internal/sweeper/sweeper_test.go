package sweeper

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopfront/ledger/internal/auth"
	"github.com/shopfront/ledger/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLedger struct {
	mu     sync.Mutex
	orders []domain.CoOrder
	posts  []string
}

func (f *fakeLedger) handler(t *testing.T, operatorID string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /co-orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(auth.CallerHeader) != operatorID {
			t.Errorf("expected operator caller, got %q", r.Header.Get(auth.CallerHeader))
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.orders)
	})
	mux.HandleFunc("POST /co-orders/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.posts = append(f.posts, r.PathValue("id")+"/"+r.PathValue("action"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeLedger) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

func order(id int64, createdAt time.Time, released bool) domain.CoOrder {
	return domain.CoOrder{
		ID:               id,
		Buyer:            "alice",
		ProductID:        "abc",
		Quantity:         2,
		TotalPrice:       100000,
		TotalPaid:        30000,
		StockReleased:    released,
		CreatedAt:        createdAt,
		DepositDeadline:  createdAt.Add(domain.DepositWindow),
		WithdrawDeadline: createdAt.Add(domain.WithdrawWindow),
	}
}

func TestSweeper_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("leaves open orders alone", func(t *testing.T) {
		ledger := &fakeLedger{orders: []domain.CoOrder{order(1, now.Add(-30*time.Minute), false)}}
		server := httptest.NewServer(ledger.handler(t, "op"))
		defer server.Close()

		s := New(server.URL, "op", server.Client(), time.Minute, discardLogger(), WithClock(clock))
		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ledger.recorded(); len(got) != 0 {
			t.Errorf("expected no actions, got %v", got)
		}
	})

	t.Run("releases stock once deposits close", func(t *testing.T) {
		ledger := &fakeLedger{orders: []domain.CoOrder{order(2, now.Add(-2*time.Hour), false)}}
		server := httptest.NewServer(ledger.handler(t, "op"))
		defer server.Close()

		s := New(server.URL, "op", server.Client(), time.Minute, discardLogger(), WithClock(clock))
		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := ledger.recorded()
		if len(got) != 1 || got[0] != "2/release" {
			t.Errorf("expected [2/release], got %v", got)
		}
	})

	t.Run("skips release when stock already returned", func(t *testing.T) {
		ledger := &fakeLedger{orders: []domain.CoOrder{order(3, now.Add(-2*time.Hour), true)}}
		server := httptest.NewServer(ledger.handler(t, "op"))
		defer server.Close()

		s := New(server.URL, "op", server.Client(), time.Minute, discardLogger(), WithClock(clock))
		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ledger.recorded(); len(got) != 0 {
			t.Errorf("expected no actions, got %v", got)
		}
	})

	t.Run("releases then cleans overdue orders", func(t *testing.T) {
		ledger := &fakeLedger{orders: []domain.CoOrder{order(4, now.Add(-61*24*time.Hour), false)}}
		server := httptest.NewServer(ledger.handler(t, "op"))
		defer server.Close()

		s := New(server.URL, "op", server.Client(), time.Minute, discardLogger(), WithClock(clock))
		if err := s.Sweep(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := ledger.recorded()
		if len(got) != 2 || got[0] != "4/release" || got[1] != "4/clean" {
			t.Errorf("expected [4/release 4/clean], got %v", got)
		}
	})

	t.Run("reports listing failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		s := New(server.URL, "op", server.Client(), time.Minute, discardLogger(), WithClock(clock))
		if err := s.Sweep(context.Background()); err == nil {
			t.Error("expected error when listing fails")
		}
	})
}
