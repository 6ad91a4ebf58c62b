package domain

import (
	"testing"
	"time"
)

func testOrder(createdAt time.Time) CoOrder {
	return CoOrder{
		ID:               1,
		Buyer:            "buyer-1",
		ProductID:        ProductID("Ferrari"),
		Quantity:         1,
		TotalPrice:       50000,
		TotalPaid:        30000,
		CreatedAt:        createdAt,
		DepositDeadline:  createdAt.Add(DepositWindow),
		WithdrawDeadline: createdAt.Add(WithdrawWindow),
	}
}

func TestCoOrderPhaseAt(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := testOrder(createdAt)

	t.Run("open before deposit deadline", func(t *testing.T) {
		if got := order.PhaseAt(createdAt.Add(30 * time.Minute)); got != PhaseOpen {
			t.Errorf("expected phase %q, got %q", PhaseOpen, got)
		}
	})

	t.Run("open at the deadline instant", func(t *testing.T) {
		if got := order.PhaseAt(order.DepositDeadline); got != PhaseOpen {
			t.Errorf("expected phase %q, got %q", PhaseOpen, got)
		}
	})

	t.Run("closed after deposit deadline", func(t *testing.T) {
		if got := order.PhaseAt(order.DepositDeadline.Add(time.Second)); got != PhaseDepositClosed {
			t.Errorf("expected phase %q, got %q", PhaseDepositClosed, got)
		}
	})
}

func TestCoOrderWithdrawOpen(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := testOrder(createdAt)

	if !order.WithdrawOpen(createdAt.Add(59 * 24 * time.Hour)) {
		t.Error("expected withdraw window to be open before 60 days")
	}
	if !order.WithdrawOpen(order.WithdrawDeadline) {
		t.Error("expected withdraw window to be open at the deadline instant")
	}
	if order.WithdrawOpen(order.WithdrawDeadline.Add(time.Second)) {
		t.Error("expected withdraw window to be closed after 60 days")
	}
}

func TestCoOrderFunded(t *testing.T) {
	order := testOrder(time.Now().UTC())

	if order.Funded() {
		t.Errorf("order with paid %d of %d should not be funded", order.TotalPaid, order.TotalPrice)
	}

	order.TotalPaid = order.TotalPrice
	if !order.Funded() {
		t.Error("order paid in full should be funded")
	}

	order.TotalPaid = order.TotalPrice + 1
	if !order.Funded() {
		t.Error("overfunded order should be funded")
	}
}

func TestDeadlineWindows(t *testing.T) {
	if DepositWindow != time.Hour {
		t.Errorf("expected deposit window of 1h, got %v", DepositWindow)
	}
	if WithdrawWindow != 1440*time.Hour {
		t.Errorf("expected withdraw window of 60 days, got %v", WithdrawWindow)
	}
}
