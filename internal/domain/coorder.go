package domain

import "time"

// How long contributors can keep depositing after a co-order is
// created, and how long the buyer keeps the right to reclaim funds.
const (
	DepositWindow  = time.Hour
	WithdrawWindow = 60 * 24 * time.Hour
)

type CoOrderPhase string

const (
	PhaseOpen          CoOrderPhase = "open"
	PhaseDepositClosed CoOrderPhase = "deposit_closed"
)

// CoOrder is a reserved purchase being funded in instalments. The
// phase is never stored; it is derived from the deadlines at the
// moment an operation runs, so it cannot drift from the clock.
type CoOrder struct {
	ID               int64     `json:"id"`
	Buyer            string    `json:"buyer"`
	ProductID        string    `json:"product_id"`
	Quantity         int64     `json:"quantity"`
	TotalPrice       int64     `json:"total_price"`
	TotalPaid        int64     `json:"total_paid"`
	StockReleased    bool      `json:"stock_released"`
	CreatedAt        time.Time `json:"created_at"`
	DepositDeadline  time.Time `json:"deposit_deadline"`
	WithdrawDeadline time.Time `json:"withdraw_deadline"`
}

func (o CoOrder) PhaseAt(now time.Time) CoOrderPhase {
	if o.DepositOpen(now) {
		return PhaseOpen
	}
	return PhaseDepositClosed
}

// DepositOpen reports whether deposits are still accepted. The
// deadline instant itself is inside the window.
func (o CoOrder) DepositOpen(now time.Time) bool {
	return !now.After(o.DepositDeadline)
}

// WithdrawOpen reports whether the buyer may still reclaim funds.
func (o CoOrder) WithdrawOpen(now time.Time) bool {
	return !now.After(o.WithdrawDeadline)
}

// Funded reports whether the accumulated deposits cover the total
// price, i.e. whether the order is ready to fulfil.
func (o CoOrder) Funded() bool {
	return o.TotalPaid >= o.TotalPrice
}
