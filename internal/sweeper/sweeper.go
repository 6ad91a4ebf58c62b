// Package sweeper periodically walks the co-order book as the operator
// and applies the actions the deadlines have unlocked: releasing
// reserved stock once deposits close, and cleaning orders whose
// withdraw window has lapsed.
package sweeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopfront/ledger/internal/auth"
	"github.com/shopfront/ledger/internal/domain"
)

type Sweeper struct {
	ledgerURL  string
	operatorID string
	httpClient *http.Client
	logger     *slog.Logger
	interval   time.Duration
	now        func() time.Time
}

type Option func(*Sweeper)

// WithClock overrides the time source used to judge deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func New(ledgerURL, operatorID string, client *http.Client, interval time.Duration, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		ledgerURL:  ledgerURL,
		operatorID: operatorID,
		httpClient: client,
		logger:     logger,
		interval:   interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep applies one pass over every co-order. Stock is released before
// cleaning so an overdue order returns its reservation to the shelf
// before the forfeit settles.
func (s *Sweeper) Sweep(ctx context.Context) error {
	orders, err := s.listOrders(ctx)
	if err != nil {
		return fmt.Errorf("list co-orders: %w", err)
	}

	now := s.now()
	for _, order := range orders {
		if !order.DepositOpen(now) && !order.StockReleased {
			if err := s.post(ctx, order.ID, "release"); err != nil {
				s.logger.Error("failed to release stock", "error", err, "order_id", order.ID)
				continue
			}
			s.logger.Info("released reserved stock", "order_id", order.ID, "product_id", order.ProductID)
		}

		if !order.WithdrawOpen(now) {
			if err := s.post(ctx, order.ID, "clean"); err != nil {
				s.logger.Error("failed to clean co-order", "error", err, "order_id", order.ID)
				continue
			}
			s.logger.Info("cleaned overdue co-order", "order_id", order.ID, "forfeited", order.TotalPaid)
		}
	}

	return nil
}

func (s *Sweeper) listOrders(ctx context.Context) ([]domain.CoOrder, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ledgerURL+"/co-orders", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(auth.CallerHeader, s.operatorID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger service returned status %d", resp.StatusCode)
	}

	var orders []domain.CoOrder
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Sweeper) post(ctx context.Context, orderID int64, action string) error {
	url := fmt.Sprintf("%s/co-orders/%s/%s", s.ledgerURL, strconv.FormatInt(orderID, 10), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(auth.CallerHeader, s.operatorID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// Another sweep or an operator call may have beaten us to it.
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger service returned status %d", resp.StatusCode)
	}
	return nil
}
