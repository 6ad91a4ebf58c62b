package treasury

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopfront/ledger/internal/auth"
	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/httpx"
	"github.com/shopfront/ledger/internal/messaging"
)

var meter = otel.Meter("treasury")

// RegisterMetrics publishes the ledger balance and locked funds as
// observable gauges, read on every metrics scrape.
func RegisterMetrics(repo *Repository) error {
	balance, err := meter.Int64ObservableGauge("shopfront.ledger.balance",
		metric.WithDescription("Total funds held by the ledger"))
	if err != nil {
		return err
	}
	locked, err := meter.Int64ObservableGauge("shopfront.ledger.locked_funds",
		metric.WithDescription("Funds backing open co-orders"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		s, err := repo.Snapshot(ctx)
		if err != nil {
			return err
		}
		o.ObserveInt64(balance, s.Balance)
		o.ObserveInt64(locked, s.LockedFunds)
		return nil
	}, balance, locked)
	return err
}

type Handler struct {
	repo       *Repository
	producer   *messaging.Producer
	operatorID string
	logger     *slog.Logger
}

func NewHandler(repo *Repository, producer *messaging.Producer, operatorID string, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, producer: producer, operatorID: operatorID, logger: logger}
}

type snapshotResponse struct {
	Snapshot
	Withdrawable int64 `json:"withdrawable"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	s, err := h.repo.Snapshot(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshotResponse{Snapshot: s, Withdrawable: s.Withdrawable()})
}

func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	amount, err := h.repo.Withdraw(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	// A zero payout moves no funds, so there is nothing to announce.
	if amount > 0 {
		h.publish(r, h.operatorID, domain.EventTreasuryWithdrawn, domain.TreasuryPayload{
			Operator: h.operatorID,
			Amount:   amount,
		})
	}

	h.logger.Info("treasury withdrawn", "operator", h.operatorID, "amount", amount)
	h.writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}

func (h *Handler) requireOperator(r *http.Request) error {
	caller, err := auth.RequireCaller(r)
	if err != nil {
		return err
	}
	if caller != h.operatorID {
		return fmt.Errorf("%w: operator role required", domain.ErrUnauthorized)
	}
	return nil
}

func (h *Handler) publish(r *http.Request, key, eventType string, payload any) {
	if h.producer == nil {
		return
	}
	if err := h.producer.PublishEvent(r.Context(), key, eventType, payload); err != nil {
		h.logger.Error("failed to publish event", "error", err, "event_type", eventType)
	}
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	status := httpx.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("treasury operation failed", "error", err)
		h.writeError(w, status, "internal server error")
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
