package purchase

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopfront/ledger/internal/auth"
	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/httpx"
	"github.com/shopfront/ledger/internal/messaging"
)

var meter = otel.Meter("purchase")

type Handler struct {
	repo           *Repository
	producer       *messaging.Producer
	logger         *slog.Logger
	purchasesTotal metric.Int64Counter
	revenueTotal   metric.Int64Counter
}

func NewHandler(repo *Repository, producer *messaging.Producer, logger *slog.Logger) (*Handler, error) {
	purchasesTotal, err := meter.Int64Counter("shopfront.purchases",
		metric.WithDescription("Completed direct purchases"))
	if err != nil {
		return nil, err
	}
	revenueTotal, err := meter.Int64Counter("shopfront.purchase.revenue",
		metric.WithDescription("Revenue collected by direct purchases, smallest currency unit"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		repo:           repo,
		producer:       producer,
		logger:         logger,
		purchasesTotal: purchasesTotal,
		revenueTotal:   revenueTotal,
	}, nil
}

type buyRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	buyer, err := auth.RequireCaller(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	payment, err := auth.Payment(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.repo.Buy(r.Context(), r.PathValue("id"), req.Quantity, payment)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.purchasesTotal.Add(r.Context(), 1)
	h.revenueTotal.Add(r.Context(), receipt.TotalPrice)

	if h.producer != nil {
		payload := domain.PurchasePayload{
			ProductID:  receipt.ProductID,
			Buyer:      buyer,
			Quantity:   receipt.Quantity,
			TotalPrice: receipt.TotalPrice,
		}
		if err := h.producer.PublishEvent(r.Context(), receipt.ProductID, domain.EventProductPurchased, payload); err != nil {
			h.logger.Error("failed to publish purchase event", "error", err, "product_id", receipt.ProductID)
		}
	}

	h.logger.Info("product purchased",
		"product_id", receipt.ProductID, "buyer", buyer,
		"quantity", receipt.Quantity, "total_price", receipt.TotalPrice)
	h.writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	status := httpx.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("purchase failed", "error", err)
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
