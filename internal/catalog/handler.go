package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopfront/ledger/internal/auth"
	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/httpx"
	"github.com/shopfront/ledger/internal/messaging"
	"github.com/shopfront/ledger/internal/pricing"
)

type Handler struct {
	repo       *Repository
	producer   *messaging.Producer
	operatorID string
	logger     *slog.Logger
}

func NewHandler(repo *Repository, producer *messaging.Producer, operatorID string, logger *slog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		producer:   producer,
		operatorID: operatorID,
		logger:     logger,
	}
}

type createProductRequest struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.repo.Create(r.Context(), req.Name, req.Price, req.Quantity)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.publish(r, product.ID, domain.EventProductCreated, domain.ProductEventPayload{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  product.Quantity,
	})

	h.logger.Info("product created", "product_id", product.ID, "name", product.Name)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type updatePriceRequest struct {
	Price int64 `json:"price"`
}

func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.repo.UpdatePrice(r.Context(), r.PathValue("id"), req.Price)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.publish(r, product.ID, domain.EventProductPriceUpdated, domain.ProductEventPayload{
		ProductID: product.ID,
		Price:     product.Price,
		Quantity:  product.Quantity,
	})

	h.logger.Info("product price updated", "product_id", product.ID, "price", product.Price)
	h.writeJSON(w, http.StatusOK, product)
}

type updateQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.repo.UpdateQuantity(r.Context(), r.PathValue("id"), req.Quantity)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.publish(r, product.ID, domain.EventProductQuantityUpdated, domain.ProductEventPayload{
		ProductID: product.ID,
		Quantity:  product.Quantity,
	})

	h.logger.Info("product quantity updated", "product_id", product.ID, "quantity", product.Quantity)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Remove(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}

	h.publish(r, id, domain.EventProductRemoved, domain.ProductEventPayload{ProductID: id})

	h.logger.Info("product removed", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type quoteResponse struct {
	ProductID  string `json:"product_id"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
}

// HandleQuote prices a prospective purchase without touching state.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed quantity")
		return
	}

	product, err := h.repo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	total, err := pricing.Quote(*product, quantity)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, quoteResponse{
		ProductID:  product.ID,
		UnitPrice:  product.Price,
		Quantity:   quantity,
		TotalPrice: total,
	})
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
		h.logger.Error("catalog operation failed", "error", err)
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
