package escrow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopfront/ledger/internal/auth"
	"github.com/shopfront/ledger/internal/domain"
	"github.com/shopfront/ledger/internal/httpx"
	"github.com/shopfront/ledger/internal/messaging"
)

var meter = otel.Meter("escrow")

type Handler struct {
	repo             *Repository
	producer         *messaging.Producer
	operatorID       string
	logger           *slog.Logger
	instalmentsTotal metric.Int64Counter
	fulfilmentsTotal metric.Int64Counter
}

func NewHandler(repo *Repository, producer *messaging.Producer, operatorID string, logger *slog.Logger) (*Handler, error) {
	instalmentsTotal, err := meter.Int64Counter("shopfront.escrow.instalments",
		metric.WithDescription("Instalments deposited into co-orders"))
	if err != nil {
		return nil, err
	}
	fulfilmentsTotal, err := meter.Int64Counter("shopfront.escrow.fulfilments",
		metric.WithDescription("Co-orders funded to completion"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		repo:             repo,
		producer:         producer,
		operatorID:       operatorID,
		logger:           logger,
		instalmentsTotal: instalmentsTotal,
		fulfilmentsTotal: fulfilmentsTotal,
	}, nil
}

// orderView is a CoOrder plus its deadline-derived phase. The phase is
// computed per response, never stored.
type orderView struct {
	domain.CoOrder
	Phase domain.CoOrderPhase `json:"phase"`
}

func (h *Handler) view(o domain.CoOrder) orderView {
	return orderView{CoOrder: o, Phase: o.PhaseAt(h.repo.Now())}
}

type createCoOrderRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type createCoOrderResponse struct {
	Order     orderView `json:"order"`
	Fulfilled bool      `json:"fulfilled"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	buyer, err := auth.RequireCaller(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	instalment, err := auth.Payment(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var req createCoOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, fulfilled, err := h.repo.Create(r.Context(), buyer, req.ProductID, req.Quantity, instalment)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	key := strconv.FormatInt(order.ID, 10)
	h.publish(r, key, domain.EventCoOrderCreated, domain.CoOrderPayload{
		OrderID:    order.ID,
		Buyer:      order.Buyer,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		TotalPaid:  order.TotalPaid,
	})
	h.publish(r, key, domain.EventInstalmentDeposited, domain.InstalmentPayload{
		OrderID:     order.ID,
		Contributor: buyer,
		Amount:      instalment,
		TotalPaid:   order.TotalPaid,
	})
	h.instalmentsTotal.Add(r.Context(), 1)

	if fulfilled {
		h.publishFulfilled(r, *order)
	}

	h.logger.Info("co-order created",
		"order_id", order.ID, "buyer", buyer, "product_id", order.ProductID,
		"total_price", order.TotalPrice, "instalment", instalment, "fulfilled", fulfilled)
	h.writeJSON(w, http.StatusCreated, createCoOrderResponse{Order: h.view(*order), Fulfilled: fulfilled})
}

type depositResponse struct {
	Order     orderView `json:"order"`
	Fulfilled bool      `json:"fulfilled"`
}

// HandleDeposit accepts an instalment from any caller, not only the
// buyer.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	contributor, err := auth.RequireCaller(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	amount, err := auth.Payment(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	orderID, err := h.orderID(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	order, fulfilled, err := h.repo.Deposit(r.Context(), orderID, amount)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	key := strconv.FormatInt(order.ID, 10)
	h.publish(r, key, domain.EventInstalmentDeposited, domain.InstalmentPayload{
		OrderID:     order.ID,
		Contributor: contributor,
		Amount:      amount,
		TotalPaid:   order.TotalPaid,
	})
	h.instalmentsTotal.Add(r.Context(), 1)

	if fulfilled {
		h.publishFulfilled(r, *order)
	}

	h.logger.Info("instalment deposited",
		"order_id", order.ID, "contributor", contributor, "amount", amount,
		"total_paid", order.TotalPaid, "fulfilled", fulfilled)
	h.writeJSON(w, http.StatusOK, depositResponse{Order: h.view(*order), Fulfilled: fulfilled})
}

type withdrawResponse struct {
	OrderID int64 `json:"order_id"`
	Amount  int64 `json:"amount"`
	Removed bool  `json:"removed"`
}

// HandleWithdraw pays the accumulated deposits back to the buyer. The
// ledger is settled before the response carries the refund out.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireCaller(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	orderID, err := h.orderID(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	amount, removed, err := h.repo.Withdraw(r.Context(), orderID, caller)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	key := strconv.FormatInt(orderID, 10)
	h.publish(r, key, domain.EventCoOrderWithdrawn, domain.WithdrawalPayload{
		OrderID: orderID,
		Buyer:   caller,
		Amount:  amount,
	})
	if removed {
		h.publish(r, key, domain.EventCoOrderRemoved, domain.WithdrawalPayload{
			OrderID: orderID,
			Buyer:   caller,
			Amount:  amount,
		})
	}

	h.logger.Info("instalments withdrawn",
		"order_id", orderID, "buyer", caller, "amount", amount, "removed", removed)
	h.writeJSON(w, http.StatusOK, withdrawResponse{OrderID: orderID, Amount: amount, Removed: removed})
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	orderID, err := h.orderID(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	order, newQuantity, err := h.repo.ReleaseStock(r.Context(), orderID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.publish(r, order.ProductID, domain.EventProductQuantityUpdated, domain.ProductEventPayload{
		ProductID: order.ProductID,
		Quantity:  newQuantity,
	})

	h.logger.Info("reserved stock released",
		"order_id", order.ID, "product_id", order.ProductID, "quantity", order.Quantity)
	h.writeJSON(w, http.StatusOK, h.view(*order))
}

func (h *Handler) HandleClean(w http.ResponseWriter, r *http.Request) {
	if err := h.requireOperator(r); err != nil {
		h.writeFailure(w, err)
		return
	}

	orderID, err := h.orderID(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	order, err := h.repo.CleanOverdue(r.Context(), orderID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	h.publish(r, strconv.FormatInt(order.ID, 10), domain.EventCoOrderCleaned, domain.WithdrawalPayload{
		OrderID: order.ID,
		Buyer:   order.Buyer,
		Amount:  order.TotalPaid,
	})

	h.logger.Info("overdue co-order cleaned",
		"order_id", order.ID, "forfeited", order.TotalPaid)
	h.writeJSON(w, http.StatusOK, map[string]int64{"order_id": order.ID, "forfeited": order.TotalPaid})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := h.orderID(r)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	order, err := h.repo.GetByID(r.Context(), orderID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "co-order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(*order))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, h.view(order))
	}

	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) publishFulfilled(r *http.Request, order domain.CoOrder) {
	h.publish(r, strconv.FormatInt(order.ID, 10), domain.EventCoOrderFulfilled, domain.CoOrderPayload{
		OrderID:    order.ID,
		Buyer:      order.Buyer,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		TotalPaid:  order.TotalPaid,
	})
	h.fulfilmentsTotal.Add(r.Context(), 1)
}

func (h *Handler) orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed co-order id", domain.ErrInvalidArgument)
	}
	return id, nil
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
		h.logger.Error("escrow operation failed", "error", err)
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
