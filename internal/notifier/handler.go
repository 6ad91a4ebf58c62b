// Package notifier consumes the shopfront event stream and turns
// buyer-facing transitions into emails.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopfront/ledger/internal/domain"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

// Handle routes the envelope by event type. Unknown types are skipped
// so new producers can deploy ahead of this consumer.
func (h *NotificationHandler) Handle(ctx context.Context, env domain.Envelope) error {
	switch env.EventType {
	case domain.EventProductPurchased:
		return h.handlePurchase(ctx, env)
	case domain.EventCoOrderFulfilled:
		return h.handleFulfilment(ctx, env)
	case domain.EventCoOrderWithdrawn:
		return h.handleWithdrawal(ctx, env)
	default:
		return nil
	}
}

func (h *NotificationHandler) handlePurchase(ctx context.Context, env domain.Envelope) error {
	payload, err := domain.UnwrapPayload[domain.PurchasePayload](env)
	if err != nil {
		return fmt.Errorf("unwrap purchase event: %w", err)
	}

	h.logger.Info("processing purchase event", "product_id", payload.ProductID, "buyer", payload.Buyer)

	body := map[string]string{
		"to":      payload.Buyer + "@example.com",
		"subject": "Purchase Receipt",
		"body": fmt.Sprintf("You bought %d unit(s) of product %s for %d.",
			payload.Quantity, payload.ProductID, payload.TotalPrice),
	}
	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) handleFulfilment(ctx context.Context, env domain.Envelope) error {
	payload, err := domain.UnwrapPayload[domain.CoOrderPayload](env)
	if err != nil {
		return fmt.Errorf("unwrap fulfilment event: %w", err)
	}

	h.logger.Info("processing fulfilment event", "order_id", payload.OrderID, "buyer", payload.Buyer)

	orderID := strconv.FormatInt(payload.OrderID, 10)
	body := map[string]string{
		"to":      payload.Buyer + "@example.com",
		"subject": "Co-Order Fulfilled: " + orderID,
		"body": fmt.Sprintf("Co-order %s is fully paid. %d unit(s) of product %s are on their way.",
			orderID, payload.Quantity, payload.ProductID),
	}
	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) handleWithdrawal(ctx context.Context, env domain.Envelope) error {
	payload, err := domain.UnwrapPayload[domain.WithdrawalPayload](env)
	if err != nil {
		return fmt.Errorf("unwrap withdrawal event: %w", err)
	}

	h.logger.Info("processing withdrawal event", "order_id", payload.OrderID, "buyer", payload.Buyer)

	orderID := strconv.FormatInt(payload.OrderID, 10)
	body := map[string]string{
		"to":      payload.Buyer + "@example.com",
		"subject": "Co-Order Refund: " + orderID,
		"body": fmt.Sprintf("Your deposits of %d on co-order %s have been refunded.",
			payload.Amount, orderID),
	}
	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
