package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published to the shopfront event stream. Consumers can
// rebuild every state transition from these without polling.
const (
	EventProductCreated         = "product.created"
	EventProductPriceUpdated    = "product.price_updated"
	EventProductQuantityUpdated = "product.quantity_updated"
	EventProductRemoved         = "product.removed"
	EventProductPurchased       = "product.purchased"
	EventCoOrderCreated         = "coorder.created"
	EventInstalmentDeposited    = "coorder.instalment_deposited"
	EventCoOrderFulfilled       = "coorder.fulfilled"
	EventCoOrderWithdrawn       = "coorder.withdrawn"
	EventCoOrderRemoved         = "coorder.removed"
	EventCoOrderCleaned         = "coorder.cleaned"
	EventTreasuryWithdrawn      = "treasury.withdrawn"
)

const EventsTopic = "shopfront.events"

type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Producer:   producer,
		Payload:    data,
	}, nil
}

func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	err := json.Unmarshal(env.Payload, &t)
	return t, err
}

type ProductEventPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Price     int64  `json:"price,omitempty"`
	Quantity  int64  `json:"quantity"`
}

type PurchasePayload struct {
	ProductID  string `json:"product_id"`
	Buyer      string `json:"buyer"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
}

type CoOrderPayload struct {
	OrderID    int64  `json:"order_id"`
	Buyer      string `json:"buyer"`
	ProductID  string `json:"product_id"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"total_price"`
	TotalPaid  int64  `json:"total_paid"`
}

type InstalmentPayload struct {
	OrderID     int64  `json:"order_id"`
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
	TotalPaid   int64  `json:"total_paid"`
}

type WithdrawalPayload struct {
	OrderID int64  `json:"order_id"`
	Buyer   string `json:"buyer"`
	Amount  int64  `json:"amount"`
}

type TreasuryPayload struct {
	Operator string `json:"operator"`
	Amount   int64  `json:"amount"`
}
