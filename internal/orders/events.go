package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/wednesdev-id/semindo-grow-hub-sub004/internal/kafka"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventPaymentFailed  = "PaymentFailed"
	EventOrderExpired   = "OrderExpired"
	EventOrderCancelled = "OrderCancelled"
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID        string      `json:"order_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	BuyerID        string      `json:"buyer_id"`
	Items          []OrderItem `json:"items"`
	Total          int64       `json:"total"`
	Bank           string      `json:"bank"`
	VANumber       string      `json:"va_number"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

type OrderPaidPayload struct {
	OrderID string `json:"order_id"`
	BuyerID string `json:"buyer_id"`
	Total   int64  `json:"total"`
}

type PaymentFailedPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderExpiredPayload struct {
	OrderID   string    `json:"order_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

type OrderCancelledPayload struct {
	OrderID      string `json:"order_id"`
	CancelledBy  string `json:"cancelled_by"`
	Reason       string `json:"reason"`
	RefundIntent bool   `json:"refund_intent"`
}

type FulfillmentPayload struct {
	OrderID  string `json:"order_id"`
	SellerID string `json:"seller_id"`
	Status   string `json:"status"`
}

// Publisher is the slice of the async kafka producer the emitter needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Emitter membungkus publikasi domain event; nil-safe supaya service bisa
// jalan tanpa broker (mode memory / unit test).
type Emitter struct {
	pub      Publisher
	producer string
	now      func() time.Time
}

func NewEmitter(pub Publisher, producer string) *Emitter {
	return &Emitter{pub: pub, producer: producer, now: time.Now}
}

func (e *Emitter) Emit(eventType, orderID string, payload any) {
	if e == nil || e.pub == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now().UTC(),
		Producer:      e.producer,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	e.pub.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
