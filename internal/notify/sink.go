// Package notify adalah batas keluar ke notification sink: deliver eventually,
// kegagalan dicatat, tidak pernah di-retry sinkron oleh caller.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderCancellation Kind = "order_cancellation"
	KindOrderExpired      Kind = "order_expired"
	KindRefundIntent      Kind = "refund_intent"
)

type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	OrderID    string    `json:"order_id"`
	BuyerID    string    `json:"buyer_id"`
	Total      int64     `json:"total"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(kind Kind, orderID, buyerID string, total int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OrderID:    orderID,
		BuyerID:    buyerID,
		Total:      total,
		OccurredAt: time.Now().UTC(),
	}
}

// Sink menerima event fire-and-forget. Send tidak boleh memblokir transisi
// state yang memicunya; error hanya untuk dicatat caller.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// LogSink: fallback tanpa broker (mode memory / test manual).
type LogSink struct {
	Log *zap.Logger
}

func (s *LogSink) Send(_ context.Context, ev Event) error {
	s.Log.Info("notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("order_id", ev.OrderID),
		zap.String("buyer_id", ev.BuyerID),
	)
	return nil
}
