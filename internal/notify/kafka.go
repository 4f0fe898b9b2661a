package notify

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/wednesdev-id/semindo-grow-hub-sub004/internal/kafka"
)

// KafkaSink menaruh event ke topic notifikasi lewat producer async;
// pengiriman sesungguhnya best-effort di background.
type KafkaSink struct {
	p *kafkax.Producer
}

func NewKafkaSink(p *kafkax.Producer) *KafkaSink {
	return &KafkaSink{p: p}
}

func (s *KafkaSink) Send(_ context.Context, ev Event) error {
	// partition key = order_id, urutan notifikasi per order terjaga
	s.p.Publish([]byte(ev.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-notification-kind", Value: []byte(ev.Kind)},
	)
	return nil
}
