package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	w     *kafka.Writer
	log   *zap.Logger
	inbox chan kafka.Message

	// inbox tidak pernah di-close; shutdown disignal lewat stopCh supaya
	// Publish yang sedang in-flight tidak pernah menulis ke channel tertutup.
	stopOnce sync.Once
	stopCh   chan struct{}
	closeCh  chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true, // fire-and-forget untuk throughput; error dicatat di loop
		},
		log:     log.Named("kafka-producer").With(zap.String("topic", topic)),
		inbox:   make(chan kafka.Message, buf),
		stopCh:  make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Close()
				p.drainAndExit()
				return
			case <-p.stopCh:
				p.drainAndExit()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

// drainAndExit nge-flush sisa inbox lalu menutup writer.
func (p *Producer) drainAndExit() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			_ = p.w.Close()
			close(p.closeCh)
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		// best-effort transport: pengiriman gagal hanya dicatat, tidak diulang
		p.log.Warn("write message", zap.Error(err))
	}
}

// Publish antre pesan untuk dikirim async. Setelah Close, pesan di-drop
// dengan catatan; tidak pernah panic.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case <-p.stopCh:
		p.log.Warn("producer closed, message dropped")
	case p.inbox <- m:
	}
}

// Close memberi sinyal stop supaya goroutine nge-flush sisa pesan lalu exit
// rapi. Idempotent; aman dipanggil bersamaan dengan cancel context.
func (p *Producer) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// WaitClosed menunggu sampai goroutine selesai.
func (p *Producer) WaitClosed() { <-p.closeCh }
