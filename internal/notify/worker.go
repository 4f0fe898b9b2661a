package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/redisx"
)

// Deliverer mengkonsumsi topic notifikasi dan "mengirim" ke penerima.
// Di sini pengiriman = log terstruktur; integrasi email/WA tinggal mengganti
// deliver().
type Deliverer struct {
	Redis       *redis.Client
	Log         *zap.Logger
	ServiceName string
}

// HandleNotification dipasang sebagai handler consumer.
func (d *Deliverer) HandleNotification(ctx context.Context, m kafkago.Message) error {
	var ev Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		// pesan rusak tidak akan pernah bisa diproses; catat lalu commit
		d.Log.Warn("drop malformed notification", zap.Error(err))
		return nil
	}

	// dedup via redis pakai event id
	dkey := fmt.Sprintf(redisx.KeyDedup, d.ServiceName, ev.ID)
	exists, _ := redisx.Exists(ctx, d.Redis, dkey)
	if exists {
		return nil
	}
	_ = d.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	return d.deliver(ev)
}

func (d *Deliverer) deliver(ev Event) error {
	d.Log.Info("deliver notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("order_id", ev.OrderID),
		zap.String("buyer_id", ev.BuyerID),
		zap.Int64("total", ev.Total),
		zap.String("reason", ev.Reason),
	)
	return nil
}
