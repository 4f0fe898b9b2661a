package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/config"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/httpx"
	kafkax "github.com/wednesdev-id/semindo-grow-hub-sub004/internal/kafka"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/notify"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/orders"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/payment"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/postgres"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store    orders.Store
		catalog  orders.Catalog
		resv     orders.ReservationStore
		payStore payment.Store
		sink     notify.Sink
		emitter  *orders.Emitter
		rdb      *redis.Client

		producers []*kafkax.Producer
	)

	switch cfg.Storage {
	case "memory":
		// Mode demo/dev: semua state in-process, tanpa infra eksternal.
		inv := orders.NewMemInventory(demoProducts()...)
		store = orders.NewMemStore()
		catalog = inv
		resv = inv
		payStore = payment.NewMemoryStore()
		sink = &notify.LogSink{Log: logger}
		logger.Info("storage=memory: postgres/redis/kafka dilewati")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()

		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()

		pEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
		pEvents.Start(ctx)
		pNotif := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotification, 1024, logger)
		pNotif.Start(ctx)
		producers = append(producers, pEvents, pNotif)

		repo := &orders.ReservationRepo{DB: db}
		store = &orders.Repo{DB: db}
		catalog = repo
		resv = repo
		payStore = &payment.PgStore{DB: db}
		sink = notify.NewKafkaSink(pNotif)
		emitter = orders.NewEmitter(pEvents, cfg.ServiceName)
	}

	sim := payment.NewSimulator(payStore, logger)

	svc := orders.NewService(store, catalog, resv, sim, sink, emitter, logger,
		orders.WithPaymentTTL(cfg.PaymentTTL))

	// Back-channel gateway -> lifecycle: event hasil simulasi masuk lewat
	// jalur yang sama dengan endpoint simulate.
	sim.Bind(func(ctx context.Context, orderID string, success bool) (bool, error) {
		_, applied, err := svc.ApplyGatewayEvent(ctx, orderID, success)
		return applied, err
	})

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Svc:     svc,
		Catalog: catalog,
		Sim:     sim,
		Redis:   rdb,
		Log:     logger,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // stop terima pesan -> flush & close writer
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed() // drain
	}
}

// demoProducts mengisi katalog mode memory supaya API langsung bisa dicoba.
func demoProducts() []orders.Product {
	return []orders.Product{
		{ID: "prod-kopi-gayo", SellerID: "seller-aceh-01", Name: "Kopi Gayo 250g", Price: 85000, Stock: 120},
		{ID: "prod-batik-tulis", SellerID: "seller-solo-07", Name: "Batik Tulis Lawasan", Price: 450000, Stock: 8},
		{ID: "prod-keripik-tempe", SellerID: "seller-malang-03", Name: "Keripik Tempe 500g", Price: 32000, Stock: 300},
		{ID: "prod-madu-hutan", SellerID: "seller-aceh-01", Name: "Madu Hutan 500ml", Price: 120000, Stock: 45},
	}
}
