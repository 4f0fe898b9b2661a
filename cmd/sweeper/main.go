package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/config"
	kafkax "github.com/wednesdev-id/semindo-grow-hub-sub004/internal/kafka"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/notify"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/orders"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/payment"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/postgres"
	"github.com/wednesdev-id/semindo-grow-hub-sub004/internal/sweeper"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	pEvents := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	pEvents.Start(ctx)
	pNotif := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotification, 1024, logger)
	pNotif.Start(ctx)

	repo := &orders.ReservationRepo{DB: db}
	sim := payment.NewSimulator(&payment.PgStore{DB: db}, logger)
	svc := orders.NewService(&orders.Repo{DB: db}, repo, repo, sim,
		notify.NewKafkaSink(pNotif),
		orders.NewEmitter(pEvents, cfg.ServiceName+"-sweeper"),
		logger,
		orders.WithPaymentTTL(cfg.PaymentTTL))

	sw := sweeper.New(svc, cfg.SweepInterval, cfg.SweepLimit, logger)
	go func() {
		logger.Info("expiry sweeper started",
			zap.Duration("interval", cfg.SweepInterval),
			zap.Int("limit", cfg.SweepLimit))
		sw.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down sweeper...")
	pEvents.Close() // stop terima pesan -> flush & close writer
	pNotif.Close()
	cancel()
	pEvents.WaitClosed() // drain
	pNotif.WaitClosed()
}
