package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/scentra/orders/internal/config"
	kafkax "github.com/scentra/orders/internal/kafka"
	"github.com/scentra/orders/internal/logx"
	"github.com/scentra/orders/internal/orders"
	"github.com/scentra/orders/internal/postgres"
	"github.com/scentra/orders/internal/reaper"
	"github.com/scentra/orders/internal/reconcile"
	"github.com/scentra/orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-reconciler")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodPaid := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPaid, 1024, log)
	prodPaid.Start(ctx)
	prodCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, log)
	prodCancelled.Start(ctx)

	repo := &orders.Repo{DB: db}
	cons := &reconcile.Consumer{
		Handler:        &reconcile.Handler{Store: repo, Log: log},
		Redis:          rdb,
		ProducerPaid:   prodPaid,
		ProducerCancel: prodCancelled,
		ServiceName:    cfg.ServiceName + "-reconciler",
		Log:            log,
	}

	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReconcilerGroup,
		orders.TopicPaymentNotifications, cfg.ReconcilerWorkers, log)
	go func() {
		log.Info("notification consumer started",
			zap.String("group", cfg.ReconcilerGroup),
			zap.String("topic", orders.TopicPaymentNotifications),
			zap.Int("workers", cfg.ReconcilerWorkers))
		if err := consumer.Start(ctx, cons.HandleMessage); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	rp := &reaper.Reaper{
		Store:    repo,
		Timeout:  cfg.PendingTimeout,
		Interval: cfg.ReapInterval,
		Log:      log,
		OnCancelled: func(orderID int64) {
			o, err := repo.GetByID(context.Background(), orderID)
			if err != nil {
				return
			}
			ev := orders.Envelope{
				EventID:      uuid.NewString(),
				EventType:    orders.EventOrderCancelled,
				EventVersion: 1,
				OccurredAt:   time.Now().UTC(),
				Producer:     cfg.ServiceName + "-reconciler",
				Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{
					OrderID:     o.ID,
					OrderNumber: o.OrderNumber,
					Reason:      "STALE_TIMEOUT",
				}),
			}
			prodCancelled.Publish(orders.PartitionKey(o.SessionID), kafkax.MustMarshal(ev),
				kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)})
		},
	}
	go rp.Run(ctx)
	log.Info("stale order reaper started",
		zap.Duration("timeout", cfg.PendingTimeout),
		zap.Duration("interval", cfg.ReapInterval))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prodPaid.Close()
	prodCancelled.Close()
	prodPaid.WaitClosed()
	prodCancelled.WaitClosed()
}
