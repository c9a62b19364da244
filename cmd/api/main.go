package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scentra/orders/internal/config"
	"github.com/scentra/orders/internal/fx"
	"github.com/scentra/orders/internal/httpx"
	kafkax "github.com/scentra/orders/internal/kafka"
	"github.com/scentra/orders/internal/logx"
	"github.com/scentra/orders/internal/orders"
	"github.com/scentra/orders/internal/postgres"
	"github.com/scentra/orders/internal/pricing"
	"github.com/scentra/orders/internal/promo"
	"github.com/scentra/orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prodCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prodCreated.Start(ctx)
	prodCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, log)
	prodCancelled.Start(ctx)
	prodRefunded := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderRefunded, 256, log)
	prodRefunded.Start(ctx)
	prodNotif := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentNotifications, 256, log)
	prodNotif.Start(ctx)

	repo := &orders.Repo{DB: db}
	calc := &pricing.Calculator{
		Products:           repo,
		Discounts:          &promo.Source{Redis: rdb},
		Rates:              &fx.Source{Redis: rdb},
		SettlementCurrency: cfg.SettlementCurrency,
		FallbackRate:       decimal.RequireFromString(cfg.FXFallbackRate),
		FallbackFeePct:     decimal.RequireFromString(cfg.FXFallbackFeePct),
		MaxQtyPerLine:      cfg.MaxQtyPerLine,
		Log:                log,
	}
	svc := &orders.Service{Store: repo, Pricer: calc, Log: log}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Svc:            svc,
		Repo:           repo,
		Redis:          rdb,
		ProducerCreate: prodCreated,
		ProducerCancel: prodCancelled,
		ProducerRefund: prodRefunded,
		Service:        cfg.ServiceName,
		Log:            log,
	}
	oh.Register(router)
	wh := &httpx.WebhookHandler{Producer: prodNotif, Service: cfg.ServiceName, Log: log}
	wh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prodCreated.Close()
	prodCancelled.Close()
	prodRefunded.Close()
	prodNotif.Close()
	cancel()
	prodCreated.WaitClosed()
	prodCancelled.WaitClosed()
	prodRefunded.WaitClosed()
	prodNotif.WaitClosed()
}
