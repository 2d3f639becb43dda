package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kigalimart/storefront/internal/config"
	"github.com/kigalimart/storefront/internal/events"
	kafkax "github.com/kigalimart/storefront/internal/kafka"
	"github.com/kigalimart/storefront/internal/logx"
	"github.com/kigalimart/storefront/internal/notifications"
	"github.com/kigalimart/storefront/internal/postgres"
	"github.com/kigalimart/storefront/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-notifier"
	log := logx.New(cfg.LogLevel, name)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	notify := &notifications.Service{
		Store: &notifications.Repo{DB: db},
		Pub:   &notifications.Broker{R: rdb},
		Log:   log,
	}
	h := &notifications.EventHandler{
		Notifier: notify,
		Seen:     &notifications.RedisSeen{R: rdb, Service: name},
		Log:      log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, events.Topics, cfg.NotifierWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("notifier consumer started", "group", cfg.NotifierGroup, "topics", events.Topics, "workers", cfg.NotifierWorkers)
		if err := cons.Start(ctx, h.HandleMessage); err != nil {
			log.Error("consumer exit", "error", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("consumer did not stop in time")
	}
}
