package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/cart"
	"github.com/kigalimart/storefront/internal/catalog"
	"github.com/kigalimart/storefront/internal/config"
	"github.com/kigalimart/storefront/internal/httpx"
	kafkax "github.com/kigalimart/storefront/internal/kafka"
	"github.com/kigalimart/storefront/internal/logx"
	"github.com/kigalimart/storefront/internal/notifications"
	"github.com/kigalimart/storefront/internal/orders"
	"github.com/kigalimart/storefront/internal/postgres"
	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/kigalimart/storefront/internal/riders"
	"github.com/kigalimart/storefront/internal/settings"
	"github.com/kigalimart/storefront/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("migrate", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)
	emitter := &kafkax.Emitter{P: prod, Service: cfg.ServiceName}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	policy, err := auth.NewPolicy()
	if err != nil {
		log.Error("rbac policy", "error", err)
		os.Exit(1)
	}

	fees := cart.Fees{Delivery: cfg.DeliveryFee, FreeThreshold: cfg.FreeDeliveryThreshold}
	userSvc := &users.Service{Store: &users.Repo{DB: db}, Tokens: tokens}
	catalogSvc := &catalog.Service{Store: &catalog.Repo{DB: db}}
	settingsSvc := &settings.Service{Store: &settings.Repo{DB: db}, Cache: &settings.RedisCache{R: rdb}, Log: log}
	cartSvc := &cart.Service{Store: &cart.RedisStore{R: rdb}, Pricer: catalogSvc, Fees: fees}
	orderSvc := &orders.Service{
		Store:    &orders.Repo{DB: db},
		Cache:    &orders.RedisCache{R: rdb},
		Events:   emitter,
		Settings: settingsSvc,
		Cart:     cartSvc,
		Fees:     fees,
		Log:      log,
	}
	riderSvc := &riders.Service{
		Store:  &riders.Repo{DB: db},
		Orders: orderSvc,
		Roles:  userSvc,
		Events: emitter,
		Log:    log,
	}
	orderSvc.Dispatch = riderSvc
	broker := &notifications.Broker{R: rdb}
	notifySvc := &notifications.Service{Store: &notifications.Repo{DB: db}, Pub: broker, Log: log}

	api := &httpx.Server{
		Users:           userSvc,
		Catalog:         catalogSvc,
		Cart:            cartSvc,
		Orders:          orderSvc,
		Riders:          riderSvc,
		Notifications:   notifySvc,
		Stream:          broker,
		Settings:        settingsSvc,
		Tokens:          tokens,
		Policy:          policy,
		Log:             log,
		LoginRatePerMin: cfg.LoginRatePerMin,
	}

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}

	// graceful shutdown
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events
	cancel()
	prod.WaitClosed()
}
