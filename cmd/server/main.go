package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ssemakov/storefront/internal/config"
	"github.com/ssemakov/storefront/internal/es"
	"github.com/ssemakov/storefront/internal/handlers"
	"github.com/ssemakov/storefront/internal/locks"
	"github.com/ssemakov/storefront/internal/logging"
	"github.com/ssemakov/storefront/internal/metrics"
	loggingmw "github.com/ssemakov/storefront/internal/middleware/logging"
	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/order"
	"github.com/ssemakov/storefront/internal/payment"
	"github.com/ssemakov/storefront/internal/search"
	"github.com/ssemakov/storefront/internal/service/token"
	"github.com/ssemakov/storefront/internal/store"
	"github.com/ssemakov/storefront/internal/store/gormstore"
	"github.com/ssemakov/storefront/internal/store/jsonstore"
	httpserver "github.com/ssemakov/storefront/internal/transport/http"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	var events notify.Events = notify.NopEvents{}
	var producer *notify.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = notify.NewProducer(cfg.KafkaBrokers,
			[]string{"user_events", "cart_events", "product_events", notify.OrderEventsTopic})
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		events = producer
	}

	var sink notify.Sink = &notify.LogSink{Logger: logger}
	if producer != nil {
		sink = &notify.KafkaSink{Events: producer}
	}

	var gateway payment.Gateway = payment.OfflineGateway{}
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeAPIURL, cfg.StripeSecretKey)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	tokens := &token.TokenService{
		Store:         st,
		JWTSecret:     []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
	}

	orderSvc := order.NewService(st, locks.NewManager(), sink, gateway, m)

	deps := &httpserver.Deps{
		AuthHandler:     &handlers.AuthHandler{Store: st, Tokens: tokens, Events: events},
		ProductHandler:  &handlers.ProductHandler{Store: st, Events: events},
		CategoryHandler: &handlers.CategoryHandler{Store: st, Events: events},
		CartHandler:     &handlers.CartHandler{Store: st, Events: events},
		OrderHandler:    &handlers.OrderHandler{Svc: orderSvc, Store: st},
		TokenService:    tokens,
		Registry:        registry,
	}

	if cfg.ESUrl != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		deps.ProductHandler.Indexer = &search.Indexer{ES: esClient, Index: search.ProductIndex}
		deps.SearchHandler = &handlers.SearchHandler{ES: esClient, Index: search.ProductIndex}
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("server started", "port", cfg.ServerPort, "backend", cfg.StoreBackend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if closeStore != nil {
		if err := closeStore(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.StoreBackend {
	case "json":
		st, err := jsonstore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	case "postgres":
		db, err := gormstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := gormstore.Migrate(db); err != nil {
			return nil, nil, err
		}
		closeFn := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return gormstore.New(db), closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}
