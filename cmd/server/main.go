package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheikh-saqib/card-balance-ledger/internal/cards"
	"github.com/sheikh-saqib/card-balance-ledger/internal/config"
	"github.com/sheikh-saqib/card-balance-ledger/internal/events"
	"github.com/sheikh-saqib/card-balance-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/card-balance-ledger/internal/handlers"
	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/logger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/storage"
)

func main() {
	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.L.Error("Failed to open store", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var publisher interfaces.EventPublisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers)
		logger.L.Info("Publishing balance events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	service := cards.NewService(store, publisher, cards.Options{
		Topic:         cfg.KafkaTopic,
		CardCacheTTL:  cfg.CardCacheTTL,
		ExtendToToday: cfg.ExtendToToday,
		MaxSpanDays:   cfg.MaxSpanDays,
	})

	router := handlers.NewRouter(handlers.NewCardHandler(service), handlers.RouterOptions{
		RequestTimeout: cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.L.Info("Starting server", "port", cfg.Port, "driver", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Graceful shutdown failed", "error", err)
	}
}
