package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hexabank/account-service/internal/config"
	"github.com/hexabank/account-service/internal/db"
	"github.com/hexabank/account-service/internal/domain"
	"github.com/hexabank/account-service/internal/events"
	"github.com/hexabank/account-service/internal/httpapi"
	"github.com/hexabank/account-service/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logg.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logg.Fatal("failed to create database pool", "error", err)
	}
	defer pool.Close()
	logg.Info("database connection pool initialized")

	accountRepo := db.NewAccountRepository(pool.Pool)
	activityRepo := db.NewActivityRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool)

	// Event publishing is optional: no broker URL means no publisher.
	var publisher domain.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			logg.Fatal("failed to create RabbitMQ publisher", "error", err)
		}
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
		logg.Info("RabbitMQ publisher initialized",
			"exchange", cfg.RabbitMQ.Exchange,
			"routing_key", cfg.RabbitMQ.RoutingKey,
		)
	}

	service := domain.NewAccountService(
		accountRepo,
		activityRepo,
		txManager,
		publisher,
		domain.SystemClock{},
		logg,
		domain.Limits{
			DailyWithdraw:          cfg.Account.DailyWithdrawLimit,
			DailyTransfer:          cfg.Account.DailyTransferLimit,
			TransferFeeBasisPoints: cfg.Account.TransferFeeBasisPoints,
		},
		cfg.Account.MaxRetryAttempts,
	)
	logg.Info("account service initialized",
		"daily_withdraw_limit", cfg.Account.DailyWithdrawLimit,
		"daily_transfer_limit", cfg.Account.DailyTransferLimit,
		"max_retry_attempts", cfg.Account.MaxRetryAttempts,
	)

	router := httpapi.NewRouter(httpapi.NewHandler(service))

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logg.Info("account-service HTTP server starting", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("HTTP server shutdown failed", "error", err)
	}
	logg.Info("HTTP server stopped")
}
