package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockbot/market-data-service/internal/alerts"
	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/api"
	"github.com/stockbot/market-data-service/internal/config"
	"github.com/stockbot/market-data-service/internal/database"
	"github.com/stockbot/market-data-service/internal/kafka"
	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/marketdata"
	"github.com/stockbot/market-data-service/internal/scheduler"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "db/migrations"
	}
	if err := db.RunMigrations(migrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	provider := alpaca.NewClient(cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey,
		alpaca.WithBaseURL(cfg.Alpaca.BaseURL),
		alpaca.WithRateLimit(cfg.Alpaca.RequestsPerMinute),
		alpaca.WithLogger(logger),
	)

	service := marketdata.NewService(db, provider, logger)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer producer.Close()

	var cooldown alerts.Cooldown
	redisCooldown, err := alerts.NewRedisCooldown(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Alerts.Cooldown)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, significant moves will not be rate limited")
		cooldown = alerts.NoCooldown{}
	} else {
		defer redisCooldown.Close()
		cooldown = redisCooldown
	}
	publisher := alerts.NewPublisher(producer, cooldown, cfg.Alerts.MoveThresholdPercent, logger)

	sched := scheduler.New(service, db, service, publisher,
		cfg.Scheduler.PriceRefreshInterval,
		cfg.Scheduler.CleanupInterval,
		cfg.Scheduler.RefreshBatchSize,
		logger,
	)
	go sched.Run(ctx)

	handler := api.NewHandler(service, logger)
	router := api.SetupRoutes(handler)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	logger.Info().
		Str("addr", httpServer.Addr).
		Str("kafka_topic", cfg.Kafka.Topic).
		Msg("market data service started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErrCh:
		logger.Fatal().Err(err).Msg("http server terminated unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("market data service stopped")
}
