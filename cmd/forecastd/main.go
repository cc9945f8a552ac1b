package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/bloom-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/bloom-forecast-service/internal/adapter/rscript"
	"github.com/couchcryptid/bloom-forecast-service/internal/config"
	"github.com/couchcryptid/bloom-forecast-service/internal/domain"
	"github.com/couchcryptid/bloom-forecast-service/internal/forecast"
	"github.com/couchcryptid/bloom-forecast-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Errors raised inside R are not retried.
	runner := rscript.NewExecRunner(
		rscript.WithRetry(cfg.EngineRetries, time.Second),
		rscript.WithRetryCondition(func(err error) bool {
			var exitErr *rscript.ExitError
			return !errors.As(err, &exitErr)
		}),
	)
	client := rscript.NewClient(cfg.RscriptPath, cfg.RSourcePath, cfg.EngineTimeout, runner, metrics, logger)

	var predictor domain.Predictor = client
	if cfg.CacheSize > 0 {
		predictor = rscript.NewCachedPredictor(client, cfg.CacheSize, metrics)
		logger.Info("forecast cache enabled", "cache_size", cfg.CacheSize)
	}

	var (
		publisher forecast.Publisher
		writer    *kafkaadapter.Writer
	)
	if cfg.PublishEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("forecast publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaForecastTopic)
	} else {
		logger.Info("forecast publishing disabled")
	}

	svc := forecast.New(predictor, publisher, forecast.Defaults{ModelPath: cfg.ModelPath, SDPath: cfg.SDPath}, logger, metrics)

	writeTimeout := cfg.EngineTimeout*time.Duration(cfg.EngineRetries+1) + 10*time.Second
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, svc, writeTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
