package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/spottr/hazard-intel/internal/adapter/httpapi"
	kafkaadapter "github.com/spottr/hazard-intel/internal/adapter/kafka"
	"github.com/spottr/hazard-intel/internal/config"
	"github.com/spottr/hazard-intel/internal/engine"
	"github.com/spottr/hazard-intel/internal/ingest"
	"github.com/spottr/hazard-intel/internal/observability"
)

// alwaysReady satisfies the readiness check when the Kafka ingest loop
// is disabled and the in-memory engine is the whole service.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	eng := engine.New(engine.Config{
		VerificationThreshold: cfg.VerificationThreshold,
		DenialThreshold:       cfg.DenialThreshold,
		Expiry:                cfg.HazardExpiry,
		ProximityRadiusMeters: cfg.ProximityRadiusMeters,
		SweepInterval:         cfg.SweepInterval,
	}, clockwork.NewRealClock(), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		ready     httpapi.ReadinessChecker = alwaysReady{}
		publisher httpapi.Publisher
		reader    *kafkaadapter.Reader
		writer    *kafkaadapter.Writer
	)

	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer

		runner := ingest.New(reader, eng, writer, logger, metrics)
		ready = runner

		go func() {
			if err := runner.Run(ctx); err != nil {
				logger.Error("ingest loop error", "error", err)
			}
		}()
		logger.Info("kafka ingestion enabled",
			"source_topic", cfg.KafkaSourceTopic, "sink_topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka ingestion disabled, http boundary only")
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, eng, publisher, ready, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start expiry sweeper.
	go eng.RunSweeper(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
