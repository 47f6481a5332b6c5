package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/flood-risk-etl/internal/adapter/featurecache"
	httpadapter "github.com/couchcryptid/flood-risk-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
	"github.com/couchcryptid/flood-risk-etl/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (non-fatal if missing).
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		logger.Debug("no .env file loaded", "error", envErr)
	}
	metrics := observability.NewMetrics()

	thresholds, err := config.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		logger.Error("failed to load thresholds", "error", err, "path", cfg.ThresholdsPath)
		os.Exit(1)
	}

	logger.Info("thresholds loaded",
		"calibrated_water_level", thresholds.CalibratedWaterLevel,
		"rainfall_limit", thresholds.RainfallLimit,
		"humidity_limit", thresholds.HumidityLimit,
		"alert_red", thresholds.AlertRed,
		"alert_yellow", thresholds.AlertYellow,
	)

	// Batch passes bind their own snapshot lookup; this cached live lookup
	// serves POST /score between passes.
	features := csvstore.NewFeatureStore(cfg.EOFeaturesPath)
	matchOpts := domain.MatchOptions{Tolerance: cfg.MatchTolerance, Limit: cfg.MatchLimit}
	lookup := featurecache.NewCachedLookup(domain.NewLookup(features, matchOpts), cfg.FeatureCacheSize, metrics)
	scorer, err := domain.NewScorer(thresholds, lookup)
	if err != nil {
		logger.Error("failed to create scorer", "error", err)
		os.Exit(1)
	}

	stages := pipeline.Stages{
		Sensors:  csvstore.NewSensorStore(cfg.SensorDataPath),
		Features: features,
		Scorer:   scorer,
		Match:    matchOpts,
		Audit:    csvstore.NewAuditLog(cfg.AuditLogPath),
		Loaders: []pipeline.ResultLoader{
			pipeline.NewNotifier(logger),
			csvstore.NewEventLog(cfg.EventLogPath),
		},
		Cache: lookup,
	}

	// Alert publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var alerts *kafkaadapter.AlertWriter
	if cfg.KafkaEnabled {
		alerts = kafkaadapter.NewAlertWriter(cfg, metrics, logger)
		stages.Publishers = append(stages.Publishers, alerts)
		logger.Info("kafka alert publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	} else {
		logger.Info("kafka alert publishing disabled")
	}

	p := pipeline.New(stages, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	if cfg.RunInterval == 0 {
		_, runErr = p.RunOnce(ctx)
	} else {
		runErr = serve(ctx, cfg, p, scorer, logger)
	}

	if alerts != nil {
		if err := alerts.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
	logger.Info("shutdown complete")
}

// serve runs the scheduled pipeline alongside the HTTP server until ctx is
// cancelled or either of them fails.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, scorer *domain.Scorer, logger *slog.Logger) error {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, scorer, logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return p.RunEvery(gctx, clockwork.NewRealClock(), cfg.RunInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
