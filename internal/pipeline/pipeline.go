package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// SensorSource reads every stored sensor row.
type SensorSource interface {
	LoadSensors(ctx context.Context) ([]domain.SensorRecord, error)
}

// ResultLoader receives the risk results of one pass.
type ResultLoader interface {
	LoadBatch(ctx context.Context, results []domain.RiskResult) error
}

// AuditWriter replaces the merged audit view.
type AuditWriter interface {
	Write(ctx context.Context, rows []domain.AuditRecord) error
}

// CacheResetter is implemented by lookup caches over the live feature store.
// The pipeline drops them at the start of every pass because the store may
// have grown.
type CacheResetter interface {
	Reset()
}

// Stages wires the pipeline's sources and sinks.
type Stages struct {
	Sensors  SensorSource
	Features domain.FeatureSource
	// Scorer supplies the thresholds. Each pass scores through a copy bound
	// to that pass's feature snapshot, matched with Match.
	Scorer *domain.Scorer
	Match  domain.MatchOptions
	Audit  AuditWriter

	// Loaders must all succeed for a pass to succeed.
	Loaders []ResultLoader
	// Publishers are best effort: failures are logged and the pass continues.
	Publishers []ResultLoader

	Cache CacheResetter // optional
}

// Summary describes a completed pass. Readings and Skipped count only the
// sensor rows that were new to this pass.
type Summary struct {
	RunID     string
	Readings  int
	Skipped   int
	Features  int
	AuditRows int
	Alerts    map[domain.AlertLevel]int
}

// Pipeline runs batch passes: score the sensor readings appended since the
// last successful delivery, hand those results to the loaders, then rebuild
// the merged audit log from the whole store.
type Pipeline struct {
	stages  Stages
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu        sync.Mutex
	delivered int // sensor rows already handed to every loader
}

// New creates a Pipeline with the given stages and observability.
func New(stages Stages, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		stages:  stages,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a pass has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a pass yet")
	}
	return nil
}

// Ready reports whether a pass has completed successfully.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// RunOnce executes a single batch pass.
func (p *Pipeline) RunOnce(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	summary, err := p.run(ctx)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return summary, err
	}
	p.metrics.RunsTotal.WithLabelValues("success").Inc()
	p.ready.Store(true)

	p.logger.Info("pass complete",
		"run_id", summary.RunID,
		"readings", summary.Readings,
		"skipped", summary.Skipped,
		"eo_features", summary.Features,
		"audit_rows", summary.AuditRows,
		"red", summary.Alerts[domain.AlertRed],
		"yellow", summary.Alerts[domain.AlertYellow],
		"duration", time.Since(start),
	)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Alerts: make(map[domain.AlertLevel]int)}
	logger := p.logger.With("run_id", summary.RunID)
	ctx = observability.WithRunID(ctx, summary.RunID)

	if p.stages.Cache != nil {
		p.stages.Cache.Reset()
	}

	records, err := p.stages.Sensors.LoadSensors(ctx)
	if err != nil {
		return summary, fmt.Errorf("load sensor readings: %w", err)
	}
	features, err := p.stages.Features.LoadFeatures(ctx)
	if err != nil {
		return summary, fmt.Errorf("load eo features: %w", err)
	}
	summary.Features = len(features)
	p.metrics.FeaturesLoaded.Set(float64(len(features)))

	// One snapshot serves every lookup of the pass.
	scorer := p.stages.Scorer.WithLookup(domain.NewLookup(domain.StaticFeatures(features), p.stages.Match))

	results, skipped, err := p.assess(ctx, logger, scorer, p.pending(logger, records))
	if err != nil {
		return summary, err
	}
	summary.Readings = len(results)
	summary.Skipped = skipped
	for _, r := range results {
		summary.Alerts[r.AlertLevel]++
	}

	for _, l := range p.stages.Loaders {
		if err := l.LoadBatch(ctx, results); err != nil {
			return summary, fmt.Errorf("load results: %w", err)
		}
	}
	p.delivered = len(records)
	for _, l := range p.stages.Publishers {
		if err := l.LoadBatch(ctx, results); err != nil {
			logger.Warn("publish results failed", "error", err, "results", len(results))
		}
	}

	rows, err := domain.MergeEvents(ctx, records, features, scorer)
	if err != nil {
		return summary, fmt.Errorf("merge events: %w", err)
	}
	if err := p.stages.Audit.Write(ctx, rows); err != nil {
		return summary, fmt.Errorf("write audit log: %w", err)
	}
	summary.AuditRows = len(rows)
	p.metrics.AuditRows.Set(float64(len(rows)))

	return summary, nil
}

// pending returns the sensor rows appended since the last delivery. The store
// is append-only; if it shrank it was replaced, and every row is new again.
func (p *Pipeline) pending(logger *slog.Logger, records []domain.SensorRecord) []domain.SensorRecord {
	if p.delivered > len(records) {
		logger.Warn("sensor store shrank, delivering every row again",
			"delivered", p.delivered, "rows", len(records))
		p.delivered = 0
	}
	return records[p.delivered:]
}

// assess scores every record that has at least one sensor measurement.
// Records without measurements are skipped and counted.
func (p *Pipeline) assess(ctx context.Context, logger *slog.Logger, scorer *domain.Scorer, records []domain.SensorRecord) ([]domain.RiskResult, int, error) {
	results := make([]domain.RiskResult, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if !rec.HasMeasurements() {
			logger.Debug("sensor row has no measurements, skipping", "timestamp", rec.RawTimestamp)
			skipped++
			continue
		}
		result, err := scorer.Assess(ctx, rec.Reading())
		if err != nil {
			p.metrics.AssessErrors.Inc()
			return nil, skipped, fmt.Errorf("assess reading %q: %w", rec.RawTimestamp, err)
		}
		p.metrics.ReadingsProcessed.Inc()
		p.metrics.FloodRisk.Observe(result.FloodRisk)
		p.metrics.AlertsRaised.WithLabelValues(string(result.AlertLevel)).Inc()
		results = append(results, result)
	}
	return results, skipped, nil
}

// RunEvery executes a pass immediately and then on every tick of interval
// until ctx is cancelled. A failed pass is logged and retried on the next tick.
func (p *Pipeline) RunEvery(ctx context.Context, clock clockwork.Clock, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("run interval must be positive, got %s", interval)
	}
	p.logger.Info("scheduler started", "interval", interval)

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}
