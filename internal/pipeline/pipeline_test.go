package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
	"github.com/couchcryptid/flood-risk-etl/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSensors struct {
	records []domain.SensorRecord
	err     error
	passes  chan struct{}
}

func (m *mockSensors) LoadSensors(_ context.Context) ([]domain.SensorRecord, error) {
	if m.passes != nil {
		m.passes <- struct{}{}
	}
	return m.records, m.err
}

type mockLoader struct {
	loaded [][]domain.RiskResult
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, results []domain.RiskResult) error {
	m.loaded = append(m.loaded, results)
	return m.err
}

type mockAudit struct {
	rows []domain.AuditRecord
	err  error
}

func (m *mockAudit) Write(_ context.Context, rows []domain.AuditRecord) error {
	m.rows = rows
	return m.err
}

type mockCache struct{ resets int }

func (m *mockCache) Reset() { m.resets++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testThresholds() domain.Thresholds {
	return domain.Thresholds{
		WaterLevelM: 80,
		RainfallMM:  30,
		FloodIndex:  0.75,
		AlertRed:    0.75,
		AlertYellow: 0.4,
	}
}

var eoStore = domain.StaticFeatures{
	{RawTimestamp: "2026-01-15T12:00:00Z", SoilSaturation: domain.Some(0.8), FloodExtent: domain.Some(0.3), WetnessTrend: domain.Some(domain.TrendWetting)},
	{RawTimestamp: "2026-01-15T18:00:00Z", SoilSaturation: domain.Some(0.2), FloodExtent: domain.Some(0.0), WetnessTrend: domain.Some(domain.TrendDrying)},
}

func newScorer(t *testing.T) *domain.Scorer {
	t.Helper()
	s, err := domain.NewScorer(testThresholds(), domain.NewLookup(eoStore, domain.MatchOptions{}))
	require.NoError(t, err)
	return s
}

func sensorRows() []domain.SensorRecord {
	return []domain.SensorRecord{
		{RawTimestamp: "2026-01-15T12:00:00Z", WaterLevel: domain.Some(60.0), Rainfall: domain.Some(25.0), Humidity: domain.Some(90.0)},
		{RawTimestamp: "2026-01-15T18:00:00Z", WaterLevel: domain.Some(5.0), Rainfall: domain.Some(0.0), Humidity: domain.Some(40.0)},
		{RawTimestamp: "2026-01-15T19:00:00Z"},
	}
}

type fixture struct {
	sensors   *mockSensors
	loader    *mockLoader
	publisher *mockLoader
	audit     *mockAudit
	cache     *mockCache
	metrics   *observability.Metrics
	pipeline  *pipeline.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sensors:   &mockSensors{records: sensorRows()},
		loader:    &mockLoader{},
		publisher: &mockLoader{},
		audit:     &mockAudit{},
		cache:     &mockCache{},
		metrics:   observability.NewMetricsForTesting(),
	}
	f.pipeline = pipeline.New(pipeline.Stages{
		Sensors:    f.sensors,
		Features:   eoStore,
		Scorer:     newScorer(t),
		Audit:      f.audit,
		Loaders:    []pipeline.ResultLoader{f.loader},
		Publishers: []pipeline.ResultLoader{f.publisher},
		Cache:      f.cache,
	}, discardLogger(), f.metrics)
	return f
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	f := newFixture(t)

	summary, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Readings)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Features)
	assert.Equal(t, 1, summary.Alerts[domain.AlertRed])
	assert.Equal(t, 1, summary.Alerts[domain.AlertGreen])
	assert.Equal(t, 1, f.cache.resets)

	require.Len(t, f.loader.loaded, 1)
	results := f.loader.loaded[0]
	require.Len(t, results, 2)
	assert.Equal(t, domain.AlertRed, results[0].AlertLevel)
	assert.InDelta(t, 0.784167, results[0].FloodRisk, 1e-6)
	assert.Equal(t, domain.Some(0.8), results[0].EOFeaturesUsed.SoilSaturation)
	assert.Equal(t, domain.AlertGreen, results[1].AlertLevel)

	assert.Equal(t, f.loader.loaded, f.publisher.loaded)

	keys := make([]string, len(f.audit.rows))
	for i, r := range f.audit.rows {
		keys[i] = r.Key
	}
	if diff := cmp.Diff([]string{"2026-01-15T12:00:00Z", "2026-01-15T18:00:00Z", "2026-01-15T19:00:00Z"}, keys); diff != "" {
		t.Fatalf("audit keys mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, summary.AuditRows)
	assert.True(t, f.pipeline.Ready())
	require.NoError(t, f.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_AuditRiskMatchesLoadedResults(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	results := f.loader.loaded[0]
	for i := range results {
		risk, ok := f.audit.rows[i].Risk.Get()
		require.True(t, ok)
		assert.InDelta(t, results[i].FloodRisk, risk, 1e-12)
	}
	assert.False(t, f.audit.rows[2].Risk.Present(), "row without measurements has no risk")
}

func TestPipeline_RunOnce_SensorLoadError(t *testing.T) {
	f := newFixture(t)
	f.sensors.err = errors.New("disk gone")

	_, err := f.pipeline.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load sensor readings")
	assert.Empty(t, f.loader.loaded)
	assert.False(t, f.pipeline.Ready())
	require.Error(t, f.pipeline.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_LoaderErrorFailsPass(t *testing.T) {
	f := newFixture(t)
	f.loader.err = errors.New("event log full")

	_, err := f.pipeline.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event log full")
	assert.Nil(t, f.audit.rows)
}

func TestPipeline_RunOnce_PublisherErrorIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.audit.rows, 3)
	assert.True(t, f.pipeline.Ready())
}

func TestPipeline_RunOnce_AuditWriteError(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("read-only filesystem")

	_, err := f.pipeline.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write audit log")
	assert.False(t, f.pipeline.Ready())
}

type failingFeatures struct{}

func (failingFeatures) LoadFeatures(context.Context) ([]domain.EOFeature, error) {
	return nil, errors.New("eo store corrupt")
}

func TestPipeline_RunOnce_FeatureLoadError(t *testing.T) {
	loader := &mockLoader{}
	p := pipeline.New(pipeline.Stages{
		Sensors:  &mockSensors{records: sensorRows()},
		Features: failingFeatures{},
		Scorer:   newScorer(t),
		Audit:    &mockAudit{},
		Loaders:  []pipeline.ResultLoader{loader},
	}, discardLogger(), observability.NewMetricsForTesting())

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load eo features")
	assert.Contains(t, err.Error(), "eo store corrupt")
	assert.Empty(t, loader.loaded)
}

type countingFeatures struct {
	features domain.StaticFeatures
	calls    int
}

func (c *countingFeatures) LoadFeatures(ctx context.Context) ([]domain.EOFeature, error) {
	c.calls++
	return c.features.LoadFeatures(ctx)
}

func TestPipeline_RunOnce_ReadsFeatureStoreOncePerPass(t *testing.T) {
	features := &countingFeatures{features: eoStore}
	scorer, err := domain.NewScorer(testThresholds(), domain.NewLookup(features, domain.MatchOptions{}))
	require.NoError(t, err)

	// Hourly readings with no EO row under the same key go through the lookup
	// both when assessed and when merged.
	records := sensorRows()
	base := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	for i := range 24 {
		records = append(records, domain.SensorRecord{
			RawTimestamp: domain.FormatTimestamp(base.Add(time.Duration(i) * time.Hour)),
			WaterLevel:   domain.Some(float64(i)),
			Rainfall:     domain.Some(1.0),
			Humidity:     domain.Some(50.0),
		})
	}

	audit := &mockAudit{}
	p := pipeline.New(pipeline.Stages{
		Sensors:  &mockSensors{records: records},
		Features: features,
		Scorer:   scorer,
		Audit:    audit,
	}, discardLogger(), observability.NewMetricsForTesting())

	summary, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 26, summary.Readings)
	assert.Len(t, audit.rows, 27)
	assert.Equal(t, 1, features.calls)
}

func TestPipeline_RunOnce_DeliversOnlyNewRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)

	f.sensors.records = append(sensorRows(), domain.SensorRecord{
		RawTimestamp: "2026-01-15T20:00:00Z",
		WaterLevel:   domain.Some(70.0), Rainfall: domain.Some(28.0), Humidity: domain.Some(95.0),
	})
	summary, err := f.pipeline.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Readings)
	assert.Zero(t, summary.Skipped)

	_, err = f.pipeline.RunOnce(ctx)
	require.NoError(t, err)

	require.Len(t, f.loader.loaded, 3)
	assert.Len(t, f.loader.loaded[0], 2)
	require.Len(t, f.loader.loaded[1], 1)
	assert.Equal(t, "2026-01-15T20:00:00Z", domain.FormatTimestamp(f.loader.loaded[1][0].SensorRecord.Timestamp))
	assert.Empty(t, f.loader.loaded[2])
	assert.Equal(t, f.loader.loaded, f.publisher.loaded)
	assert.Len(t, f.audit.rows, 4, "audit log always covers the whole store")
}

func TestPipeline_RunOnce_FailedLoadIsRedelivered(t *testing.T) {
	f := newFixture(t)
	f.loader.err = errors.New("event log full")

	_, err := f.pipeline.RunOnce(context.Background())
	require.Error(t, err)

	f.loader.err = nil
	summary, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Readings)
	require.Len(t, f.loader.loaded, 2)
	assert.Len(t, f.loader.loaded[1], 2)
}

func TestPipeline_RunOnce_ShrunkStoreIsDeliveredAgain(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)

	f.sensors.records = sensorRows()[:1]
	summary, err := f.pipeline.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Readings)
}

type runIDLoader struct{ ids []string }

func (r *runIDLoader) LoadBatch(ctx context.Context, _ []domain.RiskResult) error {
	id, _ := observability.RunIDFromContext(ctx)
	r.ids = append(r.ids, id)
	return nil
}

func TestPipeline_RunOnce_SinksSeePassRunID(t *testing.T) {
	loader, publisher := &runIDLoader{}, &runIDLoader{}
	p := pipeline.New(pipeline.Stages{
		Sensors:    &mockSensors{records: sensorRows()},
		Features:   eoStore,
		Scorer:     newScorer(t),
		Audit:      &mockAudit{},
		Loaders:    []pipeline.ResultLoader{loader},
		Publishers: []pipeline.ResultLoader{publisher},
	}, discardLogger(), observability.NewMetricsForTesting())

	summary, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{summary.RunID}, loader.ids)
	assert.Equal(t, []string{summary.RunID}, publisher.ids)
}

func TestPipeline_RunEvery_RepeatsOnTick(t *testing.T) {
	f := newFixture(t)
	f.sensors.passes = make(chan struct{}, 1)
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.pipeline.RunEvery(ctx, clock, time.Minute) }()

	waitPass(t, f.sensors.passes)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	waitPass(t, f.sensors.passes)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, f.cache.resets, 2)
}

// appendingSensors grows by one batch of rows per pass, like a store the
// ingestion side keeps appending to.
type appendingSensors struct {
	batches [][]domain.SensorRecord
	calls   int
}

func (s *appendingSensors) LoadSensors(_ context.Context) ([]domain.SensorRecord, error) {
	n := min(s.calls, len(s.batches)-1)
	s.calls++
	var out []domain.SensorRecord
	for _, b := range s.batches[:n+1] {
		out = append(out, b...)
	}
	return out, nil
}

type batchSignal chan int

func (b batchSignal) LoadBatch(_ context.Context, results []domain.RiskResult) error {
	b <- len(results)
	return nil
}

func TestPipeline_RunEvery_EventLogGetsEachReadingOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	batches := make(batchSignal, 4)
	sensors := &appendingSensors{batches: [][]domain.SensorRecord{
		sensorRows(),
		{{RawTimestamp: "2026-01-15T20:00:00Z", WaterLevel: domain.Some(70.0), Rainfall: domain.Some(28.0), Humidity: domain.Some(95.0)}},
	}}
	p := pipeline.New(pipeline.Stages{
		Sensors:  sensors,
		Features: eoStore,
		Scorer:   newScorer(t),
		Audit:    &mockAudit{},
		Loaders:  []pipeline.ResultLoader{csvstore.NewEventLog(path), batches},
	}, discardLogger(), observability.NewMetricsForTesting())
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.RunEvery(ctx, clock, time.Minute) }()

	assert.Equal(t, 2, waitBatch(t, batches))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	assert.Equal(t, 1, waitBatch(t, batches))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4, "header plus one line per scored reading")
	assert.True(t, strings.HasPrefix(lines[3], "2026-01-15T20:00:00Z,"))
}

func waitBatch(t *testing.T, batches <-chan int) int {
	t.Helper()
	select {
	case n := <-batches:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not load results")
		return 0
	}
}

func TestPipeline_RunEvery_RejectsNonPositiveInterval(t *testing.T) {
	f := newFixture(t)
	err := f.pipeline.RunEvery(context.Background(), clockwork.NewFakeClock(), 0)
	require.Error(t, err)
}

func waitPass(t *testing.T, passes <-chan struct{}) {
	t.Helper()
	select {
	case <-passes:
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not start")
	}
}

func TestNotifier_LogsOneLinePerResult(t *testing.T) {
	var buf bytes.Buffer
	n := pipeline.NewNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	results := []domain.RiskResult{
		{FloodRisk: 0.9, AlertLevel: domain.AlertRed},
		{FloodRisk: 0.1, AlertLevel: domain.AlertGreen},
	}
	require.NoError(t, n.LoadBatch(context.Background(), results))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "[RED] risk=0.900")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "[GREEN] risk=0.100")
}

func TestFormatAlert(t *testing.T) {
	full := domain.RiskResult{
		FloodRisk:  0.7741,
		AlertLevel: domain.AlertRed,
		EOFeaturesUsed: domain.EOFeature{
			SoilSaturation: domain.Some(0.8),
			FloodExtent:    domain.Some(0.3),
			WetnessTrend:   domain.Some(domain.TrendWetting),
		},
		SensorRecord: domain.SensorReading{WaterLevel: 60, Rainfall: 25, Humidity: 90},
	}
	assert.Equal(t,
		"[RED] risk=0.774 Water=60.0m | Rain=25.0mm/hr | Humidity=90.0% | Soil=0.80 Flood=0.30 Trend=wetting",
		pipeline.FormatAlert(full))

	bare := domain.RiskResult{FloodRisk: 0.2, AlertLevel: domain.AlertGreen}
	assert.Equal(t,
		"[GREEN] risk=0.200 Water=0.0m | Rain=0.0mm/hr | Humidity=0.0% | Soil=n/a Flood=n/a Trend=n/a",
		pipeline.FormatAlert(bare))
}
