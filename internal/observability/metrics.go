package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the flood risk pipeline.
type Metrics struct {
	ReadingsProcessed prometheus.Counter
	AssessErrors      prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Scoring outcome metrics.
	AlertsRaised *prometheus.CounterVec // labels: level={GREEN,YELLOW,RED}
	FloodRisk    prometheus.Histogram

	// Run metrics.
	RunDuration    prometheus.Histogram
	RunsTotal      *prometheus.CounterVec // labels: outcome={success,error}
	FeaturesLoaded prometheus.Gauge
	AuditRows      prometheus.Gauge

	// Feature lookup cache metrics.
	FeatureCache *prometheus.CounterVec // labels: result={hit,miss}

	// Alert publishing metrics.
	AlertsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReadingsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "readings_processed_total",
			Help:      "Total sensor readings scored.",
		}),
		AssessErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "assess_errors_total",
			Help:      "Total sensor readings that could not be scored.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "pipeline_running",
			Help:      "1 while a batch pass is executing, 0 otherwise.",
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "alerts_total",
			Help:      "Scored readings by alert level.",
		}, []string{"level"}),
		FloodRisk: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "score",
			Help:      "Distribution of fused flood risk values.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.75, 0.9, 1},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flood_risk",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete batch pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "runs_total",
			Help:      "Batch passes by outcome.",
		}, []string{"outcome"}),
		FeaturesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "eo_features_loaded",
			Help:      "EO feature records in the most recent store snapshot.",
		}),
		AuditRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flood_risk",
			Name:      "audit_rows",
			Help:      "Rows written to the merged audit log by the most recent pass.",
		}),
		FeatureCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "feature_cache_total",
			Help:      "EO feature lookup cache results.",
		}, []string{"result"}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "alerts_published_total",
			Help:      "Risk results published to the alert topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flood_risk",
			Name:      "publish_errors_total",
			Help:      "Failed alert publish attempts.",
		}),
	}

	prometheus.MustRegister(
		m.ReadingsProcessed,
		m.AssessErrors,
		m.PipelineRunning,
		m.AlertsRaised,
		m.FloodRisk,
		m.RunDuration,
		m.RunsTotal,
		m.FeaturesLoaded,
		m.AuditRows,
		m.FeatureCache,
		m.AlertsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReadingsProcessed: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "readings_processed_total"}),
		AssessErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "assess_errors_total"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "pipeline_running"}),
		AlertsRaised:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "alerts_total"}, []string{"level"}),
		FloodRisk:         prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "score"}),
		RunDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "flood_risk", Name: "run_duration_seconds"}),
		RunsTotal:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "runs_total"}, []string{"outcome"}),
		FeaturesLoaded:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "eo_features_loaded"}),
		AuditRows:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "flood_risk", Name: "audit_rows"}),
		FeatureCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "flood_risk", Name: "feature_cache_total"}, []string{"result"}),
		AlertsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "alerts_published_total"}),
		PublishErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "flood_risk", Name: "publish_errors_total"}),
	}
}
