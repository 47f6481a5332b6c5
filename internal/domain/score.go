package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidThresholds reports a threshold configuration that cannot be used
// for scoring.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Fusion weights. Changing any of these changes every published risk value.
const (
	weightRain     = 0.4
	weightHumidity = 0.3
	weightWater    = 0.3

	weightSoil  = 0.4
	weightFlood = 0.3
	weightTrend = 0.3

	weightSensor = 0.5
	weightEO     = 0.5
)

// Validate checks the denominators used by the sensor sub-scores.
func (t Thresholds) Validate() error {
	if !(t.WaterLevelM > 0) {
		return fmt.Errorf("%w: water_level_m must be > 0", ErrInvalidThresholds)
	}
	if !(t.RainfallMM > 0) {
		return fmt.Errorf("%w: rainfall_mm must be > 0", ErrInvalidThresholds)
	}
	return nil
}

func (t Thresholds) floodIndex() float64 {
	if !(t.FloodIndex > 0) {
		return DefaultFloodIndex
	}
	return t.FloodIndex
}

// SensorIndex combines the water, rain and humidity sub-scores.
func SensorIndex(r SensorReading, th Thresholds) float64 {
	water := clamp01(r.WaterLevel / th.WaterLevelM)
	rain := clamp01(r.Rainfall / th.RainfallMM)
	humidity := clamp01(r.Humidity / 100)
	return weightRain*rain + weightHumidity*humidity + weightWater*water
}

// EOIndex combines the soil, flood and trend sub-scores. Absent indicators
// contribute 0.
func EOIndex(f EOFeature, th Thresholds) float64 {
	soil := clamp01(f.SoilSaturation.OrZero())
	flood := clamp01(f.FloodExtent.OrZero() / th.floodIndex())
	return weightSoil*soil + weightFlood*flood + weightTrend*trendScore(f.WetnessTrend)
}

func trendScore(t Optional[WetnessTrend]) float64 {
	v, ok := t.Get()
	if !ok {
		return 0
	}
	switch v {
	case TrendWetting:
		return 1
	case TrendStable:
		return 0.5
	default:
		return 0
	}
}

// FloodRisk fuses the sensor and EO indices into a risk value in [0, 1].
func FloodRisk(r SensorReading, f EOFeature, th Thresholds) float64 {
	return math.Min(weightSensor*SensorIndex(r, th)+weightEO*EOIndex(f, th), 1)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Scorer turns sensor readings into RiskResults using fixed thresholds and the
// shared EO lookup.
type Scorer struct {
	thresholds Thresholds
	lookup     FeatureLookup
}

// NewScorer validates th and returns a Scorer.
func NewScorer(th Thresholds, lookup FeatureLookup) (*Scorer, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if lookup == nil {
		return nil, errors.New("scorer: feature lookup is required")
	}
	return &Scorer{thresholds: th, lookup: lookup}, nil
}

// Thresholds returns the scorer's configuration.
func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// WithLookup returns a copy of the scorer that resolves EO context through
// lookup. Batch passes use it to score every reading against one snapshot.
func (s *Scorer) WithLookup(lookup FeatureLookup) *Scorer {
	return &Scorer{thresholds: s.thresholds, lookup: lookup}
}

// Assess scores a reading against the EO context matched to its timestamp.
// A reading without a timestamp is scored against the whole feature store.
func (s *Scorer) Assess(ctx context.Context, r SensorReading) (RiskResult, error) {
	eo, err := s.lookup.LookupFeatures(ctx, r.Timestamp)
	if err != nil {
		return RiskResult{}, err
	}
	return s.AssessWith(r, eo), nil
}

// AssessWith scores a reading against caller-supplied EO features.
func (s *Scorer) AssessWith(r SensorReading, eo EOFeature) RiskResult {
	risk := FloodRisk(r, eo, s.thresholds)
	return RiskResult{
		FloodRisk:      risk,
		AlertLevel:     Classify(risk, s.thresholds),
		EOFeaturesUsed: eo,
		SensorRecord:   r,
	}
}
