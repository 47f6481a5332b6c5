package domain

import "time"

// WetnessTrend is the categorical direction of soil-moisture change between
// successive EO observations.
type WetnessTrend int

const (
	TrendDrying  WetnessTrend = -1
	TrendStable  WetnessTrend = 0
	TrendWetting WetnessTrend = 1
)

// Valid reports whether t is one of the three recognized codes.
func (t WetnessTrend) Valid() bool {
	return t >= TrendDrying && t <= TrendWetting
}

func (t WetnessTrend) String() string {
	switch t {
	case TrendDrying:
		return "drying"
	case TrendStable:
		return "stable"
	case TrendWetting:
		return "wetting"
	default:
		return "unknown"
	}
}

// SensorReading is one complete ground-sensor sample. A zero Timestamp means
// the reading carried no usable time.
type SensorReading struct {
	Timestamp  time.Time `json:"timestamp"`
	WaterLevel float64   `json:"water_level"` // meters
	Rainfall   float64   `json:"rainfall"`    // mm/hr
	Humidity   float64   `json:"humidity"`    // percent, 0-100
}

// SensorRecord is a sensor row as read from storage. Cells that were blank or
// malformed are absent.
type SensorRecord struct {
	RawTimestamp string
	WaterLevel   Optional[float64]
	Rainfall     Optional[float64]
	Humidity     Optional[float64]
}

// Time parses the record's timestamp.
func (r SensorRecord) Time() (time.Time, bool) {
	return ParseTimestamp(r.RawTimestamp)
}

// HasMeasurements reports whether at least one sensor field is present.
func (r SensorRecord) HasMeasurements() bool {
	return r.WaterLevel.Present() || r.Rainfall.Present() || r.Humidity.Present()
}

// Reading converts the record to a SensorReading. Absent fields become 0,
// which contributes nothing to the sensor index.
func (r SensorRecord) Reading() SensorReading {
	ts, _ := r.Time()
	return SensorReading{
		Timestamp:  ts,
		WaterLevel: r.WaterLevel.OrZero(),
		Rainfall:   r.Rainfall.OrZero(),
		Humidity:   r.Humidity.OrZero(),
	}
}

// EOFeature is one Earth-observation feature row derived from satellite radar
// imagery. Any of the three indicators may be absent.
type EOFeature struct {
	RawTimestamp   string                 `json:"timestamp,omitempty"`
	SoilSaturation Optional[float64]      `json:"soil_saturation"` // 0-1 fraction
	FloodExtent    Optional[float64]      `json:"flood_extent"`    // 0-1 fraction
	WetnessTrend   Optional[WetnessTrend] `json:"wetness_trend"`
}

// Time parses the feature's timestamp.
func (f EOFeature) Time() (time.Time, bool) {
	return ParseTimestamp(f.RawTimestamp)
}

// Empty reports whether no indicator is present.
func (f EOFeature) Empty() bool {
	return !f.SoilSaturation.Present() && !f.FloodExtent.Present() && !f.WetnessTrend.Present()
}

// AlertLevel is the discrete warning level derived from a flood risk value.
type AlertLevel string

const (
	AlertGreen  AlertLevel = "GREEN"
	AlertYellow AlertLevel = "YELLOW"
	AlertRed    AlertLevel = "RED"
)

// Severity orders alert levels: GREEN < YELLOW < RED. Unknown levels rank below GREEN.
func (l AlertLevel) Severity() int {
	switch l {
	case AlertGreen:
		return 1
	case AlertYellow:
		return 2
	case AlertRed:
		return 3
	default:
		return 0
	}
}

// RiskResult is the outcome of scoring one sensor reading.
type RiskResult struct {
	FloodRisk      float64       `json:"flood_risk"`
	AlertLevel     AlertLevel    `json:"alert_level"`
	EOFeaturesUsed EOFeature     `json:"eo_features_used"`
	SensorRecord   SensorReading `json:"sensor_record"`
}

// Default threshold values applied when a key is missing from configuration.
const (
	DefaultFloodIndex  = 0.75
	DefaultAlertRed    = 0.75
	DefaultAlertYellow = 0.4
)

// Thresholds is the static scoring and alerting configuration. It is built
// once at startup and never mutated while scoring.
type Thresholds struct {
	BaseWaterLevel       float64
	FloodRiskFactor      float64
	CalibratedWaterLevel float64
	RainfallLimit        float64
	HumidityLimit        float64

	WaterLevelM float64 // water level at which the water score saturates
	RainfallMM  float64 // rainfall at which the rain score saturates
	FloodIndex  float64 // flood extent at which the flood score saturates

	AlertRed    float64
	AlertYellow float64
}
