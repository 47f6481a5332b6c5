package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// thresholdsFile mirrors config/thresholds.yaml. Pointers distinguish a key
// that is absent from one explicitly set to zero.
type thresholdsFile struct {
	BaseWaterLevel  *float64 `yaml:"base_water_level"`
	FloodRiskFactor *float64 `yaml:"flood_risk_factor"`
	RainfallLimit   *float64 `yaml:"rainfall_limit"`
	HumidityLimit   *float64 `yaml:"humidity_limit"`
	WaterLevelM     *float64 `yaml:"water_level_m"`
	RainfallMM      *float64 `yaml:"rainfall_mm"`
	FloodIndex      *float64 `yaml:"flood_index"`
	AlertRed        *float64 `yaml:"alert_red"`
	AlertYellow     *float64 `yaml:"alert_yellow"`
}

// resolvedThresholds is validated after defaults are applied.
type resolvedThresholds struct {
	WaterLevelM float64 `yaml:"water_level_m" validate:"gt=0"`
	RainfallMM  float64 `yaml:"rainfall_mm" validate:"gt=0"`
	AlertRed    float64 `yaml:"alert_red" validate:"gte=0,lte=1"`
	AlertYellow float64 `yaml:"alert_yellow" validate:"gte=0,lte=1,ltefield=AlertRed"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report YAML key names so errors point at the file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	return v
}

// LoadThresholds reads the thresholds YAML file at path.
func LoadThresholds(path string) (domain.Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}
	return ParseThresholds(data)
}

// ParseThresholds decodes thresholds YAML, applies defaults for absent
// optional keys (a non-positive flood_index also falls back to its default),
// calibrates the water level and validates the result.
// water_level_m and rainfall_mm have no defaults: a deployment without them
// cannot score and fails here.
func ParseThresholds(data []byte) (domain.Thresholds, error) {
	var file thresholdsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}

	th := domain.Thresholds{
		BaseWaterLevel:  deref(file.BaseWaterLevel, 0),
		FloodRiskFactor: deref(file.FloodRiskFactor, 1),
		RainfallLimit:   deref(file.RainfallLimit, 0),
		HumidityLimit:   deref(file.HumidityLimit, 0),
		WaterLevelM:     deref(file.WaterLevelM, 0),
		RainfallMM:      deref(file.RainfallMM, 0),
		FloodIndex:      deref(file.FloodIndex, domain.DefaultFloodIndex),
		AlertRed:        deref(file.AlertRed, domain.DefaultAlertRed),
		AlertYellow:     deref(file.AlertYellow, domain.DefaultAlertYellow),
	}
	// A zero or negative flood_index would leave the flood score undefined.
	if !(th.FloodIndex > 0) {
		th.FloodIndex = domain.DefaultFloodIndex
	}
	th = Calibrate(th)

	if file.WaterLevelM == nil {
		return domain.Thresholds{}, errors.New("thresholds: water_level_m is required")
	}
	if file.RainfallMM == nil {
		return domain.Thresholds{}, errors.New("thresholds: rainfall_mm is required")
	}

	if err := validate.Struct(resolvedThresholds{
		WaterLevelM: th.WaterLevelM,
		RainfallMM:  th.RainfallMM,
		AlertRed:    th.AlertRed,
		AlertYellow: th.AlertYellow,
	}); err != nil {
		return domain.Thresholds{}, thresholdsError(err)
	}
	return th, nil
}

// Calibrate derives the calibrated water level from the base level and the
// flood risk factor.
func Calibrate(th domain.Thresholds) domain.Thresholds {
	th.CalibratedWaterLevel = th.BaseWaterLevel * th.FloodRiskFactor
	return th
}

func thresholdsError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("thresholds: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("thresholds: %s", strings.Join(msgs, "; "))
}

func deref(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
