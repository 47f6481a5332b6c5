package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// Notifier writes one human-readable line per risk result to the logger.
// It implements ResultLoader.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a Notifier. RED results log at warn level.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// LoadBatch logs one line per result.
func (n *Notifier) LoadBatch(ctx context.Context, results []domain.RiskResult) error {
	for _, r := range results {
		level := slog.LevelInfo
		if r.AlertLevel == domain.AlertRed {
			level = slog.LevelWarn
		}
		n.logger.Log(ctx, level, FormatAlert(r),
			"alert_level", string(r.AlertLevel),
			"flood_risk", r.FloodRisk,
		)
	}
	return nil
}

// FormatAlert renders a result as
//
//	[RED] risk=0.774 Water=60.0m | Rain=25.0mm/hr | Humidity=90.0% | Soil=0.80 Flood=0.30 Trend=wetting
//
// Absent EO indicators print as n/a.
func FormatAlert(r domain.RiskResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] risk=%.3f Water=%.1fm | Rain=%.1fmm/hr | Humidity=%.1f%%",
		r.AlertLevel, r.FloodRisk,
		r.SensorRecord.WaterLevel, r.SensorRecord.Rainfall, r.SensorRecord.Humidity)

	eo := r.EOFeaturesUsed
	b.WriteString(" | Soil=" + fixed2(eo.SoilSaturation))
	b.WriteString(" Flood=" + fixed2(eo.FloodExtent))
	b.WriteString(" Trend=")
	if t, ok := eo.WetnessTrend.Get(); ok {
		b.WriteString(t.String())
	} else {
		b.WriteString("n/a")
	}
	return b.String()
}

func fixed2(o domain.Optional[float64]) string {
	v, ok := o.Get()
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
