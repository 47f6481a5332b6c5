package csvstore

import (
	"context"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

var eventHeader = []string{"timestamp", "water_level", "rainfall", "humidity", "warning_level", "risk"}

// EventLog appends one line per scored reading.
// It implements pipeline.ResultLoader.
type EventLog struct {
	path string
}

// NewEventLog returns an event log at path.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// LoadBatch appends a line for each result.
func (l *EventLog) LoadBatch(ctx context.Context, results []domain.RiskResult) error {
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		ts := ""
		if !r.SensorRecord.Timestamp.IsZero() {
			ts = domain.FormatTimestamp(r.SensorRecord.Timestamp)
		}
		if err := appendRow(l.path, eventHeader, []string{
			ts,
			formatFloat(r.SensorRecord.WaterLevel),
			formatFloat(r.SensorRecord.Rainfall),
			formatFloat(r.SensorRecord.Humidity),
			string(r.AlertLevel),
			formatFloat(round3(r.FloodRisk)),
		}); err != nil {
			return err
		}
	}
	return nil
}
