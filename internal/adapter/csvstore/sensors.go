package csvstore

import (
	"context"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

var sensorHeader = []string{"timestamp", "water_level", "rainfall", "humidity"}

// SensorStore holds ground-sensor readings in a CSV file.
type SensorStore struct {
	path string
}

// NewSensorStore returns a store over the CSV file at path.
func NewSensorStore(path string) *SensorStore {
	return &SensorStore{path: path}
}

// LoadSensors reads every sensor row in file order. Missing columns and
// malformed cells are absent; a missing file yields no rows.
func (s *SensorStore) LoadSensors(ctx context.Context) ([]domain.SensorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := readTable(s.path)
	if err != nil {
		return nil, err
	}

	records := make([]domain.SensorRecord, 0, len(t.rows))
	for _, row := range t.rows {
		records = append(records, domain.SensorRecord{
			RawTimestamp: t.get(row, "timestamp"),
			WaterLevel:   domain.ParseOptionalFloat(t.get(row, "water_level")),
			Rainfall:     domain.ParseOptionalFloat(t.get(row, "rainfall")),
			Humidity:     domain.ParseOptionalFloat(t.get(row, "humidity")),
		})
	}
	return records, nil
}

// Append adds a reading rounded to three decimals. A reading without a
// timestamp is stamped with the current UTC time.
func (s *SensorStore) Append(ctx context.Context, r domain.SensorReading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = domain.Now()
	}
	return appendRow(s.path, sensorHeader, []string{
		domain.FormatTimestamp(ts),
		formatFloat(round3(r.WaterLevel)),
		formatFloat(round3(r.Rainfall)),
		formatFloat(round3(r.Humidity)),
	})
}
