package csvstore

import (
	"context"
	"strconv"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

var auditHeader = []string{
	"timestamp", "warning_level",
	"water_level", "rainfall", "humidity",
	"soil_saturation", "flood_extent", "wetness_trend",
	"risk",
}

// AuditLog is the merged sensor/EO view. Every write replaces the file so it
// always reflects the latest join of both sources.
type AuditLog struct {
	path string
}

// NewAuditLog returns an audit log at path.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Write replaces the audit log with rows. Measurements are written as
// stored; risk keeps full precision so re-reading reproduces it exactly.
func (a *AuditLog) Write(ctx context.Context, rows []domain.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := make([][]string, len(rows))
	for i, r := range rows {
		level := ""
		if l, ok := r.Level.Get(); ok {
			level = string(l)
		}
		risk := ""
		if v, ok := r.Risk.Get(); ok {
			risk = strconv.FormatFloat(v, 'g', -1, 64)
		}
		records[i] = []string{
			r.Key,
			level,
			rawFloat(r.WaterLevel),
			rawFloat(r.Rainfall),
			rawFloat(r.Humidity),
			rawFloat(r.SoilSaturation),
			rawFloat(r.FloodExtent),
			optionalTrend(r.WetnessTrend),
			risk,
		}
	}
	return rewrite(a.path, auditHeader, records)
}

// Read loads the audit log back into records.
func (a *AuditLog) Read(ctx context.Context) ([]domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := readTable(a.path)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.AuditRecord, 0, len(t.rows))
	for _, row := range t.rows {
		key := t.get(row, "timestamp")
		ts, _ := domain.ParseTimestamp(key)
		rec := domain.AuditRecord{
			Key:            key,
			Time:           ts,
			WaterLevel:     domain.ParseOptionalFloat(t.get(row, "water_level")),
			Rainfall:       domain.ParseOptionalFloat(t.get(row, "rainfall")),
			Humidity:       domain.ParseOptionalFloat(t.get(row, "humidity")),
			SoilSaturation: domain.ParseOptionalFloat(t.get(row, "soil_saturation")),
			FloodExtent:    domain.ParseOptionalFloat(t.get(row, "flood_extent")),
			WetnessTrend:   domain.ParseOptionalTrend(t.get(row, "wetness_trend")),
			Risk:           domain.ParseOptionalFloat(t.get(row, "risk")),
		}
		if level := t.get(row, "warning_level"); level != "" {
			rec.Level = domain.Some(domain.AlertLevel(level))
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func rawFloat(o domain.Optional[float64]) string {
	v, ok := o.Get()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
