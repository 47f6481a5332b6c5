package domain

import (
	"context"
	"slices"
	"time"
)

// AuditRecord is one row of the merged sensor/EO view.
type AuditRecord struct {
	// Key is the normalized timestamp, or the raw string when it did not parse.
	Key  string
	Time time.Time // zero when Key did not parse

	WaterLevel Optional[float64]
	Rainfall   Optional[float64]
	Humidity   Optional[float64]

	SoilSaturation Optional[float64]
	FloodExtent    Optional[float64]
	WetnessTrend   Optional[WetnessTrend]

	Risk  Optional[float64]
	Level Optional[AlertLevel]
}

type mergeEntry struct {
	key    string
	time   time.Time
	parsed bool
	sensor *SensorRecord
	eo     *EOFeature
}

// MergeEvents outer-joins the sensor and EO streams on their normalized
// timestamps and scores every row that has sensor measurements.
//
// A key repeated within one stream keeps the last row. Rows are ordered by
// time; rows whose timestamp did not parse follow in encounter order, sensor
// stream first. Risk is left absent for rows without sensor measurements
// rather than computed from a synthesized zero reading. A sensor row with no
// EO row under the same key is scored against the lookup's matched context,
// while its EO columns stay blank.
func MergeEvents(ctx context.Context, sensors []SensorRecord, features []EOFeature, scorer *Scorer) ([]AuditRecord, error) {
	index := make(map[string]*mergeEntry, len(sensors)+len(features))
	entries := make([]*mergeEntry, 0, len(sensors)+len(features))

	entryFor := func(raw string) *mergeEntry {
		key := NormalizeTimestamp(raw)
		if e, ok := index[key]; ok {
			return e
		}
		t, ok := ParseTimestamp(raw)
		e := &mergeEntry{key: key, time: t, parsed: ok}
		index[key] = e
		entries = append(entries, e)
		return e
	}

	for i := range sensors {
		entryFor(sensors[i].RawTimestamp).sensor = &sensors[i]
	}
	for i := range features {
		entryFor(features[i].RawTimestamp).eo = &features[i]
	}

	slices.SortStableFunc(entries, func(a, b *mergeEntry) int {
		switch {
		case a.parsed && b.parsed:
			return a.time.Compare(b.time)
		case a.parsed:
			return -1
		case b.parsed:
			return 1
		default:
			return 0
		}
	})

	out := make([]AuditRecord, 0, len(entries))
	for _, e := range entries {
		rec := AuditRecord{Key: e.key, Time: e.time}
		if e.eo != nil {
			rec.SoilSaturation = e.eo.SoilSaturation
			rec.FloodExtent = e.eo.FloodExtent
			rec.WetnessTrend = e.eo.WetnessTrend
		}
		if e.sensor != nil {
			rec.WaterLevel = e.sensor.WaterLevel
			rec.Rainfall = e.sensor.Rainfall
			rec.Humidity = e.sensor.Humidity
		}

		if e.sensor != nil && e.sensor.HasMeasurements() {
			reading := e.sensor.Reading()
			var result RiskResult
			if e.eo != nil {
				result = scorer.AssessWith(reading, *e.eo)
			} else {
				var err error
				result, err = scorer.Assess(ctx, reading)
				if err != nil {
					return nil, err
				}
			}
			rec.Risk = Some(result.FloodRisk)
			rec.Level = Some(result.AlertLevel)
		}
		out = append(out, rec)
	}
	return out, nil
}
