package domain

import "math"

// AggregateFeatures reduces a selection of EO records to one representative
// record:
//
//   - soil saturation and flood extent are the arithmetic mean of the present values;
//   - wetness trend is the mean of the present recognized codes rounded half
//     away from zero (math.Round, so -0.5 becomes -1 and 0.5 becomes 1).
//     Unrecognized codes are left out, so they score 0 here just as they do
//     when a record is scored directly.
//
// A field with no present values stays absent. An empty selection yields an
// all-absent record, meaning no EO signal is available. The result carries the
// timestamp of the first (closest) record.
func AggregateFeatures(records []EOFeature) EOFeature {
	if len(records) == 0 {
		return EOFeature{}
	}

	var soil, flood mean
	var trend mean
	for _, rec := range records {
		if v, ok := rec.SoilSaturation.Get(); ok {
			soil.add(v)
		}
		if v, ok := rec.FloodExtent.Get(); ok {
			flood.add(v)
		}
		if v, ok := rec.WetnessTrend.Get(); ok && v.Valid() {
			trend.add(float64(v))
		}
	}

	out := EOFeature{RawTimestamp: records[0].RawTimestamp}
	if v, ok := soil.value(); ok {
		out.SoilSaturation = Some(v)
	}
	if v, ok := flood.value(); ok {
		out.FloodExtent = Some(v)
	}
	if v, ok := trend.value(); ok {
		out.WetnessTrend = Some(roundTrend(v))
	}
	return out
}

func roundTrend(v float64) WetnessTrend {
	return WetnessTrend(int(math.Round(v)))
}

type mean struct {
	sum   float64
	count int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.count++
}

func (m mean) value() (float64, bool) {
	if m.count == 0 {
		return 0, false
	}
	return m.sum / float64(m.count), true
}
