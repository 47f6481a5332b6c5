package domain

import (
	"slices"
	"time"
)

// DefaultMatchTolerance is the window within which an EO record counts as
// matching a sensor timestamp.
const DefaultMatchTolerance = 60 * time.Second

// MatchOptions controls EO record selection.
type MatchOptions struct {
	// Tolerance is the maximum |delta| for a record to count as a match.
	// Zero or negative means DefaultMatchTolerance.
	Tolerance time.Duration
	// Limit caps the number of selected records. Zero or negative means no cap.
	Limit int
}

func (o MatchOptions) tolerance() time.Duration {
	if o.Tolerance <= 0 {
		return DefaultMatchTolerance
	}
	return o.Tolerance
}

type candidate struct {
	feature EOFeature
	delta   time.Duration
}

// MatchFeatures selects the EO records that best describe conditions at
// target. A zero target selects by store order instead of by time.
//
// With a target, records within the tolerance window are returned closest
// first. When none are within tolerance, every timestamped record is returned
// closest first, so a match is always produced while any record has a
// parseable timestamp. Records without one never take part in time-based
// selection; if no record has one, selection falls back to store order.
func MatchFeatures(records []EOFeature, target time.Time, opts MatchOptions) []EOFeature {
	if target.IsZero() {
		return latest(records, opts.Limit)
	}
	target = target.UTC()

	candidates := make([]candidate, 0, len(records))
	for _, rec := range records {
		ts, ok := rec.Time()
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{feature: rec, delta: absDuration(ts.Sub(target))})
	}
	if len(candidates) == 0 {
		return latest(records, opts.Limit)
	}

	// Stable so records at the same distance keep store order.
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		switch {
		case a.delta < b.delta:
			return -1
		case a.delta > b.delta:
			return 1
		default:
			return 0
		}
	})

	tolerance := opts.tolerance()
	within := 0
	for within < len(candidates) && candidates[within].delta <= tolerance {
		within++
	}
	if within > 0 {
		candidates = candidates[:within]
	}
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	out := make([]EOFeature, len(candidates))
	for i, c := range candidates {
		out[i] = c.feature
	}
	return out
}

// latest returns the last n records in store order, or all of them when n <= 0.
func latest(records []EOFeature, n int) []EOFeature {
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return slices.Clone(records)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
