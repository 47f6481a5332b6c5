package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// zonedLayouts carry an explicit offset. "Z07:00" accepts both a trailing "Z"
// and "+00:00". Fractional seconds are accepted by time.Parse even when the
// layout omits them.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

// naiveLayouts have no offset and are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp and returns it in UTC.
// Naive timestamps are assumed to be UTC. The boolean is false when s is
// blank or matches no known layout.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp renders t as an RFC 3339 UTC string, the canonical form
// used for join keys and written rows.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NormalizeTimestamp returns the canonical form of a raw timestamp, or the raw
// string verbatim when it does not parse.
func NormalizeTimestamp(raw string) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	return FormatTimestamp(t)
}

// ParseOptionalFloat parses a numeric cell. Blank, malformed, NaN and
// infinite values are absent.
func ParseOptionalFloat(s string) Optional[float64] {
	s = strings.TrimSpace(s)
	if s == "" {
		return None[float64]()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return None[float64]()
	}
	return Some(v)
}

// ParseOptionalTrend parses a wetness-trend cell. Values written as floats
// ("1.0") are truncated toward zero. Codes outside {-1,0,1} are kept as-is so
// the audit log reproduces the stored value; scoring treats them as
// unrecognized.
func ParseOptionalTrend(s string) Optional[WetnessTrend] {
	v, ok := ParseOptionalFloat(s).Get()
	if !ok || math.Abs(v) > math.MaxInt32 {
		return None[WetnessTrend]()
	}
	return Some(WetnessTrend(int(v)))
}
