// Package domain models flood risk estimated from ground sensors and
// Earth-observation (EO) features.
//
// # Data Sources
//
// Ground sensors report water level (meters), rainfall (mm/hr) and relative
// humidity (percent) on a schedule. An upstream EO pipeline derives three
// indicators from Sentinel-1 radar scenes and appends them to a feature store:
//
//	soil_saturation  0-1 fraction of the area of interest
//	flood_extent     0-1 fraction of the area classified as open water
//	wetness_trend    -1 drying, 0 stable, 1 wetting (categorical, not continuous)
//
// Any indicator may be blank. Blank or malformed cells decode to an absent
// [Optional] and contribute nothing to the score.
//
// # Timestamps
//
// Timestamps are ISO-8601 strings. A trailing "Z" equals "+00:00"; timestamps
// without an offset are taken as UTC. All comparisons happen in UTC and the
// canonical written form is RFC 3339 in UTC. See [ParseTimestamp].
//
// # Matching
//
// EO passes are sparse compared to sensor readings. [MatchFeatures] selects the
// records within a tolerance window (60s by default) of a reading, closest
// first, and falls back to every timestamped record sorted by distance when
// nothing is inside the window. [AggregateFeatures] averages the selection.
// When a reading has no timestamp the whole store is aggregated.
//
// # Scoring
//
//	sensor_index = 0.4*rain + 0.3*humidity + 0.3*water
//	eo_index     = 0.4*soil + 0.3*flood + 0.3*trend
//	flood_risk   = min(0.5*sensor_index + 0.5*eo_index, 1)
//
// Each sub-score is clamped to [0, 1]. water = water_level/water_level_m,
// rain = rainfall/rainfall_mm, humidity = humidity/100, flood =
// flood_extent/flood_index, trend maps wetting/stable/drying to 1/0.5/0.
//
// # Alert Levels
//
//	flood_risk >= alert_red (0.75)     RED
//	flood_risk >= alert_yellow (0.4)   YELLOW
//	otherwise                          GREEN
package domain
