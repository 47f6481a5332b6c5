package csvstore

import (
	"context"
	"strconv"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

var featureHeader = []string{"timestamp", "soil_saturation", "flood_extent", "wetness_trend"}

// FeatureStore is the EO feature store backed by a CSV file.
// It implements domain.FeatureSource.
type FeatureStore struct {
	path string
}

// NewFeatureStore returns a store over the CSV file at path.
func NewFeatureStore(path string) *FeatureStore {
	return &FeatureStore{path: path}
}

// LoadFeatures reads every feature row in file order. Malformed cells are
// absent; a missing file is an empty store.
func (s *FeatureStore) LoadFeatures(ctx context.Context) ([]domain.EOFeature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := readTable(s.path)
	if err != nil {
		return nil, err
	}

	features := make([]domain.EOFeature, 0, len(t.rows))
	for _, row := range t.rows {
		features = append(features, domain.EOFeature{
			RawTimestamp:   t.get(row, "timestamp"),
			SoilSaturation: domain.ParseOptionalFloat(t.get(row, "soil_saturation")),
			FloodExtent:    domain.ParseOptionalFloat(t.get(row, "flood_extent")),
			WetnessTrend:   domain.ParseOptionalTrend(t.get(row, "wetness_trend")),
		})
	}
	return features, nil
}

// Append adds a feature row. Values are rounded to three decimals and absent
// values are written blank. A feature without a timestamp is stamped with
// the current UTC time.
func (s *FeatureStore) Append(ctx context.Context, f domain.EOFeature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts := f.RawTimestamp
	if ts == "" {
		ts = domain.FormatTimestamp(domain.Now())
	}
	return appendRow(s.path, featureHeader, []string{
		ts,
		optionalFloat(f.SoilSaturation),
		optionalFloat(f.FloodExtent),
		optionalTrend(f.WetnessTrend),
	})
}

func optionalFloat(o domain.Optional[float64]) string {
	v, ok := o.Get()
	if !ok {
		return ""
	}
	return formatFloat(round3(v))
}

func optionalTrend(o domain.Optional[domain.WetnessTrend]) string {
	v, ok := o.Get()
	if !ok {
		return ""
	}
	return strconv.Itoa(int(v))
}
