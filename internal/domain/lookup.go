package domain

import (
	"context"
	"fmt"
	"time"
)

// FeatureSource returns a snapshot of the EO feature store in store order.
type FeatureSource interface {
	LoadFeatures(ctx context.Context) ([]EOFeature, error)
}

// FeatureLookup resolves the aggregated EO context for a point in time.
// A zero target asks for the aggregate over the whole store.
type FeatureLookup interface {
	LookupFeatures(ctx context.Context, target time.Time) (EOFeature, error)
}

// Lookup is the canonical FeatureLookup: match, then aggregate, over a
// snapshot from the source. Every consumer that needs EO context goes through
// it so matching behaves the same everywhere. The source is read on every
// call; wrap a StaticFeatures snapshot to pin a batch to one store state.
type Lookup struct {
	source FeatureSource
	opts   MatchOptions
}

// NewLookup creates a Lookup over source.
func NewLookup(source FeatureSource, opts MatchOptions) *Lookup {
	return &Lookup{source: source, opts: opts}
}

// LookupFeatures matches records against target and aggregates the selection.
func (l *Lookup) LookupFeatures(ctx context.Context, target time.Time) (EOFeature, error) {
	records, err := l.source.LoadFeatures(ctx)
	if err != nil {
		return EOFeature{}, fmt.Errorf("load eo features: %w", err)
	}
	return AggregateFeatures(MatchFeatures(records, target, l.opts)), nil
}

// StaticFeatures is a FeatureSource over an in-memory snapshot.
type StaticFeatures []EOFeature

// LoadFeatures returns the snapshot.
func (s StaticFeatures) LoadFeatures(context.Context) ([]EOFeature, error) {
	return s, nil
}
