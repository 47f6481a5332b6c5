package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_RangesAndSharedTimestamp(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	for range 500 {
		r, f := generate(rng, ts)

		assert.Equal(t, ts, r.Timestamp)
		assert.Equal(t, "2026-01-15T12:00:00Z", f.RawTimestamp)

		assert.GreaterOrEqual(t, r.WaterLevel, 20.0)
		assert.LessOrEqual(t, r.WaterLevel, 80.0)
		assert.GreaterOrEqual(t, r.Rainfall, 0.0)
		assert.LessOrEqual(t, r.Rainfall, 30.0)
		assert.GreaterOrEqual(t, r.Humidity, 50.0)
		assert.LessOrEqual(t, r.Humidity, 98.0)

		soil, ok := f.SoilSaturation.Get()
		require.True(t, ok)
		assert.GreaterOrEqual(t, soil, 0.6)
		assert.LessOrEqual(t, soil, 0.9)

		flood, ok := f.FloodExtent.Get()
		require.True(t, ok)
		assert.GreaterOrEqual(t, flood, 0.0)
		assert.LessOrEqual(t, flood, 0.4)

		trend, ok := f.WetnessTrend.Get()
		require.True(t, ok)
		assert.Contains(t, []domain.WetnessTrend{domain.TrendDrying, domain.TrendStable, domain.TrendWetting}, trend)
	}
}

func TestGenerate_SeedIsReproducible(t *testing.T) {
	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	r1, f1 := generate(rand.New(rand.NewPCG(7, 7)), ts)
	r2, f2 := generate(rand.New(rand.NewPCG(7, 7)), ts)

	assert.Equal(t, r1, r2)
	assert.Equal(t, f1, f2)
}
