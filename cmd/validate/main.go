// Command validate checks the merged audit log against the sensor and EO
// stores it was built from. It verifies key coverage, that measurements were
// copied unchanged, and that every stored risk and warning level is
// reproduced exactly by scoring the sources again.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -sensor data/sensor/simulated.csv \
//	  -eo data/sentinel1/eo_features.csv \
//	  -audit logs/merged_events.csv \
//	  -thresholds config/thresholds.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/flood-risk-etl/internal/adapter/csvstore"
	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type inputs struct {
	sensors  []domain.SensorRecord
	features []domain.EOFeature
	audit    []domain.AuditRecord
	scorer   *domain.Scorer
}

func main() {
	sensorPath := flag.String("sensor", "data/sensor/simulated.csv", "sensor CSV")
	eoPath := flag.String("eo", "data/sentinel1/eo_features.csv", "EO feature CSV")
	auditPath := flag.String("audit", "logs/merged_events.csv", "merged audit CSV")
	thresholdsPath := flag.String("thresholds", "config/thresholds.yaml", "thresholds YAML")
	tolerance := flag.Duration("tolerance", domain.DefaultMatchTolerance, "EO matching tolerance")
	limit := flag.Int("limit", 0, "EO matching limit (0 = unbounded)")
	flag.Parse()

	in, err := load(*sensorPath, *eoPath, *auditPath, *thresholdsPath, domain.MatchOptions{Tolerance: *tolerance, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(in))
}

func load(sensorPath, eoPath, auditPath, thresholdsPath string, opts domain.MatchOptions) (inputs, error) {
	ctx := context.Background()

	th, err := config.LoadThresholds(thresholdsPath)
	if err != nil {
		return inputs{}, err
	}
	sensors, err := csvstore.NewSensorStore(sensorPath).LoadSensors(ctx)
	if err != nil {
		return inputs{}, fmt.Errorf("load sensors: %w", err)
	}
	eo, err := csvstore.NewFeatureStore(eoPath).LoadFeatures(ctx)
	if err != nil {
		return inputs{}, fmt.Errorf("load eo features: %w", err)
	}
	scorer, err := domain.NewScorer(th, domain.NewLookup(domain.StaticFeatures(eo), opts))
	if err != nil {
		return inputs{}, err
	}
	audit, err := csvstore.NewAuditLog(auditPath).Read(ctx)
	if err != nil {
		return inputs{}, fmt.Errorf("load audit log: %w", err)
	}
	return inputs{sensors: sensors, features: eo, audit: audit, scorer: scorer}, nil
}

func run(in inputs) int {
	fmt.Println("=== Flood Risk Audit Validation ===")
	fmt.Println()

	expected, err := domain.MergeEvents(context.Background(), in.sensors, in.features, in.scorer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: re-merge sources: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCoverage(in.audit, expected),
		validateMeasurements(in.audit, expected),
		validateRisk(in.audit, expected),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d sensor, %d EO, %d audit\n", len(in.sensors), len(in.features), len(in.audit))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateCoverage checks that the audit log holds exactly the joined keys,
// in join order.
func validateCoverage(audit, expected []domain.AuditRecord) *phase {
	p := &phase{name: "Audit covers every source key"}
	if len(audit) != len(expected) {
		p.errorf("row count: audit has %d, sources join to %d", len(audit), len(expected))
	}
	for i := range min(len(audit), len(expected)) {
		if audit[i].Key != expected[i].Key {
			p.errorf("row %d: key %q, expected %q", i+1, audit[i].Key, expected[i].Key)
		}
	}
	return p
}

// validateMeasurements checks that sensor and EO values were copied unchanged.
func validateMeasurements(audit, expected []domain.AuditRecord) *phase {
	p := &phase{name: "Measurements match sources"}
	byKey := indexByKey(expected)
	for _, a := range audit {
		e, ok := byKey[a.Key]
		if !ok {
			continue
		}
		checkFloat(p, a.Key, "water_level", a.WaterLevel, e.WaterLevel)
		checkFloat(p, a.Key, "rainfall", a.Rainfall, e.Rainfall)
		checkFloat(p, a.Key, "humidity", a.Humidity, e.Humidity)
		checkFloat(p, a.Key, "soil_saturation", a.SoilSaturation, e.SoilSaturation)
		checkFloat(p, a.Key, "flood_extent", a.FloodExtent, e.FloodExtent)
		if a.WetnessTrend != e.WetnessTrend {
			p.errorf("%s: wetness_trend %s, expected %s", a.Key, show(a.WetnessTrend), show(e.WetnessTrend))
		}
	}
	return p
}

// validateRisk checks that re-scoring the sources reproduces every stored
// risk and warning level exactly.
func validateRisk(audit, expected []domain.AuditRecord) *phase {
	p := &phase{name: "Risk reproduces from sources"}
	byKey := indexByKey(expected)
	for _, a := range audit {
		e, ok := byKey[a.Key]
		if !ok {
			continue
		}
		checkFloat(p, a.Key, "risk", a.Risk, e.Risk)
		if a.Level != e.Level {
			p.errorf("%s: warning_level %s, expected %s", a.Key, show(a.Level), show(e.Level))
		}
	}
	return p
}

func indexByKey(rows []domain.AuditRecord) map[string]domain.AuditRecord {
	m := make(map[string]domain.AuditRecord, len(rows))
	for _, r := range rows {
		m[r.Key] = r
	}
	return m
}

func checkFloat(p *phase, key, field string, got, want domain.Optional[float64]) {
	g, gok := got.Get()
	w, wok := want.Get()
	if gok != wok || g != w {
		p.errorf("%s: %s %s, expected %s", key, field, show(got), show(want))
	}
}

func show[T any](o domain.Optional[T]) string {
	v, ok := o.Get()
	if !ok {
		return "<absent>"
	}
	return fmt.Sprint(v)
}
