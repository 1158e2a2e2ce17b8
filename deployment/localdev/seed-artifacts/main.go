// Command seed-artifacts writes a pair of toy model documents into a local
// artifact directory so predict-engine can serve without a training run.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/warestack/wms-predict/internal/registry"
)

func main() {
	var dir string
	flag.StringVar(&dir, "dir", "artifacts", "Artifact directory to seed")
	flag.Parse()

	now := time.Now().UTC()
	stamp := now.Format("20060102_150405")

	durationSchema := []string{
		"order_item_count", "order_total_value", "hour_of_day", "day_of_week",
		"is_peak_hour", "is_weekend", "sku_count", "avg_sku_popularity",
		"max_sku_popularity", "zone_diversity", "max_distance_zone",
		"priority_level", "picker_count",
	}
	duration := registry.ModelArtifact{
		ModelType:     registry.ModelDuration,
		CreatedAt:     now,
		FeatureSchema: durationSchema,
		Scaler: &registry.Scaler{
			Mean: []float64{4.2, 150, 12, 3, 0.3, 0.28, 2.8, 0.45, 0.7, 1.9, 2.6, 2.1, 3.5},
			Std:  []float64{2.9, 120, 5.1, 2, 0.46, 0.45, 1.7, 0.2, 0.25, 1.1, 1.3, 0.8, 1.9},
		},
		Model: registry.LinearModel{
			Algorithm: registry.AlgorithmLinear,
			Intercept: 18.5,
			Coefficients: []float64{
				4.1, 0.6, 0.9, -0.3, 2.2, 1.1, 2.8, -1.4, 0.7, 3.2, 2.5, -1.8, -2.6,
			},
		},
	}

	demand := registry.ModelArtifact{
		ModelType:     registry.ModelDemand,
		CreatedAt:     now,
		FeatureSchema: []string{"quantity_lag1", "quantity_lag7", "quantity_ma7", "day_of_week"},
		Model: registry.LinearModel{
			Algorithm:    registry.AlgorithmLinear,
			Intercept:    2.1,
			Coefficients: []float64{0.35, 0.2, 0.4, 0.15},
		},
	}

	write(dir, registry.ModelDuration, stamp, duration)
	write(dir, registry.ModelDemand, stamp, demand)
	log.Printf("seeded %s with duration and demand artifacts (version model_%s)", dir, stamp)
}

func write(dir, modelType, stamp string, artifact registry.ModelArtifact) {
	target := filepath.Join(dir, modelType)
	if err := os.MkdirAll(target, 0o755); err != nil {
		log.Fatalf("create %s: %v", target, err)
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		log.Fatalf("encode %s artifact: %v", modelType, err)
	}
	path := filepath.Join(target, "model_"+stamp+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
}
