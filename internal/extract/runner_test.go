package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/warestack/wms-predict/internal/features"
	"github.com/warestack/wms-predict/internal/history"
	"github.com/warestack/wms-predict/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func demandPoint(entity string, day int, quantity float64) models.TimeSeriesPoint {
	return models.TimeSeriesPoint{
		EntityID:    entity,
		PeriodStart: time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		Metrics: map[string]float64{
			"order_count":      1,
			"total_quantity":   quantity,
			"completed_orders": 1,
		},
	}
}

func TestRunWritesAllVectorsAsJSONLines(t *testing.T) {
	source := history.NewMemoryHistory()
	source.AddDemandEvents(
		demandPoint("sku-a", 1, 5),
		demandPoint("sku-a", 2, 7),
		demandPoint("sku-b", 1, 3),
	)

	var buf bytes.Buffer
	sink := NewJSONLinesSink(&buf)
	runner := NewRunner(discardLogger(), features.NewEngine(), source)

	stats, err := runner.Run(context.Background(), Options{
		Set:     features.SetDemand,
		Since:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Workers: 2,
	}, sink)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Entities != 2 {
		t.Fatalf("expected 2 entities, got %d", stats.Entities)
	}
	if stats.Vectors != 3 {
		t.Fatalf("expected 3 vectors, got %d", stats.Vectors)
	}

	lines := 0
	seen := map[string]int{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		lines++
		var row struct {
			FeatureSet string             `json:"feature_set"`
			EntityID   string             `json:"entity_id"`
			Features   map[string]float64 `json:"features"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if row.FeatureSet != "demand" {
			t.Fatalf("unexpected feature set %s", row.FeatureSet)
		}
		if _, ok := row.Features["quantity_ma7"]; !ok {
			t.Fatalf("vector missing windowed feature: %v", row.Features)
		}
		seen[row.EntityID]++
	}
	if lines != 3 {
		t.Fatalf("expected 3 lines, got %d", lines)
	}
	if seen["sku-a"] != 2 || seen["sku-b"] != 1 {
		t.Fatalf("unexpected per-entity line counts: %v", seen)
	}
}

func TestRunHonoursSinceCutoff(t *testing.T) {
	source := history.NewMemoryHistory()
	source.AddDemandEvents(
		demandPoint("sku-a", 1, 5),
		demandPoint("sku-a", 10, 7),
	)

	var buf bytes.Buffer
	runner := NewRunner(discardLogger(), features.NewEngine(), source)
	stats, err := runner.Run(context.Background(), Options{
		Set:   features.SetDemand,
		Since: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
	}, NewJSONLinesSink(&buf))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Vectors != 1 {
		t.Fatalf("expected only post-cutoff vector, got %d", stats.Vectors)
	}
}

type failingSink struct {
	mu     sync.Mutex
	writes int
}

func (s *failingSink) Write(context.Context, features.FeatureSet, models.FeatureVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return errors.New("sink full")
}

func (s *failingSink) Close() error { return nil }

func TestRunStopsOnSinkError(t *testing.T) {
	source := history.NewMemoryHistory()
	for day := 1; day <= 20; day++ {
		source.AddDemandEvents(demandPoint("sku-a", day, float64(day)))
	}

	runner := NewRunner(discardLogger(), features.NewEngine(), source)
	_, err := runner.Run(context.Background(), Options{
		Set:   features.SetDemand,
		Since: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}, &failingSink{})
	if err == nil {
		t.Fatalf("expected sink error to surface")
	}
}

func TestRunUnknownFeatureSet(t *testing.T) {
	runner := NewRunner(discardLogger(), features.NewEngine(), history.NewMemoryHistory())
	_, err := runner.Run(context.Background(), Options{Set: features.FeatureSet("bogus")})
	if err == nil {
		t.Fatalf("expected error for unknown feature set")
	}
}

func TestRunEmptyHistoryProducesNoVectors(t *testing.T) {
	var buf bytes.Buffer
	runner := NewRunner(discardLogger(), features.NewEngine(), history.NewMemoryHistory())
	stats, err := runner.Run(context.Background(), Options{
		Set:   features.SetPicker,
		Since: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}, NewJSONLinesSink(&buf))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Entities != 0 || stats.Vectors != 0 || buf.Len() != 0 {
		t.Fatalf("expected empty run, got %+v with %d bytes", stats, buf.Len())
	}
}
