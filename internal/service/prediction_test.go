package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/warestack/wms-predict/internal/audit"
	"github.com/warestack/wms-predict/internal/history"
	"github.com/warestack/wms-predict/internal/models"
	"github.com/warestack/wms-predict/internal/registry"
)

type fakeModels struct {
	artifacts map[string]*registry.ModelArtifact
}

func (f fakeModels) Get(modelType string) (*registry.ModelArtifact, error) {
	artifact, ok := f.artifacts[modelType]
	if !ok {
		return nil, models.ErrModelUnavailable
	}
	return artifact, nil
}

func (f fakeModels) Status() []models.ModelStatus {
	var out []models.ModelStatus
	for t, a := range f.artifacts {
		out = append(out, models.ModelStatus{Type: t, Loaded: true, Algorithm: a.Model.Algorithm, Version: a.Version})
	}
	return out
}

var durationSchema = []string{
	"order_item_count", "order_total_value", "hour_of_day", "day_of_week",
	"is_peak_hour", "is_weekend", "sku_count", "avg_sku_popularity",
	"max_sku_popularity", "zone_diversity", "max_distance_zone",
	"priority_level", "picker_count",
}

func durationArtifact(intercept float64, coef float64) *registry.ModelArtifact {
	coefs := make([]float64, len(durationSchema))
	for i := range coefs {
		coefs[i] = 0
	}
	coefs[0] = coef
	return &registry.ModelArtifact{
		ModelType:     registry.ModelDuration,
		FeatureSchema: durationSchema,
		Model: registry.LinearModel{
			Algorithm:    registry.AlgorithmLinear,
			Intercept:    intercept,
			Coefficients: coefs,
		},
		Version: "model_20250301_120000",
	}
}

func demandArtifact() *registry.ModelArtifact {
	return &registry.ModelArtifact{
		ModelType:     registry.ModelDemand,
		FeatureSchema: []string{"quantity_lag1"},
		Model: registry.LinearModel{
			Algorithm:    registry.AlgorithmLinear,
			Coefficients: []float64{1},
		},
		Version: "model_20250215_080000",
	}
}

func validDurationRequest() models.DurationRequest {
	return models.DurationRequest{
		OrderID:          "ORD-1",
		OrderItemCount:   5,
		OrderTotalValue:  120.5,
		HourOfDay:        9,
		DayOfWeek:        2,
		IsPeakHour:       1,
		IsWeekend:        0,
		SKUCount:         3,
		AvgSKUPopularity: 0.4,
		MaxSKUPopularity: 0.9,
		ZoneDiversity:    2,
		MaxDistanceZone:  3,
		PriorityLevel:    2,
		PickerCount:      4,
	}
}

func newTestService(t *testing.T, reg ModelSource, demandHistory history.DemandHistory, log audit.Log) *PredictionService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewPredictionService(logger, reg, demandHistory, log, time.Second)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "fixed-prediction-id" }
	return svc
}

func TestPredictDurationHappyPath(t *testing.T) {
	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDuration: durationArtifact(10, 2),
	}}
	auditLog := audit.NewMemoryLog()
	svc := newTestService(t, reg, history.NewMemoryHistory(), auditLog)

	resp, err := svc.PredictDuration(context.Background(), validDurationRequest())
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	pred, ok := resp.Prediction.(models.DurationPrediction)
	if !ok {
		t.Fatalf("unexpected prediction type %T", resp.Prediction)
	}
	// intercept 10 + 2*order_item_count(5) = 20 minutes.
	if pred.DurationMinutes != 20 {
		t.Fatalf("expected 20 minutes, got %f", pred.DurationMinutes)
	}
	if pred.DurationHours != 0.33 {
		t.Fatalf("expected 0.33 hours, got %f", pred.DurationHours)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %v", resp.Confidence)
	}
	if resp.ModelVersion != "model_20250301_120000" {
		t.Fatalf("unexpected model version %s", resp.ModelVersion)
	}

	records := auditLog.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	rec := records[0]
	if rec.PredictionID != resp.PredictionID || rec.ModelType != registry.ModelDuration {
		t.Fatalf("audit record mismatch: %+v", rec)
	}
	if rec.EntityID != "ORD-1" || rec.EntityType != "order" {
		t.Fatalf("audit entity mismatch: %+v", rec)
	}
	if rec.Output["duration_minutes"] != 20 {
		t.Fatalf("audit output mismatch: %v", rec.Output)
	}
	if len(rec.InputFeatures) != len(durationSchema) {
		t.Fatalf("audit input snapshot incomplete: %v", rec.InputFeatures)
	}
}

func TestPredictDurationClampsNegativeToZero(t *testing.T) {
	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDuration: durationArtifact(-500, 0),
	}}
	svc := newTestService(t, reg, history.NewMemoryHistory(), audit.NopLog{})

	resp, err := svc.PredictDuration(context.Background(), validDurationRequest())
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	pred := resp.Prediction.(models.DurationPrediction)
	if pred.DurationMinutes != 0 || pred.DurationHours != 0 {
		t.Fatalf("negative prediction must clamp to zero, got %+v", pred)
	}
}

func TestPredictDurationCollectsAllViolations(t *testing.T) {
	svc := newTestService(t, fakeModels{}, history.NewMemoryHistory(), audit.NopLog{})

	req := validDurationRequest()
	req.OrderItemCount = 0
	req.HourOfDay = 25
	req.PriorityLevel = 9

	_, err := svc.PredictDuration(context.Background(), req)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}
}

func TestPredictDurationModelUnavailable(t *testing.T) {
	svc := newTestService(t, fakeModels{}, history.NewMemoryHistory(), audit.NopLog{})

	_, err := svc.PredictDuration(context.Background(), validDurationRequest())
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestPredictDurationSchemaMismatch(t *testing.T) {
	artifact := durationArtifact(0, 1)
	artifact.Model.Coefficients = artifact.Model.Coefficients[:5]

	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDuration: artifact,
	}}
	svc := newTestService(t, reg, history.NewMemoryHistory(), audit.NopLog{})

	_, err := svc.PredictDuration(context.Background(), validDurationRequest())
	var serr *models.SchemaMismatchError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if serr.Want != 5 || serr.Got != len(durationSchema) {
		t.Fatalf("unexpected dimensions in %+v", serr)
	}
}

func TestPredictDurationUnknownSchemaFieldDefaultsToZero(t *testing.T) {
	artifact := durationArtifact(10, 3)
	artifact.FeatureSchema = append([]string{"feature_from_the_future"}, durationSchema[1:]...)

	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDuration: artifact,
	}}
	svc := newTestService(t, reg, history.NewMemoryHistory(), audit.NopLog{})

	resp, err := svc.PredictDuration(context.Background(), validDurationRequest())
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	// The unknown feature contributes 3*0, leaving only the intercept.
	pred := resp.Prediction.(models.DurationPrediction)
	if pred.DurationMinutes != 10 {
		t.Fatalf("expected 10 minutes, got %f", pred.DurationMinutes)
	}
}

func TestPredictDemandTrailingAverageWithTrend(t *testing.T) {
	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDemand: demandArtifact(),
	}}
	hist := history.NewMemoryHistory()
	hist.SetDaily("SKU-7", []float64{10, 12, 9, 11, 14, 13, 15})
	svc := newTestService(t, reg, hist, audit.NopLog{})

	resp, err := svc.PredictDemand(context.Background(), models.DemandRequest{SKUID: "SKU-7", ForecastHorizonDays: 2})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	pred := resp.Prediction.(models.DemandPrediction)
	if len(pred.Forecasts) != 2 {
		t.Fatalf("expected 2 forecast points, got %d", len(pred.Forecasts))
	}
	// avg=12, trend=(15-10)/7: day1=12.71, day2=13.43 after rounding.
	if pred.Forecasts[0].ForecastQuantity != 12.71 {
		t.Fatalf("day 1: expected 12.71, got %f", pred.Forecasts[0].ForecastQuantity)
	}
	if pred.Forecasts[1].ForecastQuantity != 13.43 {
		t.Fatalf("day 2: expected 13.43, got %f", pred.Forecasts[1].ForecastQuantity)
	}
	if pred.Forecasts[0].ForecastDate != "2025-03-11" || pred.Forecasts[1].ForecastDate != "2025-03-12" {
		t.Fatalf("unexpected forecast dates: %+v", pred.Forecasts)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %v", resp.Confidence)
	}
	if resp.Metadata["history_days"] != 7 {
		t.Fatalf("expected history_days metadata 7, got %v", resp.Metadata["history_days"])
	}
}

func TestPredictDemandShortHistoryHasNoTrend(t *testing.T) {
	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDemand: demandArtifact(),
	}}
	hist := history.NewMemoryHistory()
	hist.SetDaily("SKU-7", []float64{4, 8})
	svc := newTestService(t, reg, hist, audit.NopLog{})

	resp, err := svc.PredictDemand(context.Background(), models.DemandRequest{SKUID: "SKU-7", ForecastHorizonDays: 3})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	pred := resp.Prediction.(models.DemandPrediction)
	for _, f := range pred.Forecasts {
		if f.ForecastQuantity != 6 {
			t.Fatalf("flat forecast expected with short history, got %+v", f)
		}
	}
}

func TestPredictDemandGatedOnArtifact(t *testing.T) {
	hist := history.NewMemoryHistory()
	hist.SetDaily("SKU-7", []float64{5, 5, 5})
	svc := newTestService(t, fakeModels{}, hist, audit.NopLog{})

	_, err := svc.PredictDemand(context.Background(), models.DemandRequest{SKUID: "SKU-7", ForecastHorizonDays: 1})
	if !errors.Is(err, models.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestPredictDemandNoHistory(t *testing.T) {
	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDemand: demandArtifact(),
	}}
	svc := newTestService(t, reg, history.NewMemoryHistory(), audit.NopLog{})

	_, err := svc.PredictDemand(context.Background(), models.DemandRequest{SKUID: "SKU-UNKNOWN", ForecastHorizonDays: 1})
	if !errors.Is(err, models.ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, models.PredictionRecord) error {
	return &models.AuditWriteError{Err: errors.New("sink down")}
}
func (failingAudit) Close() error { return nil }

func TestAuditFailureDoesNotFailPrediction(t *testing.T) {
	reg := fakeModels{artifacts: map[string]*registry.ModelArtifact{
		registry.ModelDuration: durationArtifact(10, 0),
	}}
	svc := newTestService(t, reg, history.NewMemoryHistory(), failingAudit{})

	resp, err := svc.PredictDuration(context.Background(), validDurationRequest())
	if err != nil {
		t.Fatalf("prediction must succeed despite audit failure: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if resp.PredictionID == "" {
		t.Fatalf("missing prediction id")
	}
}
