// Package service orchestrates the prediction serving path: validation,
// featurization, scoring, audit, and instrumentation.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warestack/wms-predict/internal/audit"
	"github.com/warestack/wms-predict/internal/history"
	"github.com/warestack/wms-predict/internal/metrics"
	"github.com/warestack/wms-predict/internal/models"
	"github.com/warestack/wms-predict/internal/registry"
	"github.com/warestack/wms-predict/internal/utils"
)

// Confidence reported per model type. These are fixed serving-time values,
// not computed from the input.
const (
	durationConfidence = 0.85
	demandConfidence   = 0.75
)

// ModelSource is the registry surface the service consumes.
type ModelSource interface {
	Get(modelType string) (*registry.ModelArtifact, error)
	Status() []models.ModelStatus
}

// PredictionService serves duration predictions and demand forecasts. A
// prediction holds one artifact snapshot from validation through audit, so
// concurrent reloads never mix model versions within a request.
type PredictionService struct {
	logger       *slog.Logger
	registry     ModelSource
	history      history.DemandHistory
	auditLog     audit.Log
	auditTimeout time.Duration
	latencies    *utils.LatencyTracker
	now          func() time.Time
	newID        func() string

	auditWG sync.WaitGroup
}

// NewPredictionService constructs the serving facade.
func NewPredictionService(logger *slog.Logger, reg ModelSource, demandHistory history.DemandHistory, auditLog audit.Log, auditTimeout time.Duration) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditTimeout <= 0 {
		auditTimeout = 2 * time.Second
	}
	return &PredictionService{
		logger:       logger,
		registry:     reg,
		history:      demandHistory,
		auditLog:     auditLog,
		auditTimeout: auditTimeout,
		latencies:    utils.NewLatencyTracker(1024),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// PredictDuration scores an order duration request against the active
// duration model.
func (s *PredictionService) PredictDuration(ctx context.Context, req models.DurationRequest) (*models.PredictionResponse, error) {
	start := s.now()

	if err := req.Validate(); err != nil {
		metrics.ObservePrediction(registry.ModelDuration, s.now().Sub(start), metrics.StatusError)
		return nil, err
	}

	artifact, err := s.registry.Get(registry.ModelDuration)
	if err != nil {
		metrics.ObservePrediction(registry.ModelDuration, s.now().Sub(start), metrics.StatusError)
		return nil, err
	}

	fields := req.Fields()
	vector, err := featurize(artifact, fields)
	if err != nil {
		metrics.ObservePrediction(registry.ModelDuration, s.now().Sub(start), metrics.StatusError)
		s.logger.Error("duration model schema mismatch", "version", artifact.Version, "error", err)
		return nil, err
	}

	raw, err := artifact.Predict(vector)
	if err != nil {
		metrics.ObservePrediction(registry.ModelDuration, s.now().Sub(start), metrics.StatusError)
		return nil, err
	}
	if raw < 0 {
		raw = 0
	}
	minutes := round2(raw)
	hours := round2(minutes / 60)
	confidence := round4(durationConfidence)

	response := &models.PredictionResponse{
		PredictionID: s.newID(),
		ModelVersion: artifact.Version,
		Prediction: models.DurationPrediction{
			DurationMinutes: minutes,
			DurationHours:   hours,
		},
		Confidence: &confidence,
		Metadata: map[string]any{
			"model_type":   registry.ModelDuration,
			"predicted_at": s.now().UTC().Format(time.RFC3339),
		},
	}

	s.appendAudit(models.PredictionRecord{
		PredictionID:  response.PredictionID,
		ModelType:     registry.ModelDuration,
		ModelVersion:  artifact.Version,
		EntityType:    "order",
		EntityID:      req.OrderID,
		InputFeatures: fields,
		Output: map[string]float64{
			"duration_minutes": minutes,
			"duration_hours":   hours,
		},
		Confidence: confidence,
		CreatedAt:  s.now().UTC(),
	})

	elapsed := s.now().Sub(start)
	s.latencies.Observe(elapsed)
	metrics.ObservePrediction(registry.ModelDuration, elapsed, metrics.StatusSuccess)
	return response, nil
}

// PredictDemand forecasts daily demand for a SKU. Availability is gated on
// a loaded demand artifact; the projection itself comes from the trailing
// history of the SKU.
func (s *PredictionService) PredictDemand(ctx context.Context, req models.DemandRequest) (*models.PredictionResponse, error) {
	start := s.now()

	if err := req.Validate(); err != nil {
		metrics.ObservePrediction(registry.ModelDemand, s.now().Sub(start), metrics.StatusError)
		return nil, err
	}

	artifact, err := s.registry.Get(registry.ModelDemand)
	if err != nil {
		metrics.ObservePrediction(registry.ModelDemand, s.now().Sub(start), metrics.StatusError)
		return nil, err
	}

	daily, err := s.history.RecentDaily(ctx, req.SKUID, forecastWindow)
	if err != nil {
		metrics.ObservePrediction(registry.ModelDemand, s.now().Sub(start), metrics.StatusError)
		return nil, err
	}

	forecasts := forecastDemand(daily, req.ForecastHorizonDays, s.now())
	confidence := round4(demandConfidence)

	response := &models.PredictionResponse{
		PredictionID: s.newID(),
		ModelVersion: artifact.Version,
		Prediction: models.DemandPrediction{
			SKUID:               req.SKUID,
			ForecastHorizonDays: req.ForecastHorizonDays,
			Forecasts:           forecasts,
		},
		Confidence: &confidence,
		Metadata: map[string]any{
			"model_type":   registry.ModelDemand,
			"predicted_at": s.now().UTC().Format(time.RFC3339),
			"method":       "moving_average_trend",
			"history_days": len(daily),
		},
	}

	output := make(map[string]float64, len(forecasts))
	for _, f := range forecasts {
		output[f.ForecastDate] = f.ForecastQuantity
	}
	s.appendAudit(models.PredictionRecord{
		PredictionID: response.PredictionID,
		ModelType:    registry.ModelDemand,
		ModelVersion: artifact.Version,
		EntityType:   "sku",
		EntityID:     req.SKUID,
		InputFeatures: map[string]float64{
			"forecast_horizon_days": float64(req.ForecastHorizonDays),
			"history_days":          float64(len(daily)),
		},
		Output:     output,
		Confidence: confidence,
		CreatedAt:  s.now().UTC(),
	})

	elapsed := s.now().Sub(start)
	s.latencies.Observe(elapsed)
	metrics.ObservePrediction(registry.ModelDemand, elapsed, metrics.StatusSuccess)
	return response, nil
}

// Models reports the load state of every model type.
func (s *PredictionService) Models() []models.ModelStatus {
	return s.registry.Status()
}

// LatencyP95 returns the current p95 serving latency.
func (s *PredictionService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// Close drains in-flight audit writes.
func (s *PredictionService) Close() error {
	s.auditWG.Wait()
	return nil
}

// appendAudit persists the record off the request path. Failures are
// counted and logged but never propagate to the caller.
func (s *PredictionService) appendAudit(record models.PredictionRecord) {
	s.auditWG.Add(1)
	go func() {
		defer s.auditWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.auditTimeout)
		defer cancel()
		if err := s.auditLog.Append(ctx, record); err != nil {
			metrics.RecordAuditWriteFailure()
			s.logger.Warn("audit write failed",
				"prediction_id", record.PredictionID,
				"model_type", record.ModelType,
				"error", err)
		}
	}()
}

// featurize assembles the input vector in the order the artifact's schema
// dictates. Schema names absent from the request default to zero. The
// assembled vector must still reconcile with the model's dimension; it
// cannot when the artifact's coefficients disagree with its own schema.
func featurize(artifact *registry.ModelArtifact, fields map[string]float64) ([]float64, error) {
	vector := make([]float64, len(artifact.FeatureSchema))
	for i, name := range artifact.FeatureSchema {
		vector[i] = fields[name]
	}
	if len(vector) != len(artifact.Model.Coefficients) {
		return nil, &models.SchemaMismatchError{
			ModelType: artifact.ModelType,
			Want:      len(artifact.Model.Coefficients),
			Got:       len(vector),
		}
	}
	return vector, nil
}
