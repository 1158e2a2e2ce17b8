package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/warestack/wms-predict/internal/models"
)

type fakeBackend struct {
	durationResp *models.PredictionResponse
	durationErr  error
	demandResp   *models.PredictionResponse
	demandErr    error
	statuses     []models.ModelStatus
}

func (f *fakeBackend) PredictDuration(_ context.Context, _ models.DurationRequest) (*models.PredictionResponse, error) {
	return f.durationResp, f.durationErr
}

func (f *fakeBackend) PredictDemand(_ context.Context, _ models.DemandRequest) (*models.PredictionResponse, error) {
	return f.demandResp, f.demandErr
}

func (f *fakeBackend) Models() []models.ModelStatus { return f.statuses }

func newTestMux(backend Backend) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewHandlers(backend, logger).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPredictDurationReturnsResponse(t *testing.T) {
	confidence := 0.85
	backend := &fakeBackend{
		durationResp: &models.PredictionResponse{
			PredictionID: "p-1",
			ModelVersion: "model_20250301_120000",
			Prediction:   models.DurationPrediction{DurationMinutes: 20, DurationHours: 0.33},
			Confidence:   &confidence,
		},
	}
	rec := doRequest(t, newTestMux(backend), http.MethodPost, "/predict/duration", `{"order_item_count":5}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.PredictionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PredictionID != "p-1" || resp.ModelVersion != "model_20250301_120000" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPredictDurationRejectsMalformedJSON(t *testing.T) {
	rec := doRequest(t, newTestMux(&fakeBackend{}), http.MethodPost, "/predict/duration", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestValidationErrorListsAllViolations(t *testing.T) {
	backend := &fakeBackend{
		durationErr: &models.ValidationError{Violations: []models.Violation{
			{Field: "order_item_count", Reason: "must be >= 1"},
			{Field: "hour_of_day", Reason: "must be in [0,23]"},
		}},
	}
	rec := doRequest(t, newTestMux(backend), http.MethodPost, "/predict/duration", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Code       string             `json:"code"`
		Violations []models.Violation `json:"violations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "validation_failed" || len(resp.Violations) != 2 {
		t.Fatalf("unexpected validation body: %s", rec.Body.String())
	}
}

func TestModelUnavailableMapsTo503(t *testing.T) {
	backend := &fakeBackend{durationErr: models.ErrModelUnavailable}
	rec := doRequest(t, newTestMux(backend), http.MethodPost, "/predict/duration", `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestNoHistoryMapsTo404(t *testing.T) {
	backend := &fakeBackend{demandErr: models.ErrNoHistory}
	rec := doRequest(t, newTestMux(backend), http.MethodPost, "/predict/demand", `{"sku_id":"S","forecast_horizon_days":1}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSchemaMismatchMapsTo500WithoutDetail(t *testing.T) {
	backend := &fakeBackend{durationErr: &models.SchemaMismatchError{
		ModelType: "duration", Missing: []string{"secret_feature"},
	}}
	rec := doRequest(t, newTestMux(backend), http.MethodPost, "/predict/duration", `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret_feature") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestModelsEndpoint(t *testing.T) {
	backend := &fakeBackend{statuses: []models.ModelStatus{
		{Type: "duration", Loaded: true, Algorithm: "linear", Version: "model_20250301_120000"},
		{Type: "demand", Loaded: false},
	}}
	rec := doRequest(t, newTestMux(backend), http.MethodGet, "/models", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Models []models.ModelStatus `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Models) != 2 || !resp.Models[0].Loaded || resp.Models[1].Loaded {
		t.Fatalf("unexpected models body: %s", rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	backend := &fakeBackend{statuses: []models.ModelStatus{
		{Type: "duration", Loaded: true},
		{Type: "demand", Loaded: false},
	}}
	rec := doRequest(t, newTestMux(backend), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Status       string   `json:"status"`
		ModelsLoaded []string `json:"models_loaded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || len(resp.ModelsLoaded) != 1 || resp.ModelsLoaded[0] != "duration" {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestMethodNotAllowedOnPredictRoutes(t *testing.T) {
	rec := doRequest(t, newTestMux(&fakeBackend{}), http.MethodGet, "/predict/duration", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
