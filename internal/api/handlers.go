// Package api exposes the prediction service over HTTP JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/warestack/wms-predict/internal/models"
)

// Backend is the service surface the handlers consume.
type Backend interface {
	PredictDuration(ctx context.Context, req models.DurationRequest) (*models.PredictionResponse, error)
	PredictDemand(ctx context.Context, req models.DemandRequest) (*models.PredictionResponse, error)
	Models() []models.ModelStatus
}

// Handlers routes prediction requests to the backend.
type Handlers struct {
	backend Backend
	logger  *slog.Logger
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(backend Backend, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{backend: backend, logger: logger}
}

// Register attaches all routes to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict/duration", h.handlePredictDuration)
	mux.HandleFunc("POST /predict/demand", h.handlePredictDemand)
	mux.HandleFunc("GET /models", h.handleModels)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handlers) handlePredictDuration(w http.ResponseWriter, r *http.Request) {
	var req models.DurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	resp, err := h.backend.PredictDuration(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handlePredictDemand(w http.ResponseWriter, r *http.Request) {
	var req models.DemandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	resp, err := h.backend.PredictDemand(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": h.backend.Models()})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := make([]string, 0, 2)
	for _, m := range h.backend.Models() {
		if m.Loaded {
			loaded = append(loaded, m.Type)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"models_loaded": loaded,
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Code:       "validation_failed",
			Message:    "request validation failed",
			Violations: verr.Violations,
		})
	case errors.Is(err, models.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", err)
	case errors.Is(err, models.ErrNoHistory):
		writeError(w, http.StatusNotFound, "no_history", err)
	default:
		h.logger.Error("prediction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", errors.New("internal error"))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type validationResponse struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []models.Violation `json:"violations"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
