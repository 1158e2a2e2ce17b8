package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/warestack/wms-predict/internal/metrics"
	"github.com/warestack/wms-predict/internal/models"
)

// Known model type prefixes in the artifact store.
const (
	ModelDuration = "duration"
	ModelDemand   = "demand"
)

// ModelTypes lists the model types the registry manages.
func ModelTypes() []string { return []string{ModelDuration, ModelDemand} }

// Registry keeps the newest loaded artifact per model type and swaps
// pointers atomically on reload. Readers hold a snapshot for the whole
// request, so an in-flight prediction never observes a half-replaced model.
// All store I/O happens outside the lock.
type Registry struct {
	store  ArtifactStore
	logger *slog.Logger

	mu     sync.RWMutex
	active map[string]*ModelArtifact
}

// New creates a registry over the given artifact store.
func New(store ArtifactStore, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		active: make(map[string]*ModelArtifact),
	}
}

// Get returns the active artifact for modelType. It returns
// models.ErrModelUnavailable when nothing is loaded.
func (r *Registry) Get(modelType string) (*ModelArtifact, error) {
	r.mu.RLock()
	artifact := r.active[modelType]
	r.mu.RUnlock()
	if artifact == nil {
		return nil, fmt.Errorf("model %s: %w", modelType, models.ErrModelUnavailable)
	}
	return artifact, nil
}

// LoadLatest discovers the newest artifact for modelType by version stamp,
// parses it, and installs it. On any failure the previously active artifact
// stays in place.
func (r *Registry) LoadLatest(ctx context.Context, modelType string) (*ModelArtifact, error) {
	artifact, err := r.loadLatest(ctx, modelType)
	if err != nil {
		metrics.RecordModelLoad(modelType, "failure")
		return nil, err
	}
	metrics.RecordModelLoad(modelType, "success")

	r.mu.Lock()
	r.active[modelType] = artifact
	r.mu.Unlock()

	r.logger.Info("model loaded",
		"model_type", modelType,
		"version", artifact.Version,
		"features", len(artifact.FeatureSchema))
	return artifact, nil
}

func (r *Registry) loadLatest(ctx context.Context, modelType string) (*ModelArtifact, error) {
	keys, err := r.store.List(ctx, modelType)
	if err != nil {
		return nil, &models.LoadError{Key: modelType, Err: err}
	}

	key, ok := newestKey(keys, r.logger)
	if !ok {
		return nil, fmt.Errorf("no artifacts under %s/: %w", modelType, models.ErrModelUnavailable)
	}

	payload, err := r.store.Read(ctx, key)
	if err != nil {
		return nil, &models.LoadError{Key: key, Err: err}
	}
	artifact, err := ParseArtifact(key, payload)
	if err != nil {
		return nil, &models.LoadError{Key: key, Err: err}
	}
	if artifact.ModelType != modelType {
		return nil, &models.LoadError{
			Key: key,
			Err: fmt.Errorf("payload declares model_type %q under prefix %q", artifact.ModelType, modelType),
		}
	}
	return artifact, nil
}

// newestKey picks the key with the latest parsed version timestamp. Keys
// with malformed names are skipped with a warning rather than failing the
// whole discovery.
func newestKey(keys []string, logger *slog.Logger) (string, bool) {
	type stamped struct {
		key string
		ts  time.Time
	}
	var candidates []stamped
	for _, key := range keys {
		_, ts, err := ParseVersion(key)
		if err != nil {
			logger.Warn("skipping artifact with unparsable name", "key", key, "error", err)
			continue
		}
		candidates = append(candidates, stamped{key: key, ts: ts})
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ts.Before(candidates[j].ts)
	})
	return candidates[len(candidates)-1].key, true
}

// ReloadAll reloads every known model type. Per-type failures are joined
// and returned; types that loaded successfully are installed regardless.
func (r *Registry) ReloadAll(ctx context.Context) error {
	var errs []error
	for _, modelType := range ModelTypes() {
		if _, err := r.LoadLatest(ctx, modelType); err != nil {
			r.logger.Warn("model reload failed", "model_type", modelType, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", modelType, err))
		}
	}
	return errors.Join(errs...)
}

// Status reports the load state of every known model type.
func (r *Registry) Status() []models.ModelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ModelStatus, 0, len(ModelTypes()))
	for _, modelType := range ModelTypes() {
		status := models.ModelStatus{Type: modelType}
		if artifact := r.active[modelType]; artifact != nil {
			status.Loaded = true
			status.Algorithm = artifact.Model.Algorithm
			status.Version = artifact.Version
		}
		out = append(out, status)
	}
	return out
}
