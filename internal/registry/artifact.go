package registry

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// AlgorithmLinear is the only scoring algorithm the serving path executes.
const AlgorithmLinear = "linear"

// ModelArtifact is the immutable, self-describing model document produced
// by the offline training pipeline. Artifacts are never mutated after load;
// a reload replaces the whole pointer.
type ModelArtifact struct {
	ModelType     string      `json:"model_type"`
	CreatedAt     time.Time   `json:"created_at"`
	FeatureSchema []string    `json:"feature_schema"`
	Scaler        *Scaler     `json:"scaler,omitempty"`
	Model         LinearModel `json:"model"`

	// Version is derived from the artifact's storage key, not the payload.
	Version string `json:"-"`
}

// Scaler holds per-feature standardization parameters fitted at training
// time. Transform applies (x - mean) / std per column.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Transform standardizes a feature vector in place and returns it. A zero
// std column divides by 1 so constant features pass through centered.
func (s *Scaler) Transform(features []float64) []float64 {
	if s == nil {
		return features
	}
	for i := range features {
		std := s.Std[i]
		if std == 0 {
			std = 1
		}
		features[i] = (features[i] - s.Mean[i]) / std
	}
	return features
}

// LinearModel is a trained linear regressor: intercept plus one coefficient
// per schema feature.
type LinearModel struct {
	Algorithm    string    `json:"algorithm"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Score computes intercept + dot(coefficients, features). Callers must pass
// features already ordered by the artifact's schema.
func (m LinearModel) Score(features []float64) float64 {
	sum := m.Intercept
	for i, c := range m.Coefficients {
		sum += c * features[i]
	}
	return sum
}

// Predict scales the input when a scaler is present and scores it.
func (a *ModelArtifact) Predict(features []float64) (float64, error) {
	if len(features) != len(a.FeatureSchema) {
		return 0, fmt.Errorf("feature vector has %d values, schema expects %d", len(features), len(a.FeatureSchema))
	}
	scaled := make([]float64, len(features))
	copy(scaled, features)
	return a.Model.Score(a.Scaler.Transform(scaled)), nil
}

// ParseArtifact decodes and validates an artifact payload read from key.
func ParseArtifact(key string, payload []byte) (*ModelArtifact, error) {
	var artifact ModelArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", key, err)
	}
	if artifact.ModelType == "" {
		return nil, fmt.Errorf("artifact %s: model_type is empty", key)
	}
	if artifact.Model.Algorithm != AlgorithmLinear {
		return nil, fmt.Errorf("artifact %s: unsupported algorithm %q", key, artifact.Model.Algorithm)
	}
	if len(artifact.FeatureSchema) == 0 {
		return nil, fmt.Errorf("artifact %s: feature_schema is empty", key)
	}
	if len(artifact.Model.Coefficients) != len(artifact.FeatureSchema) {
		return nil, fmt.Errorf("artifact %s: %d coefficients for %d schema features",
			key, len(artifact.Model.Coefficients), len(artifact.FeatureSchema))
	}
	if s := artifact.Scaler; s != nil {
		if len(s.Mean) != len(artifact.FeatureSchema) || len(s.Std) != len(artifact.FeatureSchema) {
			return nil, fmt.Errorf("artifact %s: scaler dimensions do not match schema", key)
		}
	}
	version, _, err := ParseVersion(key)
	if err != nil {
		return nil, err
	}
	artifact.Version = version
	return &artifact, nil
}

// ParseVersion extracts the version stamp from an artifact key of the form
// <prefix>/model_YYYYMMDD_HHMMSS.json and returns both the version string
// (model_YYYYMMDD_HHMMSS) and its parsed timestamp. Versions are ordered by
// the timestamp, never by string comparison of whole keys.
func ParseVersion(key string) (string, time.Time, error) {
	base := path.Base(key)
	name := strings.TrimSuffix(base, ".json")
	stamp, ok := strings.CutPrefix(name, "model_")
	if !ok {
		return "", time.Time{}, fmt.Errorf("artifact key %s: name must start with model_", key)
	}
	ts, err := time.Parse("20060102_150405", stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("artifact key %s: bad version stamp: %w", key, err)
	}
	return name, ts, nil
}
