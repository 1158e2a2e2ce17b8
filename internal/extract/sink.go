package extract

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/warestack/wms-predict/internal/features"
	"github.com/warestack/wms-predict/internal/models"
)

// featureRow is the JSON-lines representation of one feature vector.
type featureRow struct {
	FeatureSet string             `json:"feature_set"`
	EntityID   string             `json:"entity_id"`
	Period     time.Time          `json:"period"`
	Features   map[string]float64 `json:"features"`
}

// JSONLinesSink writes one JSON object per vector to an io.Writer. Writes
// are serialized so lines never interleave.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
	out io.Writer
}

// NewJSONLinesSink wraps w as a JSON-lines sink. The sink does not own w;
// closing the sink does not close w unless it is an io.Closer.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w), out: w}
}

// Write encodes one vector as a single line.
func (s *JSONLinesSink) Write(_ context.Context, set features.FeatureSet, vec models.FeatureVector) error {
	row := featureRow{
		FeatureSet: string(set),
		EntityID:   vec.EntityID,
		Period:     vec.Period.UTC(),
		Features:   make(map[string]float64, len(vec.Features)),
	}
	for _, f := range vec.Features {
		row.Features[f.Name] = f.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(row)
}

// Close flushes by closing the underlying writer when it supports it.
func (s *JSONLinesSink) Close() error {
	if c, ok := s.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
