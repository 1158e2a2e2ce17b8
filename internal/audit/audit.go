// Package audit persists an append-only trail of every served prediction.
package audit

import (
	"context"
	"sync"

	"github.com/warestack/wms-predict/internal/models"
)

// Log records prediction outcomes. Rows are immutable once appended;
// implementations must never update or delete existing records.
type Log interface {
	Append(ctx context.Context, record models.PredictionRecord) error
	Close() error
}

// NopLog discards every record. Used when auditing is disabled.
type NopLog struct{}

// Append discards the record.
func (NopLog) Append(context.Context, models.PredictionRecord) error { return nil }

// Close is a no-op.
func (NopLog) Close() error { return nil }

// MemoryLog accumulates records in memory for tests and local development.
type MemoryLog struct {
	mu      sync.Mutex
	records []models.PredictionRecord
}

// NewMemoryLog creates an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append stores the record.
func (l *MemoryLog) Append(_ context.Context, record models.PredictionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

// Records returns a copy of everything appended so far.
func (l *MemoryLog) Records() []models.PredictionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.PredictionRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Close is a no-op.
func (l *MemoryLog) Close() error { return nil }
