// Package history reads warehouse activity used for demand forecasting
// and batch feature extraction.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warestack/wms-predict/internal/models"
)

// DemandHistory returns recent daily demand for a SKU. Quantities come
// back in ascending date order, at most days entries, and the call fails
// with models.ErrNoHistory when the SKU has no recorded demand at all.
type DemandHistory interface {
	RecentDaily(ctx context.Context, skuID string, days int) ([]float64, error)
}

// EventSource streams raw per-entity activity for batch feature
// extraction. Points are bucketed by the feature engine, so sources may
// return them in any order.
type EventSource interface {
	DemandEvents(ctx context.Context, since time.Time) ([]models.TimeSeriesPoint, error)
	PickerEvents(ctx context.Context, since time.Time) ([]models.TimeSeriesPoint, error)
}

// MemoryHistory is a map-backed DemandHistory and EventSource for tests
// and local development.
type MemoryHistory struct {
	mu     sync.RWMutex
	daily  map[string][]float64
	demand []models.TimeSeriesPoint
	picker []models.TimeSeriesPoint
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{daily: make(map[string][]float64)}
}

// SetDaily replaces the daily demand series for a SKU, oldest first.
func (m *MemoryHistory) SetDaily(skuID string, quantities []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[skuID] = append([]float64(nil), quantities...)
}

// AddDemandEvents appends raw demand events for extraction.
func (m *MemoryHistory) AddDemandEvents(points ...models.TimeSeriesPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.demand = append(m.demand, points...)
}

// AddPickerEvents appends raw picker events for extraction.
func (m *MemoryHistory) AddPickerEvents(points ...models.TimeSeriesPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.picker = append(m.picker, points...)
}

// RecentDaily returns the last days entries of the SKU's series.
func (m *MemoryHistory) RecentDaily(_ context.Context, skuID string, days int) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series, ok := m.daily[skuID]
	if !ok || len(series) == 0 {
		return nil, fmt.Errorf("sku %s: %w", skuID, models.ErrNoHistory)
	}
	if len(series) > days {
		series = series[len(series)-days:]
	}
	return append([]float64(nil), series...), nil
}

// DemandEvents returns stored demand events at or after since.
func (m *MemoryHistory) DemandEvents(_ context.Context, since time.Time) ([]models.TimeSeriesPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterSince(m.demand, since), nil
}

// PickerEvents returns stored picker events at or after since.
func (m *MemoryHistory) PickerEvents(_ context.Context, since time.Time) ([]models.TimeSeriesPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterSince(m.picker, since), nil
}

func filterSince(points []models.TimeSeriesPoint, since time.Time) []models.TimeSeriesPoint {
	var out []models.TimeSeriesPoint
	for _, p := range points {
		if !p.PeriodStart.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out
}
