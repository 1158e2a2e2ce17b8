package features

import (
	"sort"
	"time"

	"github.com/warestack/wms-predict/internal/models"
)

// Granularity selects the fixed period width used to bucket raw events.
type Granularity string

const (
	// PeriodDay buckets events by UTC calendar day.
	PeriodDay Granularity = "day"
	// PeriodHour buckets events by UTC hour.
	PeriodHour Granularity = "hour"
)

// Truncate maps a timestamp onto its period boundary.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == PeriodHour {
		return t.Truncate(time.Hour)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Step returns the duration between consecutive period boundaries.
func (g Granularity) Step() time.Duration {
	if g == PeriodHour {
		return time.Hour
	}
	return 24 * time.Hour
}

// Series is one entity's dense time grid: every period between the entity's
// first and last observation, with unobserved periods zero-filled. Metric
// columns are aligned with Periods.
type Series struct {
	EntityID string
	Periods  []time.Time
	Metrics  map[string][]float64
}

// Len returns the number of grid periods.
func (s Series) Len() int { return len(s.Periods) }

// Column returns the dense values for a metric, or a zero column when the
// metric was never observed for this entity.
func (s Series) Column(metric string) []float64 {
	if col, ok := s.Metrics[metric]; ok {
		return col
	}
	return make([]float64, len(s.Periods))
}

// BuildGrid groups raw points by entity and expands each entity's history
// into a dense grid. Events falling into the same period are summed. The
// result is deterministic: entities are ordered by ID and periods ascend.
// Windowed computations must run on this grid so that sparse histories do
// not produce spurious lag gaps.
func BuildGrid(points []models.TimeSeriesPoint, g Granularity) []Series {
	byEntity := make(map[string][]models.TimeSeriesPoint)
	for _, p := range points {
		if p.EntityID == "" {
			continue
		}
		byEntity[p.EntityID] = append(byEntity[p.EntityID], p)
	}

	entityIDs := make([]string, 0, len(byEntity))
	for id := range byEntity {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)

	series := make([]Series, 0, len(entityIDs))
	for _, id := range entityIDs {
		series = append(series, buildEntityGrid(id, byEntity[id], g))
	}
	return series
}

func buildEntityGrid(entityID string, points []models.TimeSeriesPoint, g Granularity) Series {
	// Sorting by period before any windowing is mandatory, not cosmetic.
	sort.Slice(points, func(i, j int) bool {
		return points[i].PeriodStart.Before(points[j].PeriodStart)
	})

	metricNames := make(map[string]struct{})
	buckets := make(map[time.Time]map[string]float64)
	var first, last time.Time
	for i, p := range points {
		period := g.Truncate(p.PeriodStart)
		if i == 0 || period.Before(first) {
			first = period
		}
		if i == 0 || period.After(last) {
			last = period
		}
		bucket, ok := buckets[period]
		if !ok {
			bucket = make(map[string]float64, len(p.Metrics))
			buckets[period] = bucket
		}
		for name, value := range p.Metrics {
			metricNames[name] = struct{}{}
			bucket[name] += value
		}
	}

	out := Series{EntityID: entityID, Metrics: make(map[string][]float64, len(metricNames))}
	if len(points) == 0 {
		return out
	}

	step := g.Step()
	count := int(last.Sub(first)/step) + 1
	out.Periods = make([]time.Time, 0, count)
	for name := range metricNames {
		out.Metrics[name] = make([]float64, 0, count)
	}
	for period := first; !period.After(last); period = period.Add(step) {
		out.Periods = append(out.Periods, period)
		bucket := buckets[period]
		for name := range metricNames {
			out.Metrics[name] = append(out.Metrics[name], bucket[name])
		}
	}
	return out
}
