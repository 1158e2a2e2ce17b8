// Package extract runs batch feature extraction over warehouse history.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/warestack/wms-predict/internal/features"
	"github.com/warestack/wms-predict/internal/history"
	"github.com/warestack/wms-predict/internal/models"
)

// Sink receives computed feature vectors. Implementations must be safe for
// concurrent Write calls.
type Sink interface {
	Write(ctx context.Context, set features.FeatureSet, vec models.FeatureVector) error
	Close() error
}

// Options controls one extraction run.
type Options struct {
	Set     features.FeatureSet
	Since   time.Time
	Workers int
}

// Stats summarises a completed run.
type Stats struct {
	Entities int
	Vectors  int
	Elapsed  time.Duration
}

// Runner partitions raw events by entity and computes each partition's
// feature vectors on a worker pool. Entities are independent, so partitions
// never share windowed state.
type Runner struct {
	logger *slog.Logger
	engine *features.Engine
	source history.EventSource
}

// NewRunner constructs a batch extraction runner.
func NewRunner(logger *slog.Logger, engine *features.Engine, source history.EventSource) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, engine: engine, source: source}
}

// Run extracts the requested feature set and writes every vector to all
// sinks. The first error cancels remaining work.
func (r *Runner) Run(ctx context.Context, opts Options, sinks ...Sink) (Stats, error) {
	start := time.Now()

	points, err := r.fetch(ctx, opts)
	if err != nil {
		return Stats{}, err
	}
	partitions := partitionByEntity(points)

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(partitions) && len(partitions) > 0 {
		workers = len(partitions)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan []models.TimeSeriesPoint)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		vectors int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for partition := range jobs {
				n, err := r.extractPartition(runCtx, opts.Set, partition, sinks)
				mu.Lock()
				vectors += n
				if err != nil {
					errs = append(errs, err)
					cancel()
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, partition := range partitions {
		select {
		case jobs <- partition:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if len(errs) > 0 {
		return Stats{}, errors.Join(errs...)
	}
	if err := runCtx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Entities: len(partitions),
		Vectors:  vectors,
		Elapsed:  time.Since(start),
	}
	r.logger.Info("extraction complete",
		"feature_set", string(opts.Set),
		"entities", stats.Entities,
		"vectors", stats.Vectors,
		"elapsed", stats.Elapsed)
	return stats, nil
}

func (r *Runner) fetch(ctx context.Context, opts Options) ([]models.TimeSeriesPoint, error) {
	switch opts.Set {
	case features.SetDemand:
		return r.source.DemandEvents(ctx, opts.Since)
	case features.SetPicker:
		return r.source.PickerEvents(ctx, opts.Since)
	default:
		return nil, fmt.Errorf("unknown feature set %q", opts.Set)
	}
}

func (r *Runner) extractPartition(ctx context.Context, set features.FeatureSet, points []models.TimeSeriesPoint, sinks []Sink) (int, error) {
	seq, err := r.engine.Vectors(set, points)
	if err != nil {
		return 0, err
	}
	count := 0
	for vec := range seq {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		for _, sink := range sinks {
			if err := sink.Write(ctx, set, vec); err != nil {
				return count, fmt.Errorf("write vector for %s: %w", vec.EntityID, err)
			}
		}
		count++
	}
	return count, nil
}

// partitionByEntity groups points per entity, with entities in sorted order
// so runs are deterministic.
func partitionByEntity(points []models.TimeSeriesPoint) [][]models.TimeSeriesPoint {
	byEntity := make(map[string][]models.TimeSeriesPoint)
	for _, p := range points {
		byEntity[p.EntityID] = append(byEntity[p.EntityID], p)
	}
	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	out := make([][]models.TimeSeriesPoint, 0, len(entities))
	for _, entity := range entities {
		out = append(out, byEntity[entity])
	}
	return out
}
