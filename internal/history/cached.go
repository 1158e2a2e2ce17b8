package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warestack/wms-predict/internal/cache"
)

// CachedDemandHistory is a read-through cache over a DemandHistory. Cache
// failures degrade to the underlying source; a broken cache never fails a
// forecast. Absent history is not cached so a SKU's first orders become
// visible immediately.
type CachedDemandHistory struct {
	source DemandHistory
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedDemandHistory wraps source with provider-backed caching.
func NewCachedDemandHistory(source DemandHistory, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedDemandHistory {
	return &CachedDemandHistory{source: source, cache: provider, ttl: ttl, logger: logger}
}

// RecentDaily serves from cache when possible and falls back to source.
func (c *CachedDemandHistory) RecentDaily(ctx context.Context, skuID string, days int) ([]float64, error) {
	key := fmt.Sprintf("demand_history:%s:%d", skuID, days)

	if payload, err := c.cache.Get(ctx, key); err == nil {
		var quantities []float64
		if err := json.Unmarshal(payload, &quantities); err == nil {
			return quantities, nil
		}
		c.logger.Warn("dropping undecodable cache entry", "key", key)
		_ = c.cache.Del(ctx, key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("demand history cache read failed", "key", key, "error", err)
	}

	quantities, err := c.source.RecentDaily(ctx, skuID, days)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(quantities); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
			c.logger.Warn("demand history cache write failed", "key", key, "error", err)
		}
	}
	return quantities, nil
}

var _ DemandHistory = (*CachedDemandHistory)(nil)
var _ DemandHistory = (*MemoryHistory)(nil)
var _ EventSource = (*MemoryHistory)(nil)
var _ DemandHistory = (*PostgresHistory)(nil)
var _ EventSource = (*PostgresHistory)(nil)
