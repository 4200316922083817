package conditional

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cachegate/cachegate/pkg/cachestore"
)

// InvalidateEntity removes the entity's own ETag and relations entries
// plus every collection-level ETag for the type (any collection could
// include the entity), then drops the type-level watermark. Returns the
// number of keys removed.
//
// Sweeps enumerate with cursor-based SCAN only; a backend outage makes
// the sweep a no-op, which the short TTLs self-heal.
func (c *Cache) InvalidateEntity(ctx context.Context, entityType, entityID string) int {
	patterns := []string{
		entityKey(entityType, entityID, "*"),
		relationsKey(entityType, entityID),
		collectionKey(entityType, "*"),
	}

	removed := c.sweep(ctx, patterns)

	if c.store.Delete(ctx, cachestore.CategoryETag, watermarkKey(entityType)) {
		removed++
	}
	if c.store.Delete(ctx, cachestore.CategoryETag, entityWatermarkKey(entityType, entityID)) {
		removed++
	}

	invalidationsTotal.WithLabelValues("entity").Inc()
	c.logger.Info().
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Int("removed", removed).
		Msg("Entity invalidated")

	return removed
}

// InvalidateEntityType removes every watermark, entity ETag, collection
// ETag and relations hash for the type. Returns the number of keys
// removed.
func (c *Cache) InvalidateEntityType(ctx context.Context, entityType string) int {
	patterns := []string{
		entityKey(entityType, "*", "*"),
		relationsKey(entityType, "*"),
		collectionKey(entityType, "*"),
		entityWatermarkKey(entityType, "*"),
	}

	removed := c.sweep(ctx, patterns)
	if c.store.Delete(ctx, cachestore.CategoryETag, watermarkKey(entityType)) {
		removed++
	}

	invalidationsTotal.WithLabelValues("entity_type").Inc()
	c.logger.Info().
		Str("entity_type", entityType).
		Int("removed", removed).
		Msg("Entity type invalidated")

	return removed
}

// sweep enumerates all keys matching the patterns and deletes them
// through a bounded worker pool, so large invalidations neither block
// the backend with one big enumeration nor serialize every delete.
func (c *Cache) sweep(ctx context.Context, patterns []string) int {
	start := time.Now()

	var keys []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		found, err := c.store.ScanKeys(ctx, pattern, cachestore.CategoryETag, c.cfg.SweepBatchSize)
		if err != nil {
			c.logger.Warn().Err(err).Str("pattern", pattern).Msg("Sweep enumeration failed")
			continue
		}
		for _, k := range found {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}

	if len(keys) == 0 {
		return 0
	}

	queue := make(chan string, len(keys))
	for _, k := range keys {
		queue <- k
	}
	close(queue)

	var removed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.SweepWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range queue {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if c.store.Delete(ctx, cachestore.CategoryETag, key) {
					removed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	invalidatedKeys.Add(float64(removed.Load()))
	c.logger.Debug().
		Int("keys", len(keys)).
		Int64("removed", removed.Load()).
		Dur("duration", time.Since(start)).
		Msg("Sweep complete")

	return int(removed.Load())
}
