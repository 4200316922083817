// Package conditional maintains watermarks and cached ETag values for
// conditional HTTP caching.
//
// A watermark is an opaque, monotonically-advancing version marker for
// an entity or collection. ETags are cached keyed by the watermark they
// were derived from plus the request-shaping parameters, so a stale
// record is structurally unreachable once the watermark advances -
// staleness never needs to be detected. TTLs are deliberately short so
// that even a missed invalidation self-heals quickly.
//
// Every getter fails open: a miss or backend error means "recompute the
// ETag from source", never a hard failure.
package conditional

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/logging"
)

// Default TTLs. Short on purpose: see the package comment.
const (
	DefaultWatermarkTTL      = 60 * time.Second
	DefaultCollectionETagTTL = 180 * time.Second
	DefaultEntityETagTTL     = 600 * time.Second
)

// Config holds conditional cache configuration.
type Config struct {
	WatermarkTTL      time.Duration
	CollectionETagTTL time.Duration
	EntityETagTTL     time.Duration

	// SweepBatchSize is the SCAN batch hint for invalidation sweeps.
	SweepBatchSize int64

	// SweepWorkers bounds the concurrency of sweep deletions.
	SweepWorkers int
}

// DefaultConfig returns the default conditional cache configuration.
func DefaultConfig() Config {
	return Config{
		WatermarkTTL:      DefaultWatermarkTTL,
		CollectionETagTTL: DefaultCollectionETagTTL,
		EntityETagTTL:     DefaultEntityETagTTL,
		SweepBatchSize:    100,
		SweepWorkers:      4,
	}
}

// Cache is the watermark and ETag manager.
type Cache struct {
	store  *cachestore.Store
	cfg    Config
	logger zerolog.Logger
}

// New creates a conditional cache on the given store.
func New(store *cachestore.Store, cfg Config) *Cache {
	if cfg.WatermarkTTL <= 0 {
		cfg.WatermarkTTL = DefaultWatermarkTTL
	}
	if cfg.CollectionETagTTL <= 0 {
		cfg.CollectionETagTTL = DefaultCollectionETagTTL
	}
	if cfg.EntityETagTTL <= 0 {
		cfg.EntityETagTTL = DefaultEntityETagTTL
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	if cfg.SweepWorkers <= 0 {
		cfg.SweepWorkers = 4
	}

	return &Cache{
		store:  store,
		cfg:    cfg,
		logger: logging.NewLogger("conditional"),
	}
}

// Key layout within the etag: namespace.
func watermarkKey(entityType string) string {
	return fmt.Sprintf("watermark:%s", entityType)
}

func entityWatermarkKey(entityType, entityID string) string {
	return fmt.Sprintf("watermark:%s:%s", entityType, entityID)
}

func collectionKey(entityType, queryHash string) string {
	return fmt.Sprintf("collection:%s:%s", entityType, queryHash)
}

func entityKey(entityType, entityID, ctxHash string) string {
	return fmt.Sprintf("entity:%s:%s:%s", entityType, entityID, ctxHash)
}

func relationsKey(entityType, entityID string) string {
	return fmt.Sprintf("relations:%s:%s", entityType, entityID)
}

// GetWatermark returns the collection-level watermark for a type.
func (c *Cache) GetWatermark(ctx context.Context, entityType string) (string, bool) {
	var v string
	ok := c.store.Get(ctx, cachestore.CategoryETag, watermarkKey(entityType), &v)
	return v, ok
}

// SetWatermark advances the collection-level watermark for a type.
// Every mutation to an entity of the type must advance this.
func (c *Cache) SetWatermark(ctx context.Context, entityType, version string) bool {
	return c.store.Set(ctx, cachestore.CategoryETag, watermarkKey(entityType), version,
		c.cfg.WatermarkTTL, false)
}

// GetEntityWatermark returns the watermark of a single entity.
func (c *Cache) GetEntityWatermark(ctx context.Context, entityType, entityID string) (string, bool) {
	var v string
	ok := c.store.Get(ctx, cachestore.CategoryETag, entityWatermarkKey(entityType, entityID), &v)
	return v, ok
}

// SetEntityWatermark advances the watermark of a single entity.
func (c *Cache) SetEntityWatermark(ctx context.Context, entityType, entityID, version string) bool {
	return c.store.Set(ctx, cachestore.CategoryETag, entityWatermarkKey(entityType, entityID), version,
		c.cfg.WatermarkTTL, false)
}

// GetCollectionETag looks up a cached collection ETag under a stable
// hash of the query parameters.
func (c *Cache) GetCollectionETag(ctx context.Context, entityType string, queryParams url.Values) (string, bool) {
	var etag string
	ok := c.store.Get(ctx, cachestore.CategoryETag,
		collectionKey(entityType, hashQueryParams(queryParams)), &etag)
	if ok {
		etagLookups.WithLabelValues("collection", "hit").Inc()
	} else {
		etagLookups.WithLabelValues("collection", "miss").Inc()
	}
	return etag, ok
}

// SetCollectionETag caches a computed collection ETag.
func (c *Cache) SetCollectionETag(ctx context.Context, entityType string, queryParams url.Values, etag string) bool {
	return c.store.Set(ctx, cachestore.CategoryETag,
		collectionKey(entityType, hashQueryParams(queryParams)), etag,
		c.cfg.CollectionETagTTL, false)
}

// GetEntityETag looks up a cached entity ETag for a request context.
func (c *Cache) GetEntityETag(ctx context.Context, entityType, entityID string, rc RequestContext) (string, bool) {
	var etag string
	ok := c.store.Get(ctx, cachestore.CategoryETag,
		entityKey(entityType, entityID, hashContext(rc)), &etag)
	if ok {
		etagLookups.WithLabelValues("entity", "hit").Inc()
	} else {
		etagLookups.WithLabelValues("entity", "miss").Inc()
	}
	return etag, ok
}

// SetEntityETag caches a computed entity ETag for a request context.
func (c *Cache) SetEntityETag(ctx context.Context, entityType, entityID string, rc RequestContext, etag string) bool {
	return c.store.Set(ctx, cachestore.CategoryETag,
		entityKey(entityType, entityID, hashContext(rc)), etag,
		c.cfg.EntityETagTTL, false)
}

// CacheRelationsHash stores a hash of an entity's related records, so a
// change in relations can be detected without recomputing the entity's
// own ETag.
func (c *Cache) CacheRelationsHash(ctx context.Context, entityType, entityID, hash string) bool {
	return c.store.Set(ctx, cachestore.CategoryETag, relationsKey(entityType, entityID), hash,
		c.cfg.EntityETagTTL, false)
}

// GetRelationsHash returns the cached relations hash of an entity.
func (c *Cache) GetRelationsHash(ctx context.Context, entityType, entityID string) (string, bool) {
	var h string
	ok := c.store.Get(ctx, cachestore.CategoryETag, relationsKey(entityType, entityID), &h)
	if ok {
		etagLookups.WithLabelValues("relations", "hit").Inc()
	} else {
		etagLookups.WithLabelValues("relations", "miss").Inc()
	}
	return h, ok
}
