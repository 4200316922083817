package cachestore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/pkg/logging"
)

var (
	// ErrBackendUnavailable indicates the backend is unreachable and the
	// store is operating in degraded fail-open mode.
	ErrBackendUnavailable = errors.New("cache backend unavailable")
)

const (
	// DefaultCompressionThreshold is the serialized size above which
	// compression is attempted.
	DefaultCompressionThreshold = 1024

	// pingTimeout bounds the connectivity probe at construction time.
	pingTimeout = 3 * time.Second

	// reprobeInterval is how often a degraded store re-checks the
	// backend, so a recovered backend is picked up without a restart.
	reprobeInterval = 30 * time.Second

	// reprobeTimeout bounds each re-check so callers on the hot path
	// never wait long on a still-dead backend.
	reprobeTimeout = time.Second
)

// Config holds store configuration.
type Config struct {
	// CompressionEnabled toggles the compression path globally.
	CompressionEnabled bool

	// CompressionThreshold is the minimum serialized size, in bytes,
	// before compression is attempted.
	CompressionThreshold int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		CompressionEnabled:   true,
		CompressionThreshold: DefaultCompressionThreshold,
	}
}

// Store is a typed cache on a Redis backend. All other components in
// this module treat the Store as their only persistent state.
type Store struct {
	client *redis.Client
	cfg    Config
	logger zerolog.Logger

	degraded  atomic.Bool
	lastProbe atomic.Int64

	hits             atomic.Int64
	misses           atomic.Int64
	sets             atomic.Int64
	deletes          atomic.Int64
	bytesRead        atomic.Int64
	bytesWritten     atomic.Int64
	compressedWrites atomic.Int64
}

// New creates a store on the given Redis client. A nil or unreachable
// client puts the store into degraded fail-open mode: writes succeed as
// no-ops and reads miss, so a fully absent cache never changes caller
// correctness, only performance.
func New(client *redis.Client, cfg Config) *Store {
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = DefaultCompressionThreshold
	}

	s := &Store{
		client: client,
		cfg:    cfg,
		logger: logging.NewLogger("cachestore"),
	}

	if client == nil {
		s.degraded.Store(true)
		s.logger.Warn().Msg("No backend client, store running in degraded fail-open mode")
		return s
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.degraded.Store(true)
		s.lastProbe.Store(time.Now().UnixNano())
		s.logger.Warn().
			Err(err).
			Str("addr", client.Options().Addr).
			Msg("Backend unreachable, store running in degraded fail-open mode")
	}

	return s
}

// Degraded reports whether the store is in fail-open degraded mode.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// unavailable is the entry check for every operation. While degraded
// it re-probes the backend at most once per reprobeInterval; a
// successful probe clears degraded mode for all callers.
func (s *Store) unavailable(ctx context.Context) bool {
	if !s.degraded.Load() {
		return false
	}
	if s.client == nil {
		return true
	}

	now := time.Now().UnixNano()
	last := s.lastProbe.Load()
	if now-last < int64(reprobeInterval) {
		return true
	}
	if !s.lastProbe.CompareAndSwap(last, now) {
		// Another goroutine owns this probe window.
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, reprobeTimeout)
	defer cancel()

	if err := s.client.Ping(probeCtx).Err(); err != nil {
		return true
	}

	s.degraded.Store(false)
	s.logger.Info().
		Str("addr", s.client.Options().Addr).
		Msg("Backend reachable again, leaving degraded mode")
	return false
}

// Set serializes and stores a value. A zero ttl means no expiry. When
// compress is true and the payload exceeds the configured threshold, the
// compressed form is kept if it is smaller.
//
// Returns false on any backend or serialization error; failures never
// propagate past this boundary.
func (s *Store) Set(ctx context.Context, cat Category, key string, value any, ttl time.Duration, compress bool) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return true
	}

	payload, err := encodeValue(value)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to encode cache value")
		return false
	}

	data := s.maybeCompress(payload, compress)

	if err := s.client.Set(ctx, cat.Key(key), data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Backend set failed")
		return false
	}

	s.sets.Add(1)
	s.bytesWritten.Add(int64(len(data)))
	cacheBytes.WithLabelValues("written").Add(float64(len(data)))

	s.logger.Debug().
		Str("key", key).
		Str("category", string(cat)).
		Dur("ttl", ttl).
		Int("bytes", len(data)).
		Msg("Cache set")

	return true
}

// Get fetches a value into dest. Returns false on miss, backend error or
// deserialization failure; dest is left untouched in all miss cases.
func (s *Store) Get(ctx context.Context, cat Category, key string, dest any) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return false
	}

	data, err := s.client.Get(ctx, cat.Key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Backend get failed")
		}
		s.misses.Add(1)
		cacheMisses.WithLabelValues(string(cat)).Inc()
		return false
	}

	payload, err := decompress(data)
	if err != nil {
		// Corrupted payload, discard rather than return garbage
		cacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding corrupted cache payload")
		s.misses.Add(1)
		cacheMisses.WithLabelValues(string(cat)).Inc()
		return false
	}

	if err := decodeValue(payload, dest); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache payload")
		s.misses.Add(1)
		cacheMisses.WithLabelValues(string(cat)).Inc()
		return false
	}

	s.hits.Add(1)
	s.bytesRead.Add(int64(len(data)))
	cacheHits.WithLabelValues(string(cat)).Inc()
	cacheBytes.WithLabelValues("read").Add(float64(len(data)))

	return true
}

// Delete removes a key. Returns true if the key existed.
func (s *Store) Delete(ctx context.Context, cat Category, key string) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return false
	}

	n, err := s.client.Del(ctx, cat.Key(key)).Result()
	if err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Backend delete failed")
		return false
	}

	s.deletes.Add(n)
	return n > 0
}

// Exists reports whether a key is present.
func (s *Store) Exists(ctx context.Context, cat Category, key string) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return false
	}

	n, err := s.client.Exists(ctx, cat.Key(key)).Result()
	if err != nil {
		cacheErrors.WithLabelValues("exists").Inc()
		return false
	}
	return n > 0
}

// Expire sets a new TTL on an existing key.
func (s *Store) Expire(ctx context.Context, cat Category, key string, ttl time.Duration) bool {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return false
	}

	ok, err := s.client.Expire(ctx, cat.Key(key), ttl).Result()
	if err != nil {
		cacheErrors.WithLabelValues("expire").Inc()
		return false
	}
	return ok
}

// Incr atomically increments a counter by step, returning the new value.
// Unlike point operations, counter errors are surfaced: callers such as
// the rate limiter need to distinguish contention from outage to apply
// their own fail-open policy.
func (s *Store) Incr(ctx context.Context, cat Category, key string, step int64) (int64, error) {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return 0, ErrBackendUnavailable
	}

	n, err := s.client.IncrBy(ctx, cat.Key(key), step).Result()
	if err != nil {
		cacheErrors.WithLabelValues("incr").Inc()
		return 0, fmt.Errorf("backend incr: %w", err)
	}
	return n, nil
}

// Decr atomically decrements a counter by step, returning the new value.
func (s *Store) Decr(ctx context.Context, cat Category, key string, step int64) (int64, error) {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return 0, ErrBackendUnavailable
	}

	n, err := s.client.DecrBy(ctx, cat.Key(key), step).Result()
	if err != nil {
		cacheErrors.WithLabelValues("decr").Inc()
		return 0, fmt.Errorf("backend decr: %w", err)
	}
	return n, nil
}
