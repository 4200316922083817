package cachestore

import (
	"context"
	"fmt"
	"strings"
)

// Keys enumerates keys matching pattern within a category using a single
// blocking KEYS call. Acceptable only for small key spaces (tests, admin
// tooling); production sweeps must use ScanKeys.
//
// Returned keys have the category prefix stripped.
func (s *Store) Keys(ctx context.Context, pattern string, cat Category) ([]string, error) {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return nil, ErrBackendUnavailable
	}

	keys, err := s.client.Keys(ctx, cat.Key(pattern)).Result()
	if err != nil {
		cacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("backend keys: %w", err)
	}

	return stripCategory(keys, cat), nil
}

// ScanKeys enumerates keys matching pattern within a category using a
// cursor-based SCAN, so the shared backend is never blocked by a single
// long enumeration. batchSize is the per-iteration COUNT hint.
//
// Returned keys have the category prefix stripped.
func (s *Store) ScanKeys(ctx context.Context, pattern string, cat Category, batchSize int64) ([]string, error) {
	if s.unavailable(ctx) {
		degradedOps.Inc()
		return nil, ErrBackendUnavailable
	}

	if batchSize <= 0 {
		batchSize = 100
	}

	var keys []string
	iter := s.client.Scan(ctx, 0, cat.Key(pattern), batchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		cacheErrors.WithLabelValues("scan").Inc()
		return nil, fmt.Errorf("backend scan: %w", err)
	}

	return stripCategory(keys, cat), nil
}

func stripCategory(keys []string, cat Category) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, string(cat)))
	}
	return out
}
