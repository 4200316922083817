// Package cachestore provides a typed key-value cache on a Redis backend.
//
// The store wraps go-redis with the conventions the rest of the system
// relies on:
//
// - Mandatory key namespacing by category (cache:, rate_limit:, etag:, ...)
// - Typed set/get with an explicit envelope (no duck-typed reads)
// - Opportunistic gzip compression for large payloads
// - Batch MGet/MSet via pipelines
// - Atomic counters, advisory locks and FIFO queues
// - Fail-open degraded mode when the backend is unreachable
//
// # Basic Usage
//
//	client := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	store := cachestore.New(client, cachestore.DefaultConfig())
//
//	ok := store.Set(ctx, cachestore.CategoryCache, "profile:42", profile,
//		10*time.Minute, true)
//
//	var cached Profile
//	if store.Get(ctx, cachestore.CategoryCache, "profile:42", &cached) {
//		// cache hit
//	}
//
// # Failure Semantics
//
// The store never surfaces backend failures to point operations. Set
// reports success as a no-op, Get reports a miss, and the degraded state
// is visible through Stats and logs. Callers must be correct (if slower)
// with a fully absent cache. Counters and locks do return errors, because
// their callers need to distinguish contention from outage.
//
// # Key Enumeration
//
// Keys issues a single blocking KEYS command and is acceptable only for
// small key spaces (tests, admin tooling). Production sweeps must use
// ScanKeys, which walks the key space incrementally with SCAN.
package cachestore
