package cachestore

// Category is the logical namespace a key belongs to. Every key is
// prefixed with its category before touching the backend, so categories
// never collide.
//
// Prefixes are part of the on-wire contract: changing one is a breaking
// change that requires a flush or migration.
type Category string

const (
	// CategoryCache holds general-purpose cached values.
	CategoryCache Category = "cache:"

	// CategoryRateLimit holds token buckets and burst counters.
	CategoryRateLimit Category = "rate_limit:"

	// CategoryETag holds watermarks, ETags and relations hashes.
	CategoryETag Category = "etag:"

	// CategoryIdempotency holds stored responses for idempotent replay.
	CategoryIdempotency Category = "idempotency:"

	// CategoryLocks holds advisory lock keys.
	CategoryLocks Category = "locks:"

	// CategoryQueues holds FIFO queue lists.
	CategoryQueues Category = "queues:"
)

// Key returns the fully namespaced backend key.
func (c Category) Key(key string) string {
	return string(c) + key
}
