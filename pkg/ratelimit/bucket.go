package ratelimit

// bucket is the durable token-bucket state for one (client, tier,
// endpoint class, window) tuple. Buckets are lazily created on first
// check and expire from the backend after two window lengths; all state
// a decision needs is reconstructed from these fields on every call.
type bucket struct {
	// Tokens is the spendable budget, refilled continuously up to the
	// window limit and decremented by one per admitted request.
	Tokens float64 `json:"tokens"`

	// LastRefill is the unix timestamp (fractional seconds) of the most
	// recent refill computation.
	LastRefill float64 `json:"last_refill"`

	// RequestsMade counts admitted requests over the bucket's lifetime.
	RequestsMade int64 `json:"requests_made"`
}

// refill tops the bucket up for the time elapsed since the last refill.
// Refill is continuous (limit/windowSeconds tokens per second) rather
// than a hard reset at window boundaries, so a client that briefly
// bursts is never locked out for a whole window.
func (b *bucket) refill(now float64, limit float64, windowSeconds int64) {
	elapsed := now - b.LastRefill
	if elapsed > 0 {
		b.Tokens += elapsed * (limit / float64(windowSeconds))
		if b.Tokens > limit {
			b.Tokens = limit
		}
	}
	b.LastRefill = now
}

// spend consumes one token if available, reporting whether the request
// is admitted.
func (b *bucket) spend() bool {
	if b.Tokens < 1 {
		return false
	}
	b.Tokens--
	b.RequestsMade++
	return true
}
