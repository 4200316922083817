// Package ratelimit implements a token-bucket rate limiter keyed by
// (client, tier, endpoint class, window), with the cache store as its
// only durable state. Enforcement is approximate by design: the bucket
// read-modify-write is not atomic end-to-end, so concurrent requests
// from one client can briefly overshoot the limit, and any backend
// failure fails open so the limiter can never deny service on its own.
package ratelimit

// Window names accepted by Check.
const (
	WindowMinute = "minute"
	WindowHour   = "hour"
)

// BurstWindowSeconds is the fixed rolling window for burst tracking,
// independent of the main bucket window.
const BurstWindowSeconds = 60

// TierConfig describes the limits of one client tier. Immutable once
// loaded; deployments may override the defaults wholesale.
type TierConfig struct {
	Name              string  `json:"name"`
	RequestsPerMinute float64 `json:"requests_per_minute"`
	RequestsPerHour   float64 `json:"requests_per_hour"`
	BurstSize         float64 `json:"burst_size"`
}

// DefaultTierName is the fallback tier applied when a tier is unknown.
const DefaultTierName = "anonymous"

// DefaultTiers returns the built-in tier table.
func DefaultTiers() map[string]TierConfig {
	return map[string]TierConfig{
		"anonymous": {
			Name:              "anonymous",
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			BurstSize:         10,
		},
		"standard": {
			Name:              "standard",
			RequestsPerMinute: 200,
			RequestsPerHour:   5000,
			BurstSize:         50,
		},
		"premium": {
			Name:              "premium",
			RequestsPerMinute: 1000,
			RequestsPerHour:   20000,
			BurstSize:         200,
		},
	}
}

// DefaultEndpointClasses returns the built-in endpoint-class multiplier
// table. The multiplier scales both the tier limit and the burst size.
func DefaultEndpointClasses() map[string]float64 {
	return map[string]float64{
		"default": 1.0,
		"search":  0.7,
		"upload":  0.2,
		"admin":   2.0,
	}
}

// limitFor returns the tier's base limit for the given window size.
func (t TierConfig) limitFor(windowSeconds int64) float64 {
	if windowSeconds == 3600 {
		return t.RequestsPerHour
	}
	return t.RequestsPerMinute
}
