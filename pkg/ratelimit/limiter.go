package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/logging"
)

var (
	// ErrUnknownWindow indicates a window name outside the configured
	// set. This is a programming error, surfaced immediately rather than
	// silently defaulted.
	ErrUnknownWindow = errors.New("unknown rate limit window")
)

// Result is the outcome of a single limit check. The surrounding HTTP
// layer maps a denied result to 429 with a Retry-After header.
type Result struct {
	Allowed       bool      `json:"allowed"`
	Tier          string    `json:"tier"`
	EndpointClass string    `json:"endpoint_type"`
	Limit         float64   `json:"limit"`
	Remaining     float64   `json:"remaining"`
	ResetTime     time.Time `json:"reset_time"`
	Window        string    `json:"window"`
	WindowSeconds int64     `json:"window_seconds"`

	// RetryAfter is set only when the request was rejected.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// IsBurst flags an admitted request that exceeded the burst budget
	// within the rolling burst window. Observability only, the request
	// is still admitted.
	IsBurst bool `json:"is_burst,omitempty"`

	// FallbackMode flags a decision made while the backend was
	// unavailable. Such requests are always allowed.
	FallbackMode bool `json:"fallback_mode,omitempty"`
}

// Config holds limiter configuration.
type Config struct {
	// Tiers overrides the built-in tier table when non-nil.
	Tiers map[string]TierConfig

	// EndpointClasses overrides the built-in multiplier table when
	// non-nil.
	EndpointClasses map[string]float64
}

// Limiter decides request admission with a token bucket per
// (client, tier, endpoint class, window).
type Limiter struct {
	store   *cachestore.Store
	tiers   map[string]TierConfig
	classes map[string]float64
	logger  zerolog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New creates a limiter on the given store.
func New(store *cachestore.Store, cfg Config) *Limiter {
	tiers := cfg.Tiers
	if tiers == nil {
		tiers = DefaultTiers()
	}
	classes := cfg.EndpointClasses
	if classes == nil {
		classes = DefaultEndpointClasses()
	}

	return &Limiter{
		store:   store,
		tiers:   tiers,
		classes: classes,
		logger:  logging.NewLogger("ratelimit"),
		now:     time.Now,
	}
}

// Check runs the token bucket algorithm for one request. Backend
// failures fail open: the request is allowed and the result carries the
// FallbackMode marker. Only an unknown window name returns an error.
func (l *Limiter) Check(ctx context.Context, clientKey, tier, endpointClass, window string) (Result, error) {
	windowSeconds, err := l.windowSeconds(window)
	if err != nil {
		return Result{}, err
	}

	tc, ok := l.tiers[tier]
	if !ok {
		l.logger.Debug().Str("tier", tier).Msg("Unknown tier, using default")
		tc = l.tiers[DefaultTierName]
	}

	mult, ok := l.classes[endpointClass]
	if !ok {
		endpointClass = "default"
		mult = l.classes["default"]
	}

	limit := tc.limitFor(windowSeconds) * mult
	burstSize := tc.BurstSize * mult

	now := l.now()
	nowUnix := float64(now.UnixNano()) / float64(time.Second)
	windowID := now.Unix() / windowSeconds
	resetTime := time.Unix((windowID+1)*windowSeconds, 0)

	res := Result{
		Tier:          tc.Name,
		EndpointClass: endpointClass,
		Limit:         limit,
		ResetTime:     resetTime,
		Window:        window,
		WindowSeconds: windowSeconds,
	}

	if l.store.Degraded() {
		// A limiter that errors must never deny service on its own
		res.Allowed = true
		res.Remaining = limit
		res.FallbackMode = true
		checksTotal.WithLabelValues("fallback", tc.Name).Inc()
		return res, nil
	}

	bucketKey := fmt.Sprintf("bucket:%s:%s:%s:%s:%d", clientKey, tc.Name, endpointClass, window, windowID)

	b := bucket{Tokens: limit, LastRefill: nowUnix}
	l.store.Get(ctx, cachestore.CategoryRateLimit, bucketKey, &b)

	b.refill(nowUnix, limit, windowSeconds)

	if !b.spend() {
		res.Remaining = math.Floor(b.Tokens)
		res.RetryAfter = time.Duration(float64((windowID+1)*windowSeconds)-nowUnix) * time.Second
		if res.RetryAfter < time.Second {
			res.RetryAfter = time.Second
		}

		l.store.Set(ctx, cachestore.CategoryRateLimit, bucketKey, b,
			time.Duration(2*windowSeconds)*time.Second, false)

		l.logger.Warn().
			Str("client", clientKey).
			Str("tier", tc.Name).
			Str("window", window).
			Dur("retry_after", res.RetryAfter).
			Msg("Rate limit exceeded")

		checksTotal.WithLabelValues("rejected", tc.Name).Inc()
		return res, nil
	}

	res.Allowed = true
	res.Remaining = math.Floor(b.Tokens)

	// Buckets self-clean after two window lengths
	l.store.Set(ctx, cachestore.CategoryRateLimit, bucketKey, b,
		time.Duration(2*windowSeconds)*time.Second, false)

	res.IsBurst = l.trackBurst(ctx, clientKey, now, burstSize, &res)

	checksTotal.WithLabelValues("allowed", tc.Name).Inc()
	return res, nil
}

// trackBurst bumps the rolling burst counter and reports whether this
// request exceeded the burst budget. Counter failures flip the result
// into fallback mode but never reject.
func (l *Limiter) trackBurst(ctx context.Context, clientKey string, now time.Time, burstSize float64, res *Result) bool {
	burstID := now.Unix() / BurstWindowSeconds
	burstKey := fmt.Sprintf("burst:%s:%d", clientKey, burstID)

	n, err := l.store.Incr(ctx, cachestore.CategoryRateLimit, burstKey, 1)
	if err != nil {
		res.FallbackMode = true
		return false
	}
	if n == 1 {
		// Two burst windows, same self-cleaning idea as buckets
		l.store.Expire(ctx, cachestore.CategoryRateLimit, burstKey, 2*BurstWindowSeconds*time.Second)
	}

	if float64(n) > burstSize {
		burstFlagsTotal.Inc()
		l.logger.Warn().
			Str("client", clientKey).
			Int64("burst_count", n).
			Float64("burst_size", burstSize).
			Msg("Burst budget exceeded")
		return true
	}
	return false
}

func (l *Limiter) windowSeconds(window string) (int64, error) {
	switch window {
	case WindowMinute:
		return 60, nil
	case WindowHour:
		return 3600, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownWindow, window)
	}
}
