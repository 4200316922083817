package httpmw

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cachegate/cachegate/pkg/ratelimit"
)

// KeyFunc derives the rate-limit client key from a request, typically
// an API key header or the remote address.
type KeyFunc func(r *http.Request) (clientKey, tier string)

// ClassFunc maps a request to an endpoint class name.
type ClassFunc func(r *http.Request) string

// RemoteAddrKey is the default KeyFunc: the remote address under the
// anonymous tier.
func RemoteAddrKey(r *http.Request) (string, string) {
	return r.RemoteAddr, ratelimit.DefaultTierName
}

// DefaultClass maps every request to the default endpoint class.
func DefaultClass(*http.Request) string {
	return "default"
}

// RateLimit enforces per-minute token bucket limits before the handler
// runs. Denied requests get 429 with a Retry-After header; allowed
// requests carry X-RateLimit-* headers describing the current bucket.
func RateLimit(limiter *ratelimit.Limiter, keyFn KeyFunc, classFn ClassFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = RemoteAddrKey
	}
	if classFn == nil {
		classFn = DefaultClass
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey, tier := keyFn(r)
			class := classFn(r)

			res, err := limiter.Check(r.Context(), clientKey, tier, class, ratelimit.WindowMinute)
			if err != nil {
				http.Error(w, "rate limiter failure", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(res.Limit, 'f', -1, 64))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(res.Remaining, 'f', -1, 64))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(res.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
