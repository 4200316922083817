// Package idempotency deduplicates retried mutating requests. The first
// successful response for a (client key, request fingerprint) pair is
// stored and replayed verbatim to byte-identical retries within a TTL
// window; the same key reused for a different request is a conflict the
// caller must surface, never a silent replay.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/logging"
)

// Idempotency headers.
const (
	HeaderKey      = "Idempotency-Key"
	HeaderKeyAlt   = "X-Idempotency-Key"
	HeaderReplayed = "X-Idempotency-Replayed"
)

// DefaultTTL is the default replay window.
const DefaultTTL = 24 * time.Hour

// ErrKeyConflict indicates an idempotency key was reused for a request
// with a different fingerprint. The safety guarantee of idempotency
// keys depends on one key mapping to exactly one logical request, so
// this must reach the caller rather than being resolved internally.
var ErrKeyConflict = errors.New("idempotency key conflict")

// ConflictError carries the details of a key conflict.
type ConflictError struct {
	Key string
	// StoredFingerprint is the fingerprint the key was first used with.
	StoredFingerprint string
	// RequestFingerprint is the fingerprint of the conflicting request.
	RequestFingerprint string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency key %q reused with a different request fingerprint", e.Key)
}

// Unwrap lets errors.Is match ErrKeyConflict.
func (e *ConflictError) Unwrap() error {
	return ErrKeyConflict
}

// Response is the stored response replayed to duplicates.
type Response struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	CachedAt   time.Time   `json:"cached_at"`
}

// Outcome is the result of checking a request.
type Outcome struct {
	// Applicable is false for non-mutating methods and requests without
	// an idempotency key header; such requests pass through untouched.
	Applicable bool

	// Duplicate reports a replay; Response carries the stored response.
	Duplicate bool

	// Key and Fingerprint identify the request for a later Store call.
	Key         string
	Fingerprint string

	Response *Response
}

// Config holds guard configuration.
type Config struct {
	// TTL is the replay window for stored responses.
	TTL time.Duration
}

// DefaultConfig returns the default guard configuration.
func DefaultConfig() Config {
	return Config{TTL: DefaultTTL}
}

// Guard checks and stores idempotent responses.
type Guard struct {
	store  *cachestore.Store
	cfg    Config
	logger zerolog.Logger
}

// New creates a guard on the given store.
func New(store *cachestore.Store, cfg Config) *Guard {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Guard{
		store:  store,
		cfg:    cfg,
		logger: logging.NewLogger("idempotency"),
	}
}

// Check classifies a request. A backend outage fails open as "not a
// duplicate"; the only returned error is the key conflict, which the
// caller must surface.
func (g *Guard) Check(ctx context.Context, r *http.Request) (Outcome, error) {
	if !mutating(r.Method) {
		return Outcome{}, nil
	}

	key := r.Header.Get(HeaderKey)
	if key == "" {
		key = r.Header.Get(HeaderKeyAlt)
	}
	if key == "" {
		return Outcome{}, nil
	}

	fp, err := Fingerprint(r)
	if err != nil {
		// An unreadable body will fail in the handler anyway; the guard
		// steps aside
		g.logger.Warn().Err(err).Str("key", key).Msg("Fingerprint failed, passing request through")
		return Outcome{}, nil
	}

	out := Outcome{Applicable: true, Key: key, Fingerprint: fp}

	var resp Response
	if g.store.Get(ctx, cachestore.CategoryIdempotency, recordKey(key, fp), &resp) {
		checksTotal.WithLabelValues("replay").Inc()
		g.logger.Debug().Str("key", key).Msg("Replaying stored response")
		out.Duplicate = true
		out.Response = &resp
		return out, nil
	}

	// Same key, different fingerprint is a conflict, not a miss
	var stored string
	if g.store.Get(ctx, cachestore.CategoryIdempotency, fingerprintKey(key), &stored) && stored != fp {
		checksTotal.WithLabelValues("conflict").Inc()
		g.logger.Error().Str("key", key).Msg("Idempotency key reused with a different request")
		return out, &ConflictError{
			Key:                key,
			StoredFingerprint:  stored,
			RequestFingerprint: fp,
		}
	}

	checksTotal.WithLabelValues("miss").Inc()
	return out, nil
}

// Store records a response for replay. Only 2xx/3xx responses are
// stored: a client retrying a failed mutation must be allowed to
// succeed on the retry.
func (g *Guard) Store(ctx context.Context, key, fingerprint string, resp *Response) bool {
	if resp == nil || key == "" || fingerprint == "" {
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		g.logger.Debug().
			Str("key", key).
			Int("status", resp.StatusCode).
			Msg("Not storing non-success response")
		return false
	}

	stored := Response{
		StatusCode: resp.StatusCode,
		Headers:    filterStoredHeaders(resp.Headers),
		Body:       resp.Body,
		CachedAt:   time.Now(),
	}

	ok := g.store.Set(ctx, cachestore.CategoryIdempotency, recordKey(key, fingerprint), stored,
		g.cfg.TTL, true)
	if !ok {
		return false
	}

	// Fingerprint index for conflict detection on key reuse
	g.store.Set(ctx, cachestore.CategoryIdempotency, fingerprintKey(key), fingerprint,
		g.cfg.TTL, false)

	storesTotal.Inc()
	return true
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func recordKey(key, fingerprint string) string {
	return key + ":" + fingerprint
}

func fingerprintKey(key string) string {
	return "fp:" + key
}

// filterStoredHeaders drops transport-specific headers that must not be
// replayed onto a new connection.
func filterStoredHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, name := range []string{
		"Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade",
		"Te", "Trailer", "Proxy-Authenticate", "Proxy-Authorization",
		"Content-Length", "Date", HeaderReplayed,
	} {
		out.Del(name)
	}
	return out
}
