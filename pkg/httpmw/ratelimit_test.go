package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cachegate/cachegate/internal/testutil"
	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/ratelimit"
)

func setupRateLimit(t *testing.T) (http.Handler, *testutil.Upstream) {
	t.Helper()

	_, client := testutil.NewRedis(t)
	store := cachestore.New(client, cachestore.DefaultConfig())

	tiers := ratelimit.DefaultTiers()
	tiers["tiny"] = ratelimit.TierConfig{
		Name:              "tiny",
		RequestsPerMinute: 3,
		RequestsPerHour:   100,
		BurstSize:         10,
	}
	limiter := ratelimit.New(store, ratelimit.Config{Tiers: tiers})

	keyFn := func(r *http.Request) (string, string) {
		return r.Header.Get("X-API-Key"), "tiny"
	}

	up := testutil.NewUpstream("ok")
	return RateLimit(limiter, keyFn, nil)(up), up
}

func limitedGet(key string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	r.Header.Set("X-API-Key", key)
	return r
}

func TestRateLimit_HeadersAndDeny(t *testing.T) {
	h, up := setupRateLimit(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, limitedGet("alice"))
		if last.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, last.Code)
		}
	}
	if got := last.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Errorf("X-RateLimit-Limit = %q, want 3", got)
	}
	if got := last.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if last.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset should be set")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, limitedGet("alice"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set on 429")
	}
	if up.Calls() != 3 {
		t.Errorf("upstream calls = %d, want 3", up.Calls())
	}
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	h, _ := setupRateLimit(t)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, limitedGet("alice"))
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, limitedGet("bob"))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for a fresh client", w.Code)
	}
}

func TestRateLimit_FailOpen(t *testing.T) {
	client := testutil.NewDeadRedis(t)
	store := cachestore.New(client, cachestore.DefaultConfig())
	limiter := ratelimit.New(store, ratelimit.Config{})

	up := testutil.NewUpstream("ok")
	h := RateLimit(limiter, nil, nil)(up)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/widgets", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 with backend down", i+1, w.Code)
		}
	}
}
