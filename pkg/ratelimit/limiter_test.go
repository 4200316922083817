package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cachegate/cachegate/pkg/cachestore"
)

// base is aligned to a minute-window boundary so tests never straddle a
// window rollover unless they mean to.
var base = time.Unix(1_700_000_040, 0)

func setupLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := cachestore.New(client, cachestore.DefaultConfig())

	l := New(store, cfg)
	now := base
	l.now = func() time.Time { return now }
	return l, &now
}

func testTiers() map[string]TierConfig {
	tiers := DefaultTiers()
	tiers["test"] = TierConfig{
		Name:              "test",
		RequestsPerMinute: 5,
		RequestsPerHour:   100,
		BurstSize:         3,
	}
	return tiers
}

func TestCheck_Monotonicity(t *testing.T) {
	l, _ := setupLimiter(t, Config{Tiers: testTiers()})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := l.Check(ctx, "client-1", "test", "default", WindowMinute)
		if err != nil {
			t.Fatalf("Check %d failed: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d within limit should be allowed", i+1)
		}
	}

	res, err := l.Check(ctx, "client-1", "test", "default", WindowMinute)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Allowed {
		t.Error("request beyond limit should be rejected")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 60*time.Second {
		t.Errorf("RetryAfter = %v, want in (0, 60s]", res.RetryAfter)
	}
}

func TestCheck_ContinuousRefill(t *testing.T) {
	l, now := setupLimiter(t, Config{Tiers: testTiers()})
	ctx := context.Background()

	// Drain the bucket at the window start
	for i := 0; i < 5; i++ {
		if res, _ := l.Check(ctx, "c", "test", "default", WindowMinute); !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	// 36 seconds into the same window, 36 * (5/60) = 3 tokens refilled.
	// A briefly bursting client is not locked out for the whole window.
	*now = base.Add(36 * time.Second)
	for i := 0; i < 3; i++ {
		res, _ := l.Check(ctx, "c", "test", "default", WindowMinute)
		if !res.Allowed {
			t.Fatalf("refilled request %d should be allowed", i+1)
		}
	}
	if res, _ := l.Check(ctx, "c", "test", "default", WindowMinute); res.Allowed {
		t.Error("request beyond the refilled budget should be rejected")
	}
}

func TestCheck_FullWindowConvergence(t *testing.T) {
	l, now := setupLimiter(t, Config{Tiers: testTiers()})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Check(ctx, "c", "test", "default", WindowMinute)
	}

	// A full idle window restores the whole budget
	*now = base.Add(61 * time.Second)
	res, err := l.Check(ctx, "c", "test", "default", WindowMinute)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.Allowed {
		t.Fatal("request after a full idle window should be allowed")
	}
	if res.Remaining != 4 {
		t.Errorf("Remaining = %f, want 4", res.Remaining)
	}
}

func TestCheck_BurstIndependence(t *testing.T) {
	tiers := testTiers()
	tiers["test"] = TierConfig{
		Name:              "test",
		RequestsPerMinute: 100,
		RequestsPerHour:   1000,
		BurstSize:         3,
	}
	l, _ := setupLimiter(t, Config{Tiers: tiers})
	ctx := context.Background()

	// The window budget is nowhere near exhausted, but the burst budget is
	for i := 0; i < 3; i++ {
		res, _ := l.Check(ctx, "c", "test", "default", WindowMinute)
		if !res.Allowed || res.IsBurst {
			t.Fatalf("request %d = {allowed:%v burst:%v}, want allowed without burst flag",
				i+1, res.Allowed, res.IsBurst)
		}
	}

	res, _ := l.Check(ctx, "c", "test", "default", WindowMinute)
	if !res.Allowed {
		t.Error("burst overflow should still be admitted")
	}
	if !res.IsBurst {
		t.Error("burst overflow should carry the burst flag")
	}
}

func TestCheck_EndpointClassMultiplier(t *testing.T) {
	l, _ := setupLimiter(t, Config{Tiers: testTiers()})
	ctx := context.Background()

	res, err := l.Check(ctx, "c", "test", "admin", WindowMinute)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Limit != 10 {
		t.Errorf("admin-class limit = %f, want 10 (2.0 multiplier)", res.Limit)
	}

	res, _ = l.Check(ctx, "c2", "test", "upload", WindowMinute)
	if res.Limit != 1 {
		t.Errorf("upload-class limit = %f, want 1 (0.2 multiplier)", res.Limit)
	}
}

func TestCheck_UnknownTierFallsBack(t *testing.T) {
	l, _ := setupLimiter(t, Config{})
	ctx := context.Background()

	res, err := l.Check(ctx, "c", "no-such-tier", "default", WindowMinute)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if res.Tier != DefaultTierName {
		t.Errorf("Tier = %q, want %q", res.Tier, DefaultTierName)
	}
}

func TestCheck_UnknownWindow(t *testing.T) {
	l, _ := setupLimiter(t, Config{})

	_, err := l.Check(context.Background(), "c", "standard", "default", "fortnight")
	if !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("err = %v, want ErrUnknownWindow", err)
	}
}

func TestCheck_FailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	store := cachestore.New(client, cachestore.DefaultConfig())
	l := New(store, Config{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := l.Check(ctx, "c", "anonymous", "default", WindowMinute)
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !res.Allowed {
			t.Fatal("fail-open check should always allow")
		}
		if !res.FallbackMode {
			t.Error("fail-open result should carry the fallback marker")
		}
	}
}

func TestCheck_StandardTierScenario(t *testing.T) {
	l, now := setupLimiter(t, Config{})
	ctx := context.Background()

	// 200 requests in a burst: all admitted
	for i := 0; i < 200; i++ {
		res, err := l.Check(ctx, "heavy", "standard", "default", WindowMinute)
		if err != nil {
			t.Fatalf("Check %d failed: %v", i+1, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d of 200 should be allowed", i+1)
		}
	}

	// The 201st strictly exceeds the limit
	res, _ := l.Check(ctx, "heavy", "standard", "default", WindowMinute)
	if res.Allowed {
		t.Error("201st request should be rejected")
	}
	if res.RetryAfter > 60*time.Second {
		t.Errorf("RetryAfter = %v, want <= 60s", res.RetryAfter)
	}

	// A minute later the budget has fully recovered
	*now = base.Add(61 * time.Second)
	res, _ = l.Check(ctx, "heavy", "standard", "default", WindowMinute)
	if !res.Allowed {
		t.Fatal("request after a full window should be allowed")
	}
	if res.Remaining < 198 || res.Remaining > 199 {
		t.Errorf("Remaining = %f, want about 199", res.Remaining)
	}
}
