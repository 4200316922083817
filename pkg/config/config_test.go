package config

import (
	"testing"
	"time"

	"github.com/cachegate/cachegate/pkg/cachestore"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.RedisURL != "localhost:6379" {
		t.Errorf("RedisURL = %q, want localhost:6379", cfg.RedisURL)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.Cache.CompressionEnabled {
		t.Error("compression should default to enabled")
	}
	if cfg.Cache.CompressionThreshold != cachestore.DefaultCompressionThreshold {
		t.Errorf("CompressionThreshold = %d, want %d",
			cfg.Cache.CompressionThreshold, cachestore.DefaultCompressionThreshold)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("Idempotency TTL = %v, want 24h", cfg.Idempotency.TTL)
	}
	if cfg.RateLimit.Tiers != nil {
		t.Error("Tiers should be nil without an override, so the limiter uses its built-ins")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis.internal:6380")
	t.Setenv("CACHE_COMPRESSION_ENABLED", "false")
	t.Setenv("CACHE_COMPRESSION_THRESHOLD", "4096")
	t.Setenv("IDEMPOTENCY_TTL", "1h")
	t.Setenv("WATERMARK_TTL", "30s")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.RedisURL != "redis.internal:6380" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.Cache.CompressionEnabled {
		t.Error("compression should be disabled")
	}
	if cfg.Cache.CompressionThreshold != 4096 {
		t.Errorf("CompressionThreshold = %d, want 4096", cfg.Cache.CompressionThreshold)
	}
	if cfg.Idempotency.TTL != time.Hour {
		t.Errorf("Idempotency TTL = %v, want 1h", cfg.Idempotency.TTL)
	}
	if cfg.Conditional.WatermarkTTL != 30*time.Second {
		t.Errorf("WatermarkTTL = %v, want 30s", cfg.Conditional.WatermarkTTL)
	}
	if !cfg.LogPretty {
		t.Error("LogPretty should be true")
	}
}

func TestFromEnv_TierOverride(t *testing.T) {
	t.Setenv("RATE_LIMIT_TIERS", `{"partner":{"requests_per_minute":500,"requests_per_hour":10000,"burst_size":100}}`)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	partner, ok := cfg.RateLimit.Tiers["partner"]
	if !ok {
		t.Fatal("partner tier should be present")
	}
	if partner.Name != "partner" {
		t.Errorf("Name = %q, want partner (filled from the map key)", partner.Name)
	}
	if partner.RequestsPerMinute != 500 {
		t.Errorf("RequestsPerMinute = %v, want 500", partner.RequestsPerMinute)
	}
	if _, ok := cfg.RateLimit.Tiers["anonymous"]; !ok {
		t.Error("built-in tiers should survive an override")
	}
}

func TestFromEnv_MalformedValues(t *testing.T) {
	cases := map[string]string{
		"CACHE_COMPRESSION_THRESHOLD": "many",
		"CACHE_COMPRESSION_ENABLED":   "yep",
		"IDEMPOTENCY_TTL":             "tomorrow",
		"RATE_LIMIT_TIERS":            "{not json",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("FromEnv should reject %s=%q", key, value)
			}
		})
	}
}
