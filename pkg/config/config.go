// Package config collects the environment surface of the caching
// substrate in one place. Every knob has a default that works for
// local development against a Redis on localhost.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/conditional"
	"github.com/cachegate/cachegate/pkg/idempotency"
	"github.com/cachegate/cachegate/pkg/ratelimit"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	RedisURL string
	Port     string

	LogLevel  string
	LogPretty bool

	Cache       cachestore.Config
	Conditional conditional.Config
	Idempotency idempotency.Config
	RateLimit   ratelimit.Config
}

// FromEnv reads the environment and returns the resolved configuration.
// Malformed values are an error rather than a silent fallback, so a
// typo in a deployment manifest fails fast at startup.
func FromEnv() (Config, error) {
	cfg := Config{
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Cache:       cachestore.DefaultConfig(),
		Idempotency: idempotency.Config{},
	}

	var err error
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", false); err != nil {
		return Config{}, err
	}

	if cfg.Cache.CompressionEnabled, err = getEnvBool("CACHE_COMPRESSION_ENABLED", cfg.Cache.CompressionEnabled); err != nil {
		return Config{}, err
	}
	if cfg.Cache.CompressionThreshold, err = getEnvInt("CACHE_COMPRESSION_THRESHOLD", cfg.Cache.CompressionThreshold); err != nil {
		return Config{}, err
	}

	cond := conditional.DefaultConfig()
	if cond.WatermarkTTL, err = getEnvDuration("WATERMARK_TTL", cond.WatermarkTTL); err != nil {
		return Config{}, err
	}
	if cond.CollectionETagTTL, err = getEnvDuration("COLLECTION_ETAG_TTL", cond.CollectionETagTTL); err != nil {
		return Config{}, err
	}
	if cond.EntityETagTTL, err = getEnvDuration("ENTITY_ETAG_TTL", cond.EntityETagTTL); err != nil {
		return Config{}, err
	}
	cfg.Conditional = cond

	if cfg.Idempotency.TTL, err = getEnvDuration("IDEMPOTENCY_TTL", idempotency.DefaultTTL); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("RATE_LIMIT_TIERS"); raw != "" {
		tiers := ratelimit.DefaultTiers()
		var override map[string]ratelimit.TierConfig
		if err := json.Unmarshal([]byte(raw), &override); err != nil {
			return Config{}, fmt.Errorf("RATE_LIMIT_TIERS: %w", err)
		}
		for name, tier := range override {
			if tier.Name == "" {
				tier.Name = name
			}
			tiers[name] = tier
		}
		cfg.RateLimit.Tiers = tiers
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
