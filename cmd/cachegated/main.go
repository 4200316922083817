package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/cachegate/cachegate/pkg/cachestore"
	"github.com/cachegate/cachegate/pkg/conditional"
	"github.com/cachegate/cachegate/pkg/config"
	"github.com/cachegate/cachegate/pkg/httpmw"
	"github.com/cachegate/cachegate/pkg/idempotency"
	"github.com/cachegate/cachegate/pkg/logging"
	"github.com/cachegate/cachegate/pkg/ratelimit"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("redis_url", cfg.RedisURL).
			Msg("Redis unreachable at startup, serving in degraded mode")
	} else {
		logger.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")
	}

	store := cachestore.New(redisClient, cfg.Cache)
	limiter := ratelimit.New(store, cfg.RateLimit)
	condCache := conditional.New(store, cfg.Conditional)
	guard := idempotency.New(store, cfg.Idempotency)

	widgets := newWidgetServer(condCache)

	api := httpmw.Idempotency(guard)(
		httpmw.RateLimit(limiter, apiKey, nil)(
			httpmw.ConditionalGet(condCache, widgetEntityType)(widgets)))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/widgets", instrument(api))
	mux.Handle("/widgets/", instrument(api))

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("Starting cachegated")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// apiKey derives the rate-limit identity. A request without an API key
// is limited by remote address on the anonymous tier.
func apiKey(r *http.Request) (string, string) {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return r.RemoteAddr, ratelimit.DefaultTierName
	}
	tier := r.Header.Get("X-API-Tier")
	if tier == "" {
		tier = "standard"
	}
	return key, tier
}

// widgetEntityType marks collection reads for conditional handling.
// Entity paths are excluded: the collection ETag is keyed by entity
// type and query only, so sharing it across paths would conflate them.
func widgetEntityType(r *http.Request) string {
	if r.URL.Path == "/widgets" {
		return "widgets"
	}
	return ""
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "Redis unavailable: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
