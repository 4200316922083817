package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by category.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachegate_store_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"category"},
	)

	// cacheMisses tracks cache misses by category.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachegate_store_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"category"},
	)

	// cacheErrors tracks backend operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachegate_store_errors_total",
			Help: "Total number of backend operation errors",
		},
		[]string{"operation"},
	)

	// cacheBytes tracks payload bytes moved, by direction (read/written).
	cacheBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachegate_store_bytes_total",
			Help: "Total payload bytes read from and written to the backend",
		},
		[]string{"direction"},
	)

	// compressOps tracks compression attempts by outcome
	// (compressed, skipped).
	compressOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cachegate_store_compress_ops_total",
			Help: "Total number of compression attempts by outcome",
		},
		[]string{"outcome"},
	)

	// degradedOps tracks operations served in fail-open degraded mode.
	degradedOps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cachegate_store_degraded_ops_total",
			Help: "Total number of operations served while the backend was unreachable",
		},
	)
)
