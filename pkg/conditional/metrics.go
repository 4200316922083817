package conditional

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// etagLookups tracks ETag lookups by kind (collection, entity,
	// relations) and outcome (hit, miss).
	etagLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachegate_etag_lookups_total",
		Help: "Total number of ETag cache lookups by kind and outcome",
	}, []string{"kind", "outcome"})

	// invalidationsTotal tracks invalidation sweeps by scope.
	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachegate_etag_invalidations_total",
		Help: "Total number of invalidation sweeps by scope",
	}, []string{"scope"})

	// invalidatedKeys tracks keys removed by invalidation sweeps.
	invalidatedKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachegate_etag_invalidated_keys_total",
		Help: "Total number of keys removed by invalidation sweeps",
	})
)
