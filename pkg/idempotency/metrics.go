package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// checksTotal tracks idempotency checks by outcome
	// (miss, replay, conflict).
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachegate_idempotency_checks_total",
		Help: "Total number of idempotency checks by outcome",
	}, []string{"outcome"})

	// storesTotal tracks responses stored for replay.
	storesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachegate_idempotency_stores_total",
		Help: "Total number of responses stored for replay",
	})
)
