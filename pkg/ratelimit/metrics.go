package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// checksTotal tracks limit decisions by outcome
	// (allowed, rejected, fallback).
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cachegate_rate_limit_checks_total",
		Help: "Total number of rate limit checks by outcome",
	}, []string{"outcome", "tier"})

	// burstFlagsTotal tracks requests admitted with the burst flag set.
	burstFlagsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cachegate_rate_limit_burst_flags_total",
		Help: "Total number of admitted requests flagged as bursts",
	})
)
