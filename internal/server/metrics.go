package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery results recorded by the sweeper.
const (
	resultSuccess = "success"
	resultFailed  = "failed"
	resultGone    = "gone"
	resultSkipped = "skipped"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "push_timer",
		Name:      "deliveries_total",
		Help:      "Push deliveries attempted by the sweeper, by result.",
	}, []string{"result"})

	mirrorFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "push_timer",
		Name:      "mirror_failures_total",
		Help:      "Fired timers whose mirror notification failed.",
	})

	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "push_timer",
		Name:      "sweeps_total",
		Help:      "Completed expiry sweeps, by outcome.",
	}, []string{"outcome"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "push_timer",
		Name:      "sweep_duration_seconds",
		Help:      "Time taken by a single expiry sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	prunedTimersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "push_timer",
		Name:      "pruned_timers_total",
		Help:      "Notified timers removed by the retention pruner.",
	})
)
