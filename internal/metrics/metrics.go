// Package metrics defines the Prometheus instrumentation for the shard
// engine, following the pack's promauto-registration convention: metrics
// are package-level variables registered once at import time, with no
// manual registry wiring at call sites.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeadlockRetries counts writer-level retries triggered by a deadlock
	// signal from the executor, labeled by whether the retry budget was
	// eventually exhausted.
	DeadlockRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flockdb_deadlock_retries_total",
			Help: "Number of writer transaction retries triggered by a deadlock signal",
		},
		[]string{"exhausted"},
	)

	// PositionCollisionRetries counts writer retries triggered by a
	// uniqueness violation, either in Write's outer loop (insert or
	// update) or inside update_edge's own position perturbation.
	PositionCollisionRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flockdb_position_collision_retries_total",
			Help: "Number of retries after a position uniqueness violation on insert or update",
		},
	)

	// BatchFallbacks counts bursts whose multi-row INSERT failed and fell
	// back to the per-row write_edge path (spec.md §4.3 step 4).
	BatchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flockdb_batch_fallback_total",
			Help: "Number of bulk-copy bursts that fell back to per-row writes",
		},
	)

	// BurstDuration times one write_burst attempt end to end, labeled by
	// whether it succeeded as a single batch insert or required fallback.
	BurstDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flockdb_burst_duration_seconds",
			Help:    "Duration of one bulk-copy burst",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// QueryClassDuration times executor calls by query class.
	QueryClassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flockdb_query_duration_seconds",
			Help:    "Duration of executor calls by query class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class"},
	)
)

// ObserveQueryClass starts a timer for one executor call in the given
// class; the returned func records the observation on return.
func ObserveQueryClass(class string) func() {
	start := time.Now()
	return func() {
		QueryClassDuration.WithLabelValues(class).Observe(time.Since(start).Seconds())
	}
}

// ObserveBurst starts a timer for one write_burst attempt; the returned
// func records the observation labeled by outcome ("batch" or "fallback").
func ObserveBurst() func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		BurstDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}
