// Package metrics holds the Prometheus collectors for the consent pipeline
// and the notification batcher. They register on the default registry and
// are served by the ops HTTP server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsRecorded counts ledger appends.
	// Labels: kind (pass, like, super_interest)
	SignalsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muzz",
		Subsystem: "consent",
		Name:      "signals_recorded_total",
		Help:      "Total interest signals appended to the ledger",
	}, []string{"kind"})

	// QuotaRejections counts positive signals refused by the daily ceiling.
	// Labels: tier
	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muzz",
		Subsystem: "consent",
		Name:      "quota_rejections_total",
		Help:      "Total positive signals rejected by the tier quota",
	}, []string{"tier"})

	// MatchesMaterialized counts materialize calls.
	// Labels: result (created, duplicate)
	MatchesMaterialized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muzz",
		Subsystem: "consent",
		Name:      "matches_materialized_total",
		Help:      "Total match materializations by result",
	}, []string{"result"})

	// IntroductionTransitions counts introduction request state changes.
	// Labels: status (pending, approved, rejected), result (created, duplicate)
	IntroductionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muzz",
		Subsystem: "consent",
		Name:      "introduction_transitions_total",
		Help:      "Total introduction request transitions",
	}, []string{"status", "result"})

	// BatchGroups counts notification groups handled by the batcher.
	// Labels: type, result (sent, skipped, failed, dead_lettered)
	BatchGroups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muzz",
		Subsystem: "notify",
		Name:      "batch_groups_total",
		Help:      "Total notification groups handled per batcher run",
	}, []string{"type", "result"})

	// BatchEventsFlushed counts events marked sent.
	// Labels: type
	BatchEventsFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "muzz",
		Subsystem: "notify",
		Name:      "batch_events_flushed_total",
		Help:      "Total pending notification events marked sent",
	}, []string{"type"})

	// BatchRunDuration measures one batcher run across all types.
	BatchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "muzz",
		Subsystem: "notify",
		Name:      "batch_run_duration_seconds",
		Help:      "Notification batcher run duration in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// DeliveryLatency measures single sends through the delivery channel.
	// Labels: result (ok, error)
	DeliveryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "muzz",
		Subsystem: "notify",
		Name:      "delivery_latency_seconds",
		Help:      "Latency of a single digest send",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"result"})
)
