// Package metrics exposes aggregate per-agent counters for observability.
// The counters are read-only for clients via the /metrics endpoint and are
// not required for pipeline correctness.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agentInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchgen",
		Name:      "agent_invocations_total",
		Help:      "Number of invocations per pipeline agent.",
	}, []string{"agent"})

	agentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "batchgen",
		Name:      "agent_errors_total",
		Help:      "Number of failed invocations per pipeline agent.",
	}, []string{"agent"})

	agentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "batchgen",
		Name:      "agent_duration_seconds",
		Help:      "Invocation duration per pipeline agent.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"agent"})

	batchesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "batchgen",
		Name:      "batches_started_total",
		Help:      "Number of accepted bulk generation batches.",
	})

	streamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "batchgen",
		Name:      "stream_subscribers",
		Help:      "Currently connected progress stream subscribers.",
	})
)

// ObserveAgent records one agent invocation.
func ObserveAgent(agent string, start time.Time, err error) {
	agentInvocations.WithLabelValues(agent).Inc()
	agentDuration.WithLabelValues(agent).Observe(time.Since(start).Seconds())
	if err != nil {
		agentErrors.WithLabelValues(agent).Inc()
	}
}

// BatchStarted counts one accepted batch.
func BatchStarted() {
	batchesStarted.Inc()
}

// StreamSubscribed tracks one new progress stream connection.
func StreamSubscribed() {
	streamSubscribers.Inc()
}

// StreamUnsubscribed tracks one ended progress stream connection.
func StreamUnsubscribed() {
	streamSubscribers.Dec()
}
