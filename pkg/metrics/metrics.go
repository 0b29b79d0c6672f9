// Package metrics exposes Prometheus metrics for the request pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics tracks request, retry, and chunk activity.
//
// Metrics:
//   - datomic_client_requests_total{op, outcome}: submissions by qualified op and result
//   - datomic_client_request_duration_seconds{op}: end-to-end request latency
//   - datomic_client_retry_attempts_total{op}: busy retries per op
//   - datomic_client_backoff_seconds: backoff delays waited before retries
//   - datomic_client_chunks_total{op}: chunks delivered by streaming ops
//
// The outcome label is "ok" or the anomaly category.
type PipelineMetrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	RetryAttemptsTotal     *prometheus.CounterVec
	BackoffSeconds         prometheus.Histogram
	ChunksTotal            *prometheus.CounterVec
}

var (
	pipelineOnce     sync.Once
	pipelineInstance *PipelineMetrics
)

// NewPipelineMetrics creates and registers the pipeline metrics.
// Uses singleton pattern to prevent duplicate registration.
func NewPipelineMetrics() *PipelineMetrics {
	pipelineOnce.Do(func() {
		pipelineInstance = &PipelineMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "datomic_client",
					Name:      "requests_total",
					Help:      "Total requests submitted, by op and outcome",
				},
				[]string{"op", "outcome"},
			),
			RequestDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "datomic_client",
					Name:      "request_duration_seconds",
					Help:      "Request latency from submission to classified result",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			RetryAttemptsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "datomic_client",
					Name:      "retry_attempts_total",
					Help:      "Busy responses retried, by op",
				},
				[]string{"op"},
			),
			BackoffSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "datomic_client",
					Name:      "backoff_seconds",
					Help:      "Delays waited between busy retries",
					Buckets:   []float64{0.05, 0.1, 0.2, 0.4, 0.8},
				},
			),
			ChunksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "datomic_client",
					Name:      "chunks_total",
					Help:      "Chunks delivered by streaming operations, by op",
				},
				[]string{"op"},
			),
		}
	})
	return pipelineInstance
}

// RecordRequest records one submission outcome and its latency.
func (m *PipelineMetrics) RecordRequest(op, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, outcome).Inc()
	m.RequestDurationSeconds.WithLabelValues(op).Observe(seconds)
}

// RecordRetry records one busy retry and the delay waited before it.
func (m *PipelineMetrics) RecordRetry(op string, backoffSeconds float64) {
	if m == nil {
		return
	}
	m.RetryAttemptsTotal.WithLabelValues(op).Inc()
	m.BackoffSeconds.Observe(backoffSeconds)
}

// RecordChunk records one delivered chunk.
func (m *PipelineMetrics) RecordChunk(op string) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(op).Inc()
}
