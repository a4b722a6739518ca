package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace prefixes every collector owned by the server.
const metricsNamespace = "docai"

// labelHandler partitions HTTP metrics by logical endpoint name rather than
// the raw URL path, which carries conversation IDs.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New so tests can inject a fresh
// prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// generateRequestsTotal counts completed chat turns by mode
	// ("sync" or "stream") and outcome ("ok", "timeout" or "error").
	generateRequestsTotal *prometheus.CounterVec

	// generateDurationSeconds records chat turn latency by mode.
	generateDurationSeconds *prometheus.HistogramVec

	// activeStreams is the number of /generate/stream responses still open.
	activeStreams prometheus.Gauge

	// retrievalTotal counts document-grounded turns by context source and
	// retrieval outcome.
	retrievalTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks handled by /upload, by status.
	ingestChunksTotal *prometheus.CounterVec

	// uploadsTotal counts /upload requests by outcome.
	uploadsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all instrumented HTTP requests.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all instrumented requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		generateRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "generate",
			Name:      "requests_total",
			Help:      "Total number of chat turns completed, partitioned by mode and outcome.",
		}, []string{"mode", "outcome"}),

		generateDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of chat turns from receipt to completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"mode"}),

		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "generate",
			Name:      "active_streams",
			Help:      "Number of /generate/stream SSE responses currently open.",
		}),

		retrievalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "retrieval",
			Name:      "total",
			Help:      "Document-grounded turns, partitioned by context source and retrieval outcome.",
		}, []string{"source", "outcome"}),

		ingestChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks processed by uploads, partitioned by status (indexed or skipped).",
		}, []string{"status"}),

		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Upload requests, partitioned by outcome.",
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
