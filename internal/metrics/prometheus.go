package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashfeed_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error|panic
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flashfeed_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker"},
	)

	// Ingestion metrics
	FlashesStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flashfeed_flashes_stored_total",
			Help: "Total number of flashes stored by ingestion",
		},
	)

	IngestCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashfeed_ingest_cycles_total",
			Help: "Total number of ingestion cycles",
		},
		[]string{"status"}, // status: success|empty|abandoned
	)

	// Enrichment metrics
	EnrichmentAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashfeed_enrichment_attempts_total",
			Help: "Total number of enrichment attempts",
		},
		[]string{"status"}, // status: success|retryable|terminal|skipped
	)

	EnrichmentQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flashfeed_enrichment_queue_depth",
			Help: "Number of enrichment tasks waiting in the queue",
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flashfeed_query_duration_seconds",
			Help:    "Latest-flashes query duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
	)
)

// Register registers all metrics with the default registry
func Register() {
	prometheus.MustRegister(
		WorkerExecutions,
		WorkerDuration,
		FlashesStored,
		IngestCycles,
		EnrichmentAttempts,
		EnrichmentQueueDepth,
		QueryDuration,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
