package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extraction
	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rows_extracted_total",
			Help: "Rows returned by source queries, per change origin",
		},
		[]string{"origin"},
	)

	// Loading
	DocumentsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_documents_loaded_total",
			Help: "Documents upserted into the sink",
		},
		[]string{"sink", "index"},
	)

	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_load_duration_seconds",
			Help:    "Duration of bulk upserts including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink", "index"},
	)

	// Ticks
	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_tick_duration_seconds",
			Help:    "Duration of one extract-transform-load pass of a stream",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stream"},
	)

	TickErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_tick_errors_total",
			Help: "Failed extract-transform-load passes",
		},
		[]string{"stream"},
	)

	// Watermark is the last persisted watermark per checkpoint key, in unix seconds.
	Watermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etl_watermark_timestamp_seconds",
			Help: "Last persisted watermark per checkpoint key",
		},
		[]string{"key"},
	)

	// Connection lifecycle
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_source_reconnects_total",
			Help: "Times the scheduler went back to the disconnected state",
		},
	)

	SourceConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "etl_source_connected",
			Help: "1 while the scheduler holds a live source connection",
		},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_retry_attempts_total",
			Help: "Retries performed by a backoff policy",
		},
		[]string{"operation"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etl_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
