package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsCoercedTotal counts raw records successfully coerced into feature vectors
	RecordsCoercedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_records_coerced_total",
			Help: "Total number of raw records coerced into feature vectors",
		},
	)

	// ParseErrorsTotal counts fields that failed numeric coercion
	ParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_parse_errors_total",
			Help: "Total number of fields that did not reduce to a number",
		},
		[]string{"column"},
	)

	// StageDurationSeconds measures the latency of each pipeline stage
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proximity_stage_duration_seconds",
			Help:    "Duration of pipeline stages (load, coerce, normalize, matrix, export)",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"stage"},
	)

	// DegenerateColumnsTotal counts columns found with zero range
	DegenerateColumnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_degenerate_columns_total",
			Help: "Total number of feature columns whose minimum equals their maximum",
		},
		[]string{"policy"},
	)

	// MatrixCellsComputedTotal counts distance cells actually computed (upper triangle)
	MatrixCellsComputedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_matrix_cells_computed_total",
			Help: "Total number of pairwise distances computed",
		},
	)

	// MatrixRecords tracks the record count of the most recently built matrix
	MatrixRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proximity_matrix_records",
			Help: "Number of records in the most recently built distance matrix",
		},
	)

	// PipelineRunsTotal counts pipeline executions by outcome
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"},
	)

	// RowsLoadedTotal counts rows read from tabular sources
	RowsLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_rows_loaded_total",
			Help: "Total number of rows read from tabular sources",
		},
		[]string{"format"},
	)

	// BasketsBuiltTotal counts item baskets produced from transaction rows
	BasketsBuiltTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_baskets_built_total",
			Help: "Total number of item baskets built from transaction rows",
		},
	)

	// FlightOperationsTotal counts Flight operations
	FlightOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_flight_operations_total",
			Help: "The total number of processed Arrow Flight operations",
		},
		[]string{"method", "status"},
	)

	// FlightDurationSeconds measures the latency of Flight operations
	FlightDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proximity_flight_duration_seconds",
			Help:    "Duration of Arrow Flight operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// FlightRowsSent counts matrix rows streamed to Flight clients
	FlightRowsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_flight_rows_sent_total",
			Help: "Total matrix rows streamed through DoGet",
		},
	)

	// RateLimitRequestsTotal counts rate limited requests
	RateLimitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_rate_limit_requests_total",
			Help: "Total number of requests handled by rate limiter",
		},
		[]string{"status"}, // "allowed", "throttled"
	)

	// MatrixCacheHitsTotal counts matrix lookups served from the cache
	MatrixCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_matrix_cache_hits_total",
			Help: "Total number of matrix requests served from the cache",
		},
		[]string{"dataset"},
	)

	// MatrixCacheMissesTotal counts matrix lookups that had to recompute
	MatrixCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_matrix_cache_misses_total",
			Help: "Total number of matrix requests not found in the cache",
		},
		[]string{"dataset"},
	)

	// MatrixCacheEvictionsTotal counts matrices evicted for capacity
	MatrixCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_matrix_cache_evictions_total",
			Help: "Total number of cached matrices evicted to respect capacity",
		},
	)

	// MatrixCacheEntries tracks the number of cached matrices
	MatrixCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "proximity_matrix_cache_entries",
			Help: "Number of matrices currently cached",
		},
	)

	// BreakerTransitionsTotal counts circuit breaker state changes
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_breaker_transitions_total",
			Help: "Total number of circuit breaker state changes",
		},
		[]string{"dataset", "to"},
	)

	// BreakerRejectionsTotal counts requests refused by an open breaker
	BreakerRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_breaker_rejections_total",
			Help: "Total number of matrix computations refused by an open circuit breaker",
		},
		[]string{"dataset"},
	)
)
