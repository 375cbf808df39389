package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Block metrics
	LastIndexedBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_last_indexed_block",
			Help: "Height of the last block committed to the index",
		},
	)

	LastIndexedSlot = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_last_indexed_slot",
			Help: "Slot of the last block committed to the index",
		},
	)

	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardanoindexor_blocks_processed_total",
			Help: "Total number of blocks processed by outcome",
		},
		[]string{"outcome"},
	)

	TransactionsIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardanoindexor_transactions_indexed_total",
			Help: "Total number of transactions indexed",
		},
	)

	BlockProcessingTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardanoindexor_block_processing_duration_seconds",
			Help:    "Time taken to index one block, commit included",
			Buckets: prometheus.DefBuckets,
		},
	)

	BlockRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardanoindexor_block_retries_total",
			Help: "Total number of blocks re-run after a transient database error",
		},
	)

	IndexingRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_indexing_rate_blocks_per_second",
			Help: "Current indexing rate in blocks per second",
		},
	)

	// Task metrics
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardanoindexor_task_duration_seconds",
			Help:    "Duration of task execution per block",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"task"},
	)

	TasksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardanoindexor_tasks_skipped_total",
			Help: "Total number of task runs skipped because the block did not apply",
		},
		[]string{"task"},
	)

	// Entity resolution metrics
	EntitiesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardanoindexor_entities_resolved_total",
			Help: "Total number of entities resolved by kind and source",
		},
		[]string{"kind", "source"},
	)

	// DEX metrics
	DexEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardanoindexor_dex_events_total",
			Help: "Total number of DEX events indexed",
		},
		[]string{"protocol", "event"},
	)

	DexParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardanoindexor_dex_parse_errors_total",
			Help: "Total number of transactions skipped because a datum could not be parsed",
		},
		[]string{"protocol"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardanoindexor_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardanoindexor_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

// Outcomes of a processed block.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// Sources of a resolved entity.
const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceInserted = "inserted"
)

func BlockProcessingTimeLog(duration time.Duration) {
	BlockProcessingTime.Observe(duration.Seconds())
}

func LastIndexedBlockSet(height, slot uint64) {
	LastIndexedBlock.Set(float64(height))
	LastIndexedSlot.Set(float64(slot))
}

func BlocksProcessedInc(outcome string) {
	BlocksProcessed.WithLabelValues(outcome).Inc()
}

func TransactionsIndexedAdd(count int) {
	TransactionsIndexed.Add(float64(count))
}

func BlockRetriesInc() {
	BlockRetries.Inc()
}

func IndexingRateLog(rate float64) {
	IndexingRate.Set(rate)
}

func TaskDurationLog(task string, duration time.Duration) {
	TaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

func TaskSkippedInc(task string) {
	TasksSkipped.WithLabelValues(task).Inc()
}

func EntitiesResolvedAdd(kind, source string, count int) {
	if count == 0 {
		return
	}
	EntitiesResolved.WithLabelValues(kind, source).Add(float64(count))
}

func DexEventsAdd(protocol, event string, count int) {
	if count == 0 {
		return
	}
	DexEvents.WithLabelValues(protocol, event).Add(float64(count))
}

func DexParseErrorsInc(protocol string) {
	DexParseErrors.WithLabelValues(protocol).Inc()
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
