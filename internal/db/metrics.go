package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "cardanoindexor_db_"

// Pass level metrics.
var (
	maintenanceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: metricsPrefix + "maintenance_runs_total",
		Help: "Maintenance passes requested, including cancelled ones",
	})

	maintenanceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "maintenance_outcomes_total",
		Help: "Completed maintenance passes by outcome",
	}, []string{"status"})

	maintenanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    metricsPrefix + "maintenance_duration_seconds",
		Help:    "Duration of a maintenance pass, lock wait excluded",
		Buckets: prometheus.DefBuckets,
	})

	maintenanceLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    metricsPrefix + "maintenance_lock_wait_seconds",
		Help:    "Time a maintenance pass waited for the block in flight",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	maintenanceLastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: metricsPrefix + "maintenance_last_run_timestamp",
		Help: "Unix time the last maintenance pass finished",
	})

	maintenanceSpaceReclaimed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: metricsPrefix + "maintenance_space_reclaimed_bytes",
		Help: "Bytes reclaimed by the last maintenance pass",
	})
)

// Step level metrics, labelled by step name.
var (
	maintenanceSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "maintenance_steps_total",
		Help: "Maintenance steps by step and status (success, skipped, error)",
	}, []string{"step", "status"})

	maintenanceStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricsPrefix + "maintenance_step_duration_seconds",
		Help:    "Duration of a single maintenance step",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
)

var dbSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: metricsPrefix + "size_bytes",
	Help: "Database size in bytes, WAL and shared memory files included",
}, []string{"type"})

func MaintenanceRunsInc() {
	maintenanceRuns.Inc()
}

func MaintenanceDurationLog(d time.Duration) {
	maintenanceDuration.Observe(d.Seconds())
}

func MaintenanceLockWaitLog(d time.Duration) {
	maintenanceLockWait.Observe(d.Seconds())
}

func MaintenanceLastRunLog() {
	maintenanceLastRun.SetToCurrentTime()
}

func MaintenanceErrorInc() {
	maintenanceOutcomes.WithLabelValues("error").Inc()
}

func MaintenanceSuccessInc() {
	maintenanceOutcomes.WithLabelValues("success").Inc()
}

func MaintenanceSpaceReclaimedLog(reclaimed uint64) {
	maintenanceSpaceReclaimed.Set(float64(reclaimed))
}

// MaintenanceStepLog records one step of a pass. Skipped steps are counted
// but their duration is not observed.
func MaintenanceStepLog(step, status string, d time.Duration) {
	maintenanceSteps.WithLabelValues(step, status).Inc()
	if status != "skipped" {
		maintenanceStepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

func DBSizeLog(size int64) {
	dbSize.WithLabelValues("total").Set(float64(size))
}
