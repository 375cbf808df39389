package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
)

// Maintenance steps, in the order they run.
const (
	StepWALCheckpoint = "wal_checkpoint"
	StepVacuum        = "vacuum"
	StepOptimize      = "optimize"
)

// Maintenance keeps the index database compact while blocks are being written.
// The pipeline holds an operation lock for the lifetime of every block transaction,
// so a maintenance pass only runs between blocks.
type Maintenance interface {
	// Start runs the startup pass if configured and schedules periodic passes.
	Start(ctx context.Context) error
	// Stop cancels periodic passes and waits for a running one to finish.
	Stop() error
	// AcquireOperationLock is held by a block for its whole transaction.
	// The returned function releases it.
	AcquireOperationLock() func()
	// RunMaintenance runs one pass once no block is in flight.
	RunMaintenance(ctx context.Context) error
	// LastReport returns the report of the latest pass, nil before the first one.
	LastReport() *MaintenanceReport
}

// StepResult is the outcome of one maintenance step.
type StepResult struct {
	Name     string
	Skipped  bool
	Duration time.Duration
	Err      error
}

// MaintenanceReport describes a maintenance pass.
type MaintenanceReport struct {
	Started time.Time
	// LockWait is how long the pass waited for the block in flight
	LockWait   time.Duration
	Duration   time.Duration
	SizeBefore int64
	SizeAfter  int64
	Steps      []StepResult
	// Runs counts the passes since the coordinator was created
	Runs uint64
}

// Err returns the first step error of the pass.
func (r *MaintenanceReport) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Step returns the result of the named step.
func (r *MaintenanceReport) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// NoOpMaintenance is used when maintenance is not configured.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                          { return nil }
func (m *NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (m *NoOpMaintenance) AcquireOperationLock() func()         { return func() {} }
func (m *NoOpMaintenance) LastReport() *MaintenanceReport       { return nil }

// step is one maintenance action. It reports skipped when there was nothing to do.
type step struct {
	name string
	run  func() (skipped bool, err error)
}

// MaintenanceCoordinator serializes maintenance passes with block transactions.
// Blocks take the read side of opLock, a pass takes the write side.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger
	steps  []step

	opLock sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	reportMu sync.Mutex
	report   *MaintenanceReport
	runs     uint64
}

// NewMaintenanceCoordinator returns a no-op when cfg is nil.
func NewMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg *config.MaintenanceConfig,
	log *logger.Logger,
) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return newMaintenanceCoordinator(dbPath, db, *cfg, log)
}

func newMaintenanceCoordinator(
	dbPath string,
	db *sql.DB,
	cfg config.MaintenanceConfig,
	log *logger.Logger,
) *MaintenanceCoordinator {
	m := &MaintenanceCoordinator{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
	m.steps = []step{
		{name: StepWALCheckpoint, run: m.walCheckpoint},
		{name: StepVacuum, run: m.vacuum},
		{name: StepOptimize, run: m.optimize},
	}
	return m
}

// Start runs the startup pass if configured and schedules periodic passes.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("database maintenance disabled")
		return nil
	}

	ctx, m.cancel = context.WithCancel(ctx)

	if m.config.VacuumOnStartup {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnw("startup maintenance failed", "error", err)
		}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.CheckInterval.Duration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.RunMaintenance(ctx); err != nil {
					m.log.Warnw("periodic maintenance failed", "error", err)
				}
			}
		}
	}()

	m.log.Infow("database maintenance scheduled",
		"interval", m.config.CheckInterval.Duration,
		"checkpoint_mode", m.config.WALCheckpointMode)
	return nil
}

// Stop cancels periodic passes and waits for a running one to finish.
func (m *MaintenanceCoordinator) Stop() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	m.wg.Wait()
	return nil
}

// RunMaintenance waits for the block in flight, then runs every step with
// blocks held off. A failing step does not stop the ones after it.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	MaintenanceRunsInc()

	waitStart := time.Now()
	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	report := &MaintenanceReport{
		Started:  time.Now().UTC(),
		LockWait: time.Since(waitStart),
	}
	MaintenanceLockWaitLog(report.LockWait)

	var err error
	if report.SizeBefore, err = DBTotalSize(m.dbPath); err != nil {
		m.log.Warnw("failed to read database size", "error", err)
	}

	for _, s := range m.steps {
		start := time.Now()
		skipped, err := s.run()
		res := StepResult{Name: s.name, Skipped: skipped, Duration: time.Since(start), Err: err}
		report.Steps = append(report.Steps, res)

		MaintenanceStepLog(res.Name, stepStatus(res), res.Duration)
		if err != nil {
			m.log.Warnw("maintenance step failed", "step", s.name, "error", err)
		}
	}

	if report.SizeAfter, err = DBTotalSize(m.dbPath); err != nil {
		m.log.Warnw("failed to read database size", "error", err)
	}
	report.Duration = time.Since(report.Started)

	m.reportMu.Lock()
	m.runs++
	report.Runs = m.runs
	m.report = report
	m.reportMu.Unlock()

	MaintenanceDurationLog(report.Duration)
	MaintenanceLastRunLog()
	DBSizeLog(report.SizeAfter)

	if err := report.Err(); err != nil {
		MaintenanceErrorInc()
		return err
	}
	MaintenanceSuccessInc()

	if report.SizeBefore > report.SizeAfter {
		reclaimed := uint64(report.SizeBefore - report.SizeAfter)
		MaintenanceSpaceReclaimedLog(reclaimed)
		m.log.Infow("maintenance done", "duration", report.Duration, "reclaimed_mb", common.BytesToMB(reclaimed))
	} else {
		m.log.Infow("maintenance done", "duration", report.Duration)
	}
	return nil
}

func stepStatus(r StepResult) string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Skipped:
		return "skipped"
	default:
		return "success"
	}
}

// walCheckpoint folds the WAL back into the database file. Busy pages are left
// for the next pass.
func (m *MaintenanceCoordinator) walCheckpoint() (bool, error) {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return false, fmt.Errorf("failed to read journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return true, nil
	}

	var busy, logFrames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	if err := m.db.QueryRow(query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return false, fmt.Errorf("failed to checkpoint: %w", err)
	}
	if busy > 0 {
		m.log.Warnw("checkpoint incomplete", "mode", m.config.WALCheckpointMode, "log_frames", logFrames, "checkpointed", checkpointed)
	}
	return false, nil
}

// vacuum rebuilds the file only when it holds free pages. The index only
// appends rows, so most passes skip it.
func (m *MaintenanceCoordinator) vacuum() (bool, error) {
	var free int64
	if err := m.db.QueryRow("PRAGMA freelist_count").Scan(&free); err != nil {
		return false, fmt.Errorf("failed to read freelist: %w", err)
	}
	if free == 0 {
		return true, nil
	}
	return false, Vacuum(m.db)
}

// optimize refreshes the planner statistics the resolver's payload and hash lookups rely on.
func (m *MaintenanceCoordinator) optimize() (bool, error) {
	if _, err := m.db.Exec("PRAGMA optimize"); err != nil {
		return false, fmt.Errorf("failed to optimize: %w", err)
	}
	return false, nil
}

// AcquireOperationLock is held by a block for its whole transaction.
// Blocks do not exclude each other, only maintenance passes.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// LastReport returns the report of the latest pass, nil before the first one.
func (m *MaintenanceCoordinator) LastReport() *MaintenanceReport {
	m.reportMu.Lock()
	defer m.reportMu.Unlock()
	return m.report
}
