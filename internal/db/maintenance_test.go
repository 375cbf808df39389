package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

// openIndexDB opens a WAL database in a temp dir with a utxo-like table.
func openIndexDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	cfg := config.DatabaseConfig{Path: dbPath, JournalMode: "WAL"}
	cfg.ApplyDefaults()

	sqlDB, err := NewSQLiteDBFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = sqlDB.Exec(`CREATE TABLE utxo (id INTEGER PRIMARY KEY, tx_hash BLOB NOT NULL, idx INTEGER NOT NULL)`)
	require.NoError(t, err)

	return sqlDB, dbPath
}

// freePages fills a scratch table and drops it, leaving pages on the freelist.
func freePages(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	_, err := sqlDB.Exec(`CREATE TABLE scratch (id INTEGER PRIMARY KEY, payload BLOB)`)
	require.NoError(t, err)

	tx, err := sqlDB.Begin()
	require.NoError(t, err)
	for i := range 2000 {
		_, err = tx.Exec(`INSERT INTO scratch (payload) VALUES (?)`, fmt.Appendf(nil, "%0512d", i))
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	_, err = sqlDB.Exec(`DROP TABLE scratch`)
	require.NoError(t, err)

	var free int64
	require.NoError(t, sqlDB.QueryRow(`PRAGMA freelist_count`).Scan(&free))
	require.Positive(t, free)
}

func newTestCoordinator(t *testing.T, sqlDB *sql.DB, dbPath string, mutate func(*config.MaintenanceConfig)) *MaintenanceCoordinator {
	t.Helper()

	cfg := config.MaintenanceConfig{Enabled: true}
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.ApplyDefaults()

	return newMaintenanceCoordinator(dbPath, sqlDB, cfg, logger.NewNopLogger())
}

func stepNames(r *MaintenanceReport) []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestNewMaintenanceCoordinator_NilConfig(t *testing.T) {
	t.Parallel()

	m := NewMaintenanceCoordinator("unused.db", nil, nil, logger.NewNopLogger())
	require.IsType(t, &NoOpMaintenance{}, m)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.RunMaintenance(context.Background()))
	require.Nil(t, m.LastReport())

	release := m.AcquireOperationLock()
	release()
	require.NoError(t, m.Stop())
}

func TestRunMaintenance_Steps(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		freePages  bool
		wantVacuum bool
	}{
		{name: "fresh database skips vacuum", freePages: false, wantVacuum: false},
		{name: "free pages trigger vacuum", freePages: true, wantVacuum: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sqlDB, dbPath := openIndexDB(t)
			if tc.freePages {
				freePages(t, sqlDB)
			}
			m := newTestCoordinator(t, sqlDB, dbPath, nil)

			require.NoError(t, m.RunMaintenance(context.Background()))

			report := m.LastReport()
			require.NotNil(t, report)
			require.NoError(t, report.Err())
			require.Equal(t, uint64(1), report.Runs)
			require.Equal(t, []string{StepWALCheckpoint, StepVacuum, StepOptimize}, stepNames(report))

			checkpoint, ok := report.Step(StepWALCheckpoint)
			require.True(t, ok)
			require.False(t, checkpoint.Skipped)

			vacuum, ok := report.Step(StepVacuum)
			require.True(t, ok)
			require.Equal(t, !tc.wantVacuum, vacuum.Skipped)

			optimize, ok := report.Step(StepOptimize)
			require.True(t, ok)
			require.False(t, optimize.Skipped)
			require.NoError(t, optimize.Err)

			var free int64
			require.NoError(t, sqlDB.QueryRow(`PRAGMA freelist_count`).Scan(&free))
			require.Zero(t, free)
		})
	}
}

func TestRunMaintenance_CheckpointSkippedOutsideWAL(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "rollback.db")
	cfg := config.DatabaseConfig{Path: dbPath, JournalMode: "DELETE"}
	cfg.ApplyDefaults()
	sqlDB, err := NewSQLiteDBFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	m := newTestCoordinator(t, sqlDB, dbPath, nil)
	require.NoError(t, m.RunMaintenance(context.Background()))

	checkpoint, ok := m.LastReport().Step(StepWALCheckpoint)
	require.True(t, ok)
	require.True(t, checkpoint.Skipped)
}

func TestRunMaintenance_CheckpointTruncatesWAL(t *testing.T) {
	t.Parallel()

	sqlDB, dbPath := openIndexDB(t)
	for i := range 200 {
		_, err := sqlDB.Exec(`INSERT INTO utxo (tx_hash, idx) VALUES (?, ?)`, []byte{byte(i)}, i)
		require.NoError(t, err)
	}

	info, err := os.Stat(dbPath + "-wal")
	require.NoError(t, err)
	require.Positive(t, info.Size())

	m := newTestCoordinator(t, sqlDB, dbPath, func(c *config.MaintenanceConfig) {
		c.WALCheckpointMode = "TRUNCATE"
	})
	skipped, err := m.walCheckpoint()
	require.NoError(t, err)
	require.False(t, skipped)

	info, err = os.Stat(dbPath + "-wal")
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

func TestRunMaintenance_WaitsForBlockInFlight(t *testing.T) {
	t.Parallel()

	const hold = 150 * time.Millisecond

	sqlDB, dbPath := openIndexDB(t)
	m := newTestCoordinator(t, sqlDB, dbPath, nil)

	release := m.AcquireOperationLock()
	blockDone := make(chan time.Time, 1)
	go func() {
		// the block writes its rows while holding the lock
		_, _ = sqlDB.Exec(`INSERT INTO utxo (tx_hash, idx) VALUES (?, 0)`, []byte{0xab})
		time.Sleep(hold)
		blockDone <- time.Now()
		release()
	}()

	require.NoError(t, m.RunMaintenance(context.Background()))
	passDone := time.Now()

	report := m.LastReport()
	require.GreaterOrEqual(t, report.LockWait, hold-10*time.Millisecond)
	released := <-blockDone
	require.True(t, released.Before(passDone))
	require.False(t, report.Started.Before(released))

	var rows int
	require.NoError(t, sqlDB.QueryRow(`SELECT COUNT(*) FROM utxo`).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestAcquireOperationLock_HeldOffDuringPass(t *testing.T) {
	t.Parallel()

	sqlDB, dbPath := openIndexDB(t)
	freePages(t, sqlDB)
	m := newTestCoordinator(t, sqlDB, dbPath, nil)

	// slow the pass down so the block arrives while it runs
	gate := make(chan struct{})
	m.steps = append([]step{{name: "gate", run: func() (bool, error) {
		close(gate)
		time.Sleep(100 * time.Millisecond)
		return false, nil
	}}}, m.steps...)

	passErr := make(chan error, 1)
	go func() { passErr <- m.RunMaintenance(context.Background()) }()

	<-gate
	start := time.Now()
	release := m.AcquireOperationLock()
	waited := time.Since(start)
	release()

	require.NoError(t, <-passErr)
	require.GreaterOrEqual(t, waited, 50*time.Millisecond)
}

func TestAcquireOperationLock_BlocksShareLock(t *testing.T) {
	t.Parallel()

	sqlDB, dbPath := openIndexDB(t)
	m := newTestCoordinator(t, sqlDB, dbPath, nil)

	first := m.AcquireOperationLock()
	acquired := make(chan struct{})
	go func() {
		second := m.AcquireOperationLock()
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second block waited on the first")
	}
	first()
}

func TestRunMaintenance_StepErrorDoesNotStopPass(t *testing.T) {
	t.Parallel()

	sqlDB, dbPath := openIndexDB(t)
	m := newTestCoordinator(t, sqlDB, dbPath, nil)
	m.steps[0] = step{name: StepWALCheckpoint, run: func() (bool, error) {
		return false, fmt.Errorf("disk full")
	}}

	err := m.RunMaintenance(context.Background())
	require.ErrorContains(t, err, "wal_checkpoint: disk full")

	report := m.LastReport()
	require.Len(t, report.Steps, 3)
	optimize, _ := report.Step(StepOptimize)
	require.NoError(t, optimize.Err)
}

func TestRunMaintenance_Cancelled(t *testing.T) {
	t.Parallel()

	sqlDB, dbPath := openIndexDB(t)
	m := newTestCoordinator(t, sqlDB, dbPath, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, m.RunMaintenance(ctx), context.Canceled)
	require.Nil(t, m.LastReport())
}

func TestStart(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		enabled  bool
		startup  bool
		interval time.Duration
		minRuns  uint64
	}{
		{name: "disabled", enabled: false, interval: 10 * time.Millisecond},
		{name: "startup pass only", enabled: true, startup: true, interval: time.Hour, minRuns: 1},
		{name: "periodic passes", enabled: true, interval: 20 * time.Millisecond, minRuns: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sqlDB, dbPath := openIndexDB(t)
			m := newTestCoordinator(t, sqlDB, dbPath, func(c *config.MaintenanceConfig) {
				c.Enabled = tc.enabled
				c.VacuumOnStartup = tc.startup
				c.CheckInterval = common.NewDuration(tc.interval)
			})

			require.NoError(t, m.Start(context.Background()))

			if tc.minRuns == 0 {
				time.Sleep(5 * tc.interval)
				require.Nil(t, m.LastReport())
			} else {
				require.Eventually(t, func() bool {
					r := m.LastReport()
					return r != nil && r.Runs >= tc.minRuns
				}, 2*time.Second, 10*time.Millisecond)
			}

			require.NoError(t, m.Stop())
			require.NoError(t, m.Stop())
		})
	}
}

func TestStop_WaitsForRunningPass(t *testing.T) {
	t.Parallel()

	sqlDB, dbPath := openIndexDB(t)
	m := newTestCoordinator(t, sqlDB, dbPath, func(c *config.MaintenanceConfig) {
		c.CheckInterval = common.NewDuration(5 * time.Millisecond)
	})

	var mu sync.Mutex
	finished := 0
	m.steps = append(m.steps, step{name: "tail", run: func() (bool, error) {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		finished++
		mu.Unlock()
		return false, nil
	}})

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.LastReport() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Stop())

	mu.Lock()
	stopped := finished
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, stopped, finished)
	require.Equal(t, uint64(finished), m.LastReport().Runs)
}
