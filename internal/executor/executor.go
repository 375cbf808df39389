// Package executor runs the task graph over one block inside one database transaction.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/db"
	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/metrics"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/pkg/task"
)

// TaskError reports the task that failed a block.
type TaskError struct {
	Task  string
	Block ledger.Hash
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed on block %s: %v", e.Task, e.Block, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err means the index and the chain have diverged.
// Re-running the block cannot help, indexing must stop.
func IsFatal(err error) bool {
	return errors.Is(err, resolve.ErrUnresolvedInput) ||
		errors.Is(err, store.ErrMissingRows) ||
		errors.Is(err, store.ErrDoubleSpend)
}

// IsRetryable reports whether err is a transient store condition. The block
// rolled back, so running it again is safe.
func IsRetryable(err error) bool {
	return db.IsBusyError(err)
}

// Result summarizes an executed block.
type Result struct {
	Block    *ledger.Block
	Ran      []string
	Skipped  []string
	Duration time.Duration
}

// Executor runs a task graph block by block.
type Executor struct {
	db        *sql.DB
	graph     *task.Graph
	resolver  *resolve.Resolver
	batchRows int
	log       *logger.Logger
	taskLog   *logger.Logger
}

// New creates an executor. batchRows caps the rows of one multi-row statement.
func New(database *sql.DB, graph *task.Graph, resolver *resolve.Resolver, batchRows int, log *logger.Logger) *Executor {
	return &Executor{
		db:        database,
		graph:     graph,
		resolver:  resolver,
		batchRows: batchRows,
		log:       log,
		taskLog:   log.WithComponent(common.ComponentTasks),
	}
}

// Graph returns the task graph.
func (e *Executor) Graph() *task.Graph {
	return e.graph
}

// ExecuteBlock runs every applicable task for block in graph order within one
// transaction. Any task error rolls the whole block back and nothing it
// resolved reaches the resolver caches.
func (e *Executor) ExecuteBlock(ctx context.Context, block *ledger.Block) (*Result, error) {
	start := time.Now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			e.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	st := store.New(tx, e.batchRows)
	session := e.resolver.NewSession(st)
	deps := task.Deps{
		Block:   block,
		Store:   st,
		Resolve: session,
		Log:     e.taskLog,
	}

	result := &Result{Block: block}
	bc := task.NewBlockContext()
	for _, t := range e.graph.Tasks() {
		if !t.AppliesTo(block) {
			result.Skipped = append(result.Skipped, t.Name)
			metrics.TaskSkippedInc(t.Name)
			continue
		}

		taskStart := time.Now()
		if err := bc.Run(ctx, t, deps); err != nil {
			metrics.BlocksProcessedInc(metrics.OutcomeRolledBack)
			return nil, &TaskError{Task: t.Name, Block: block.Hash, Err: err}
		}
		metrics.TaskDurationLog(t.Name, time.Since(taskStart))
		result.Ran = append(result.Ran, t.Name)
	}

	if err := tx.Commit(); err != nil {
		metrics.BlocksProcessedInc(metrics.OutcomeRolledBack)
		return nil, fmt.Errorf("failed to commit block %s: %w", block.Hash, err)
	}
	session.Commit()

	result.Duration = time.Since(start)
	metrics.BlocksProcessedInc(metrics.OutcomeCommitted)
	metrics.BlockProcessingTimeLog(result.Duration)
	metrics.TransactionsIndexedAdd(len(block.Transactions))
	metrics.LastIndexedBlockSet(block.Height, block.Slot)

	e.log.Debugw("block indexed",
		"height", block.Height,
		"slot", block.Slot,
		"hash", block.Hash.String(),
		"txs", len(block.Transactions),
		"ran", len(result.Ran),
		"skipped", len(result.Skipped),
		"duration", result.Duration)

	return result, nil
}
