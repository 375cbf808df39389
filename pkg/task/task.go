// Package task defines the unit of per-block indexing work, the dependency
// graph that orders tasks, and the block context through which tasks share
// their results.
package task

import (
	"context"
	"errors"
	"slices"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
)

// Key names a value in the block context.
type Key string

var (
	// ErrUnknownKey is returned when a task reads a key no task writes.
	ErrUnknownKey = errors.New("no task writes key")
	// ErrDuplicateWriter is returned when two tasks write the same key.
	ErrDuplicateWriter = errors.New("key has more than one writer")
	// ErrUnknownDependency is returned when a task depends on a task that is not in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrDuplicateTask is returned when two tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task")
	// ErrCycle is returned when the dependencies cannot be ordered.
	ErrCycle = errors.New("dependency cycle")
	// ErrMissingMerge is returned when a task writes several keys without a merge function.
	ErrMissingMerge = errors.New("task writes several keys without a merge function")
	// ErrUndeclaredRead is returned when a task reads a key it did not declare.
	ErrUndeclaredRead = errors.New("read of undeclared key")
	// ErrUndeclaredWrite is returned when a merge writes a key the task did not declare.
	ErrUndeclaredWrite = errors.New("write of undeclared key")
	// ErrMissingValue is returned by Get when the writer of a key did not run for the block.
	ErrMissingValue = errors.New("no value for key")
	// ErrValueType is returned when a value does not have the requested type.
	ErrValueType = errors.New("unexpected value type")
)

// Task is one unit of per-block indexing work.
type Task struct {
	// Name identifies the task in logs, metrics and dependency lists
	Name string
	// Dependencies name tasks that must run first even though no key links them
	Dependencies []string
	// Reads are the keys the task reads from the block context
	Reads []Key
	// Writes are the keys the task's merge stores in the block context
	Writes []Key
	// Applies reports whether the task has work for the block. Nil means always.
	Applies func(block *ledger.Block) bool
	// Execute does the work. It runs inside the block's database transaction.
	Execute func(ctx context.Context, env *Env) (any, error)
	// Merge stores the output of Execute. Nil stores it under the single write key.
	Merge func(w *Writer, output any) error
}

// AppliesTo reports whether the task runs for block.
func (t *Task) AppliesTo(block *ledger.Block) bool {
	return t.Applies == nil || t.Applies(block)
}

func (t *Task) reads(key Key) bool {
	return slices.Contains(t.Reads, key)
}

func (t *Task) writes(key Key) bool {
	return slices.Contains(t.Writes, key)
}

func (t *Task) merge(w *Writer, output any) error {
	if t.Merge != nil {
		return t.Merge(w, output)
	}
	if len(t.Writes) == 1 {
		return w.Put(t.Writes[0], output)
	}
	return nil
}
