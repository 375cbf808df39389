package task

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/resolve"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
)

// BlockContext holds the values produced by the tasks of one block.
// Keys of tasks that did not apply to the block stay absent.
// A context is discarded once its block commits or rolls back.
type BlockContext struct {
	values map[Key]any
}

// NewBlockContext creates an empty block context.
func NewBlockContext() *BlockContext {
	return &BlockContext{values: make(map[Key]any)}
}

// Get returns the value stored under key.
func (c *BlockContext) Get(key Key) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the keys holding a value, sorted.
func (c *BlockContext) Keys() []Key {
	return slices.Sorted(maps.Keys(c.values))
}

// Deps are the handles a task works with for one block.
type Deps struct {
	Block   *ledger.Block
	Store   *store.Store
	Resolve *resolve.Session
	Log     *logger.Logger
}

// Env is what a task sees while it executes: the block's handles and
// read access to the keys it declared.
type Env struct {
	Deps

	task   *Task
	values *BlockContext
}

// Run executes t against the context and merges its output.
// Nothing is merged when Execute fails.
func (c *BlockContext) Run(ctx context.Context, t *Task, deps Deps) error {
	env := &Env{Deps: deps, task: t, values: c}

	output, err := t.Execute(ctx, env)
	if err != nil {
		return err
	}

	if err := t.merge(&Writer{task: t, values: c}, output); err != nil {
		return fmt.Errorf("failed to merge output of %s: %w", t.Name, err)
	}
	return nil
}

// Lookup returns the value under key, which the task must have declared as a read.
func (e *Env) Lookup(key Key) (any, bool, error) {
	if !e.task.reads(key) {
		return nil, false, fmt.Errorf("%w: task %s reads %s", ErrUndeclaredRead, e.task.Name, key)
	}
	v, ok := e.values.Get(key)
	return v, ok, nil
}

// Get returns the value of type T under key. It fails when the key is absent.
func Get[T any](env *Env, key Key) (T, error) {
	v, ok, err := Optional[T](env, key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrMissingValue, key)
	}
	return v, nil
}

// Optional returns the value of type T under key and whether it is present.
func Optional[T any](env *Env, key Key) (T, bool, error) {
	var zero T

	v, ok, err := env.Lookup(key)
	if err != nil || !ok {
		return zero, false, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("%w: %s holds %T", ErrValueType, key, v)
	}
	return typed, true, nil
}

// Writer stores task output in the block context.
type Writer struct {
	task   *Task
	values *BlockContext
}

// Put stores value under key, which the task must have declared as a write.
func (w *Writer) Put(key Key, value any) error {
	if !w.task.writes(key) {
		return fmt.Errorf("%w: task %s writes %s", ErrUndeclaredWrite, w.task.Name, key)
	}
	w.values.values[key] = value
	return nil
}
