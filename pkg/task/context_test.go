package task

import (
	"context"
	"errors"
	"testing"

	"github.com/goran-ethernal/CardanoIndexor/internal/ledger"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestBlockContext_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bc := NewBlockContext()
	deps := Deps{Log: logger.NewNopLogger()}

	producer := &Task{
		Name:   "producer",
		Writes: []Key{"numbers"},
		Execute: func(context.Context, *Env) (any, error) {
			return []int{1, 2, 3}, nil
		},
	}
	require.NoError(t, bc.Run(ctx, producer, deps))

	v, ok := bc.Get("numbers")
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, v)

	var sum int
	consumer := &Task{
		Name:  "consumer",
		Reads: []Key{"numbers", "skipped"},
		Execute: func(_ context.Context, env *Env) (any, error) {
			numbers, err := Get[[]int](env, "numbers")
			if err != nil {
				return nil, err
			}
			for _, n := range numbers {
				sum += n
			}

			_, ok, err := Optional[string](env, "skipped")
			if err != nil {
				return nil, err
			}
			if ok {
				return nil, errors.New("skipped key should be absent")
			}

			_, err = Get[string](env, "skipped")
			require.ErrorIs(t, err, ErrMissingValue)

			_, err = Get[string](env, "numbers")
			require.ErrorIs(t, err, ErrValueType)

			_, _, err = env.Lookup("other")
			require.ErrorIs(t, err, ErrUndeclaredRead)
			return nil, nil
		},
	}
	require.NoError(t, bc.Run(ctx, consumer, deps))
	require.Equal(t, 6, sum)
	require.Equal(t, []Key{"numbers"}, bc.Keys())
}

func TestBlockContext_Merge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("custom merge writes several keys", func(t *testing.T) {
		t.Parallel()

		bc := NewBlockContext()
		split := &Task{
			Name:   "split",
			Writes: []Key{"even", "odd"},
			Execute: func(context.Context, *Env) (any, error) {
				return []int{1, 2, 3, 4}, nil
			},
			Merge: func(w *Writer, output any) error {
				var even, odd []int
				for _, n := range output.([]int) {
					if n%2 == 0 {
						even = append(even, n)
					} else {
						odd = append(odd, n)
					}
				}
				if err := w.Put("even", even); err != nil {
					return err
				}
				return w.Put("odd", odd)
			},
		}
		require.NoError(t, bc.Run(ctx, split, Deps{}))

		even, _ := bc.Get("even")
		odd, _ := bc.Get("odd")
		require.Equal(t, []int{2, 4}, even)
		require.Equal(t, []int{1, 3}, odd)
	})

	t.Run("undeclared write", func(t *testing.T) {
		t.Parallel()

		bc := NewBlockContext()
		bad := &Task{
			Name:    "bad",
			Writes:  []Key{"mine"},
			Execute: noop,
			Merge: func(w *Writer, _ any) error {
				return w.Put("theirs", 1)
			},
		}
		err := bc.Run(ctx, bad, Deps{})
		require.ErrorIs(t, err, ErrUndeclaredWrite)
		require.Empty(t, bc.Keys())
	})

	t.Run("failed execute merges nothing", func(t *testing.T) {
		t.Parallel()

		bc := NewBlockContext()
		boom := errors.New("boom")
		failing := &Task{
			Name:   "failing",
			Writes: []Key{"value"},
			Execute: func(context.Context, *Env) (any, error) {
				return 42, boom
			},
		}
		require.ErrorIs(t, bc.Run(ctx, failing, Deps{}), boom)
		_, ok := bc.Get("value")
		require.False(t, ok)
	})

	t.Run("no writes discards output", func(t *testing.T) {
		t.Parallel()

		bc := NewBlockContext()
		sink := &Task{
			Name: "sink",
			Execute: func(context.Context, *Env) (any, error) {
				return "ignored", nil
			},
		}
		require.NoError(t, bc.Run(ctx, sink, Deps{}))
		require.Empty(t, bc.Keys())
	})
}

func TestTask_AppliesTo(t *testing.T) {
	t.Parallel()

	always := &Task{Name: "always"}
	require.True(t, always.AppliesTo(nil))

	never := &Task{Name: "never", Applies: func(*ledger.Block) bool { return false }}
	require.False(t, never.AppliesTo(&ledger.Block{}))
}
