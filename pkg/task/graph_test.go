package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Env) (any, error) { return nil, nil }

func newTask(name string, reads, writes []Key, deps ...string) Task {
	return Task{Name: name, Reads: reads, Writes: writes, Dependencies: deps, Execute: noop}
}

func TestNewGraph_Order(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tasks []Task
		want  []string
	}{
		{
			name: "readers follow writers",
			tasks: []Task{
				newTask("outputs", []Key{"transactions", "addresses"}, []Key{"outputs"}),
				newTask("addresses", []Key{"transactions"}, []Key{"addresses"}),
				newTask("transactions", []Key{"block"}, []Key{"transactions"}),
				newTask("block", nil, []Key{"block"}),
			},
			want: []string{"block", "transactions", "addresses", "outputs"},
		},
		{
			name: "ties keep registration order",
			tasks: []Task{
				newTask("block", nil, []Key{"block"}),
				newTask("c", []Key{"block"}, nil),
				newTask("a", []Key{"block"}, nil),
				newTask("b", []Key{"block"}, nil),
			},
			want: []string{"block", "c", "a", "b"},
		},
		{
			name: "explicit dependencies",
			tasks: []Task{
				newTask("second", nil, nil, "first"),
				newTask("first", nil, nil),
				newTask("third", nil, nil, "second", "first"),
			},
			want: []string{"first", "second", "third"},
		},
		{
			name: "a ready task registered earlier runs before a later one unlocked first",
			tasks: []Task{
				newTask("root", nil, []Key{"root"}),
				newTask("late", []Key{"mid"}, nil),
				newTask("mid", []Key{"root"}, []Key{"mid"}),
				newTask("early", []Key{"root"}, nil),
			},
			want: []string{"root", "mid", "late", "early"},
		},
		{
			name:  "empty",
			tasks: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, err := NewGraph(tt.tasks...)
			require.NoError(t, err)
			require.Equal(t, tt.want, g.Names())
			require.Equal(t, len(tt.want), g.Len())
		})
	}
}

func TestNewGraph_Deterministic(t *testing.T) {
	t.Parallel()

	tasks := []Task{
		newTask("block", nil, []Key{"block"}),
		newTask("x", []Key{"block"}, []Key{"x"}),
		newTask("y", []Key{"block"}, []Key{"y"}),
		newTask("z", []Key{"x", "y"}, nil),
	}

	first, err := NewGraph(tasks...)
	require.NoError(t, err)
	for range 20 {
		g, err := NewGraph(tasks...)
		require.NoError(t, err)
		require.Equal(t, first.Names(), g.Names())
	}
}

func TestNewGraph_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tasks   []Task
		wantErr error
	}{
		{
			name:    "unknown key",
			tasks:   []Task{newTask("a", []Key{"missing"}, nil)},
			wantErr: ErrUnknownKey,
		},
		{
			name: "duplicate writer",
			tasks: []Task{
				newTask("a", nil, []Key{"k"}),
				newTask("b", nil, []Key{"k"}),
			},
			wantErr: ErrDuplicateWriter,
		},
		{
			name:    "unknown dependency",
			tasks:   []Task{newTask("a", nil, nil, "ghost")},
			wantErr: ErrUnknownDependency,
		},
		{
			name: "duplicate task",
			tasks: []Task{
				newTask("a", nil, nil),
				newTask("a", nil, nil),
			},
			wantErr: ErrDuplicateTask,
		},
		{
			name: "cycle through keys",
			tasks: []Task{
				newTask("a", []Key{"b"}, []Key{"a"}),
				newTask("b", []Key{"a"}, []Key{"b"}),
			},
			wantErr: ErrCycle,
		},
		{
			name: "cycle through dependencies",
			tasks: []Task{
				newTask("a", nil, nil, "c"),
				newTask("b", nil, nil, "a"),
				newTask("c", nil, nil, "b"),
			},
			wantErr: ErrCycle,
		},
		{
			name:    "self read",
			tasks:   []Task{newTask("a", []Key{"a"}, []Key{"a"})},
			wantErr: ErrCycle,
		},
		{
			name:    "several writes without merge",
			tasks:   []Task{newTask("a", nil, []Key{"x", "y"})},
			wantErr: ErrMissingMerge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewGraph(tt.tasks...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
