package task

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is a validated set of tasks in execution order.
type Graph struct {
	order []*Task
}

// NewGraph validates the tasks and orders them so that every task runs after
// the writers of the keys it reads and after its explicit dependencies.
// Among tasks that are ready at the same time the one given first runs first,
// so the order is stable for a given input.
func NewGraph(tasks ...Task) (*Graph, error) {
	tasks = slices.Clone(tasks)
	byName := make(map[string]int, len(tasks))
	writers := make(map[Key]int)

	for i := range tasks {
		t := &tasks[i]
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
		}
		byName[t.Name] = i

		if len(t.Writes) > 1 && t.Merge == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingMerge, t.Name)
		}
		for _, key := range t.Writes {
			if other, dup := writers[key]; dup {
				return nil, fmt.Errorf("%w: %s is written by %s and %s", ErrDuplicateWriter, key, tasks[other].Name, t.Name)
			}
			writers[key] = i
		}
	}

	// edges[i] lists the tasks that wait for task i
	edges := make([][]int, len(tasks))
	indegree := make([]int, len(tasks))
	addEdge := func(from, to int) {
		if slices.Contains(edges[from], to) {
			return
		}
		edges[from] = append(edges[from], to)
		indegree[to]++
	}

	for i := range tasks {
		t := &tasks[i]
		for _, key := range t.Reads {
			w, ok := writers[key]
			if !ok {
				return nil, fmt.Errorf("%w: %s read by %s", ErrUnknownKey, key, t.Name)
			}
			if w == i {
				return nil, fmt.Errorf("%w: %s reads its own key %s", ErrCycle, t.Name, key)
			}
			addEdge(w, i)
		}
		for _, dep := range t.Dependencies {
			d, ok := byName[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, t.Name, dep)
			}
			if d == i {
				return nil, fmt.Errorf("%w: %s depends on itself", ErrCycle, t.Name)
			}
			addEdge(d, i)
		}
	}

	// Kahn's algorithm, always taking the lowest ready index
	order := make([]*Task, 0, len(tasks))
	var ready []int
	for i, n := range indegree {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		next := slices.Min(ready)
		ready = slices.DeleteFunc(ready, func(i int) bool { return i == next })
		order = append(order, &tasks[next])

		for _, to := range edges[next] {
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) != len(tasks) {
		var stuck []string
		for i, n := range indegree {
			if n > 0 {
				stuck = append(stuck, tasks[i].Name)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}

	return &Graph{order: order}, nil
}

// Tasks returns the tasks in execution order.
func (g *Graph) Tasks() []*Task {
	return g.order
}

// Names returns the task names in execution order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.order))
	for i, t := range g.order {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.order)
}
