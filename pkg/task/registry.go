package task

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
)

// ErrDisabled is returned by a factory whose task is switched off by the configuration.
var ErrDisabled = errors.New("task disabled by configuration")

// Options are passed to every factory.
type Options struct {
	Config *config.Config
	Log    *logger.Logger
}

// Factory creates a task.
type Factory func(opts Options) (Task, error)

var (
	registry = make(map[string]Factory)
	// names in registration order
	registered []string
	mu         sync.RWMutex
)

// Register registers a task factory under name.
// This is typically called in init() functions of task packages.
// The name is case-insensitive and will be stored in lowercase.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	if _, exists := registry[name]; exists {
		logger.GetDefaultLogger().Infof("task with name %s already in task registry. "+
			"It will be overwritten.", name)
	} else {
		registered = append(registered, name)
	}

	registry[name] = factory
}

// GetFactory returns the factory registered under name, nil if there is none.
// The lookup is case-insensitive.
func GetFactory(name string) Factory {
	mu.RLock()
	defer mu.RUnlock()
	return registry[strings.ToLower(name)]
}

// ListRegistered returns the registered names in registration order.
func ListRegistered() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(registered)
}

// Create creates the task registered under name.
func Create(name string, opts Options) (Task, error) {
	factory := GetFactory(name)
	if factory == nil {
		return Task{}, fmt.Errorf("unknown task: %s (registered tasks: %v)", name, ListRegistered())
	}

	t, err := factory(opts)
	if err != nil {
		return Task{}, fmt.Errorf("failed to create task %s: %w", name, err)
	}
	return t, nil
}

// BuildGraph creates the named tasks and orders them. An empty list selects every
// registered task. Tasks whose factory reports ErrDisabled are left out.
func BuildGraph(names []string, opts Options) (*Graph, error) {
	if len(names) == 0 {
		names = ListRegistered()
	}

	tasks := make([]Task, 0, len(names))
	for _, name := range names {
		t, err := Create(name, opts)
		if errors.Is(err, ErrDisabled) {
			if opts.Log != nil {
				opts.Log.Debugf("task %s disabled", name)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return NewGraph(tasks...)
}
