package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/stateloop/internal/command"
)

// Executor performs one kind of operation. It is the only code allowed to
// touch the outside world on behalf of the state core. Expected failures
// are returned as errors; a remote.ErrorInfo (or an error carrying one)
// keeps its code when converted into a failure message.
type Executor interface {
	Execute(ctx context.Context, op command.Op) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, op command.Op) (any, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, op command.Op) (any, error) {
	return f(ctx, op)
}

// Registry maps op names to executors.
//
// Thread-safety: safe for concurrent use; registration normally happens
// before the loop starts.
type Registry struct {
	mu    sync.RWMutex
	execs map[string]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{execs: make(map[string]Executor)}
}

// Register binds name to exec. Registering a name twice is an error.
func (r *Registry) Register(name string, exec Executor) error {
	if name == "" {
		return fmt.Errorf("register executor: empty op name")
	}
	if exec == nil {
		return fmt.Errorf("register executor %q: nil executor", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.execs[name]; exists {
		return fmt.Errorf("register executor %q: already registered", name)
	}
	r.execs[name] = exec
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, exec Executor) {
	if err := r.Register(name, exec); err != nil {
		panic(err)
	}
}

// Lookup returns the executor for name.
func (r *Registry) Lookup(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.execs[name]
	return exec, ok
}

// Names returns registered op names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.execs))
	for name := range r.execs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
