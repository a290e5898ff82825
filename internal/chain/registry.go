package chain

import (
	"context"
	"fmt"
	"sort"

	xerrors "ChainPilot/internal/errors"
)

// Registry manages one executor per configured network, keyed by the human
// readable network name used in tool arguments.
type Registry struct {
	networks  map[string]Network
	executors map[string]*Executor
}

// NewRegistry loads network definitions and dials an executor for each.
func NewRegistry(ctx context.Context, path string, opts ...ExecutorOption) (*Registry, error) {
	defs, err := LoadDefinitions(path)
	if err != nil {
		return nil, err
	}

	registry := &Registry{
		networks:  make(map[string]Network),
		executors: make(map[string]*Executor),
	}
	for name := range defs.Networks {
		network, err := defs.Build(name)
		if err != nil {
			return nil, err
		}
		executor, err := NewExecutor(ctx, network, opts...)
		if err != nil {
			return nil, fmt.Errorf("initialise network %s: %w", name, err)
		}
		registry.networks[name] = network
		registry.executors[name] = executor
	}
	if len(registry.executors) == 0 {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "no networks configured")
	}
	return registry, nil
}

// NewStaticRegistry wires pre-built executors; used by tests.
func NewStaticRegistry(executors map[string]*Executor) *Registry {
	registry := &Registry{
		networks:  make(map[string]Network, len(executors)),
		executors: make(map[string]*Executor, len(executors)),
	}
	for name, executor := range executors {
		registry.networks[name] = executor.Network()
		registry.executors[name] = executor
	}
	return registry
}

// Executor returns the executor for a named network.
func (r *Registry) Executor(name string) (*Executor, error) {
	executor, ok := r.executors[name]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "network "+name+" is not configured")
	}
	return executor, nil
}

// Network returns the configuration of a named network.
func (r *Registry) Network(name string) (Network, error) {
	network, ok := r.networks[name]
	if !ok {
		return Network{}, xerrors.New(xerrors.CodeNotFound, "network "+name+" is not configured")
	}
	return network, nil
}

// Names lists the configured network names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.networks))
	for name := range r.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every executor.
func (r *Registry) Close() {
	for name, executor := range r.executors {
		executor.Close()
		delete(r.executors, name)
	}
}
