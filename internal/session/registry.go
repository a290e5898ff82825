package session

import (
	"context"

	xerrors "ChainPilot/internal/errors"
)

// CreateFunc provisions a new provider thread when no binding exists.
type CreateFunc func(ctx context.Context) (string, error)

// Registry resolves chat threads to provider threads, provisioning one on
// first contact. Racing first turns converge on a single provider thread.
type Registry struct {
	store Store
}

// NewRegistry wires a registry over a binding store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Resolve returns the provider thread for chatThreadID, calling create and
// binding the result when none exists yet.
func (r *Registry) Resolve(ctx context.Context, chatThreadID string, create CreateFunc) (string, error) {
	providerThreadID, err := r.store.Lookup(ctx, chatThreadID)
	if err == nil {
		return providerThreadID, nil
	}
	if !xerrors.HasCode(err, xerrors.CodeNotFound) {
		return "", err
	}
	providerThreadID, err = create(ctx)
	if err != nil {
		return "", err
	}
	if err := r.store.Bind(ctx, chatThreadID, providerThreadID); err != nil {
		if xerrors.HasCode(err, xerrors.CodeConflict) {
			// Another turn won the race; use its thread.
			return r.store.Lookup(ctx, chatThreadID)
		}
		return "", err
	}
	return providerThreadID, nil
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}
