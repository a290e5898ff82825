// Package session maps chat thread identifiers to conversation threads held
// by the model provider. A binding is created on first use and kept for the
// life of the deployment so follow-up turns land on the same conversation.
package session

import (
	"context"
	"strings"
	"sync"

	xerrors "ChainPilot/internal/errors"
)

// Store persists thread bindings.
type Store interface {
	// Lookup returns the provider thread bound to chatThreadID, or a
	// NOT_FOUND error when no binding exists yet.
	Lookup(ctx context.Context, chatThreadID string) (string, error)
	// Bind records a binding. Rebinding an already-bound chat thread is a
	// CONFLICT so racing first turns converge on one provider thread.
	Bind(ctx context.Context, chatThreadID, providerThreadID string) error
	Close() error
}

// MemoryStore keeps bindings in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]string)}
}

// Lookup implements Store.
func (m *MemoryStore) Lookup(_ context.Context, chatThreadID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	providerThreadID, ok := m.threads[chatThreadID]
	if !ok {
		return "", xerrors.New(xerrors.CodeNotFound, "no thread bound")
	}
	return providerThreadID, nil
}

// Bind implements Store.
func (m *MemoryStore) Bind(_ context.Context, chatThreadID, providerThreadID string) error {
	if strings.TrimSpace(chatThreadID) == "" || strings.TrimSpace(providerThreadID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "thread ids must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[chatThreadID]; ok {
		return xerrors.New(xerrors.CodeConflict, "thread already bound")
	}
	m.threads[chatThreadID] = providerThreadID
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
