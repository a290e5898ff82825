package wallet

import (
	"context"
	"strings"
	"sync"

	xerrors "ChainPilot/internal/errors"
)

// MemoryStore keeps wallet records in process memory, mainly for tests and
// single-node development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Find implements Store.
func (m *MemoryStore) Find(_ context.Context, userIdentity string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[userIdentity]
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, "wallet not found")
	}
	clone := *record
	return &clone, nil
}

// Create implements Store. Duplicate identities fail with CONFLICT so the
// resolver can collapse racing first contacts onto the winner's record.
func (m *MemoryStore) Create(_ context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record must not be nil")
	}
	if strings.TrimSpace(record.UserIdentity) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "user identity must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.UserIdentity]; ok {
		return xerrors.New(xerrors.CodeConflict, "wallet already exists for identity")
	}
	clone := *record
	m.records[record.UserIdentity] = &clone
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
