// Package events emits activity records for completed turns and executed
// tool calls so downstream consumers (analytics, activity feeds) can follow
// what the agent did. Publishing is fire-and-forget: a broker outage must
// never fail a user's turn.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindTurnCompleted = "turn.completed"
	KindToolExecuted  = "tool.executed"
	KindWalletCreated = "wallet.created"
)

// Event is one activity record.
type Event struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	ThreadID  string `json:"thread_id,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Network   string `json:"network,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(kind string) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Timestamp: time.Now().Unix()}
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// MemoryPublisher keeps events in memory for tests and for deployments that
// run without a broker.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements Publisher.
func (m *MemoryPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if len(m.events) > 512 {
		m.events = m.events[len(m.events)-512:]
	}
	return nil
}

// Events returns a snapshot of the retained events, oldest first.
func (m *MemoryPublisher) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make([]Event, len(m.events))
	copy(snapshot, m.events)
	return snapshot
}

// Close implements Publisher.
func (m *MemoryPublisher) Close() error { return nil }
