package store

import (
	"context"
	"sync"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

// MemoryJournal is an in-memory Journal. It is the default sink when no
// database is configured, and the workhorse of the test suite.
type MemoryJournal struct {
	mu     sync.RWMutex
	events []contracts.Event
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{events: make([]contracts.Event, 0)}
}

// Append implements Journal.
func (j *MemoryJournal) Append(_ context.Context, ev contracts.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return nil
}

// Replay implements Journal.
func (j *MemoryJournal) Replay(_ context.Context) ([]contracts.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]contracts.Event, len(j.events))
	copy(out, j.events)
	return out, nil
}

// Len returns the number of persisted events.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}
