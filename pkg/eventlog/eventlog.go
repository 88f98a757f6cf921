// Package eventlog implements the append-only, hash-chained audit log.
// Event IDs come from a single global sequence shared across all contracts,
// starting at 0, strictly increasing, never reused. The ID counter advances
// only when an append fully succeeds, including the durable journal write.
package eventlog

import (
	"context"
	"fmt"
	"sync"

	"github.com/covenantlabs/covenant/pkg/canonhash"
	"github.com/covenantlabs/covenant/pkg/contracts"
	"github.com/covenantlabs/covenant/pkg/store"
)

// genesisHash is the PrevHash of the first event in the chain.
const genesisHash = "genesis"

// Record is the input to Append. Caller and Now come from the operation's
// identity context; RelatedPrincipal and RelatedValue are optional.
type Record struct {
	ContractID       contracts.ContractID
	Type             contracts.EventType
	Metadata         string
	RelatedPrincipal *contracts.Principal
	RelatedValue     *uint64
	Caller           contracts.Principal
	Now              contracts.LogicalTime
}

// Handler is called with every committed event.
type Handler func(ev contracts.Event)

// Log is the global append-only event log.
type Log struct {
	mu         sync.RWMutex
	entries    []contracts.Event
	byContract map[contracts.ContractID][]int
	nextID     uint64
	chainHead  string
	journal    store.Journal
	handlers   []Handler
}

// New creates an empty log with no durable journal.
func New() *Log {
	return &Log{
		entries:    make([]contracts.Event, 0),
		byContract: make(map[contracts.ContractID][]int),
		chainHead:  genesisHash,
	}
}

// WithJournal attaches a durable sink. Every Append writes to the journal
// before the event is retained; a journal error fails the append.
func (l *Log) WithJournal(j store.Journal) *Log {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.journal = j
	return l
}

// AddHandler registers a handler invoked for each committed event.
func (l *Log) AddHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// Append allocates the next global event ID, chains and persists the event,
// and returns it. On any failure the log is unchanged and the counter has
// not advanced; the error wraps contracts.ErrEventFailed.
func (l *Log) Append(ctx context.Context, rec Record) (contracts.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := contracts.Event{
		ID:               l.nextID,
		ContractID:       rec.ContractID,
		Type:             rec.Type,
		CreatedAt:        rec.Now,
		CreatedBy:        rec.Caller,
		Metadata:         rec.Metadata,
		RelatedPrincipal: rec.RelatedPrincipal,
		RelatedValue:     rec.RelatedValue,
		PrevHash:         l.chainHead,
	}

	entryHash, err := hashEvent(ev)
	if err != nil {
		return contracts.Event{}, fmt.Errorf("%w: %w", contracts.ErrEventFailed, err)
	}
	ev.EntryHash = entryHash

	if l.journal != nil {
		if err := l.journal.Append(ctx, ev); err != nil {
			return contracts.Event{}, fmt.Errorf("%w: journal append: %w", contracts.ErrEventFailed, err)
		}
	}

	idx := len(l.entries)
	l.entries = append(l.entries, ev)
	l.byContract[ev.ContractID] = append(l.byContract[ev.ContractID], idx)
	l.chainHead = ev.EntryHash
	l.nextID++

	handlers := l.handlers
	for _, h := range handlers {
		h(ev)
	}

	return ev, nil
}

// hashEvent computes the chain hash over the canonical JSON form of the
// event's identity-bearing fields.
func hashEvent(ev contracts.Event) (string, error) {
	hashable := struct {
		ID               uint64                `json:"id"`
		ContractID       contracts.ContractID  `json:"contract_id"`
		Type             contracts.EventType   `json:"type"`
		CreatedAt        contracts.LogicalTime `json:"created_at"`
		CreatedBy        contracts.Principal   `json:"created_by"`
		Metadata         string                `json:"metadata"`
		RelatedPrincipal *contracts.Principal  `json:"related_principal,omitempty"`
		RelatedValue     *uint64               `json:"related_value,omitempty"`
		PrevHash         string                `json:"prev_hash"`
	}{
		ID:               ev.ID,
		ContractID:       ev.ContractID,
		Type:             ev.Type,
		CreatedAt:        ev.CreatedAt,
		CreatedBy:        ev.CreatedBy,
		Metadata:         ev.Metadata,
		RelatedPrincipal: ev.RelatedPrincipal,
		RelatedValue:     ev.RelatedValue,
		PrevHash:         ev.PrevHash,
	}
	return canonhash.Hash(hashable)
}

// Get retrieves an event by its global ID.
func (l *Log) Get(id uint64) (contracts.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id >= uint64(len(l.entries)) {
		return contracts.Event{}, false
	}
	return l.entries[id], true
}

// NextID returns the ID the next successful append will receive.
func (l *Log) NextID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID
}

// Len returns the number of committed events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Head returns the current chain head hash.
func (l *Log) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chainHead
}

// Filter selects events in Query. Zero values match everything.
type Filter struct {
	ContractID *contracts.ContractID
	Type       contracts.EventType
	FromID     uint64
	ToID       *uint64
	Limit      int
}

func (f Filter) matches(ev contracts.Event) bool {
	if f.ContractID != nil && ev.ContractID != *f.ContractID {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if ev.ID < f.FromID {
		return false
	}
	if f.ToID != nil && ev.ID > *f.ToID {
		return false
	}
	return true
}

// Query returns events matching the filter in append order.
func (l *Log) Query(f Filter) []contracts.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make([]contracts.Event, 0)
	scan := l.entries
	if f.ContractID != nil {
		indices := l.byContract[*f.ContractID]
		scan = make([]contracts.Event, 0, len(indices))
		for _, idx := range indices {
			scan = append(scan, l.entries[idx])
		}
	}
	for _, ev := range scan {
		if !f.matches(ev) {
			continue
		}
		results = append(results, ev)
		if f.Limit > 0 && len(results) >= f.Limit {
			break
		}
	}
	return results
}

// VerifyChain recomputes every entry hash and checks the chain links.
func (l *Log) VerifyChain() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	expectedPrev := genesisHash
	for i, ev := range l.entries {
		if ev.PrevHash != expectedPrev {
			return fmt.Errorf("chain broken at event %d: prev_hash %s, expected %s", i, ev.PrevHash, expectedPrev)
		}
		computed, err := hashEvent(ev)
		if err != nil {
			return fmt.Errorf("chain verification failed at event %d: %w", i, err)
		}
		if computed != ev.EntryHash {
			return fmt.Errorf("hash mismatch at event %d", i)
		}
		expectedPrev = ev.EntryHash
	}
	return nil
}
