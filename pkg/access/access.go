// Package access implements the per-contract, per-user permission table.
// Levels are explicit: a check tests the stored level, absence of an entry
// yields false rather than an error, and no level is implied by another.
package access

import (
	"sync"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

type entryKey struct {
	contract  contracts.ContractID
	principal contracts.Principal
}

// Table is the access-level table. Authorization decisions for mutating it
// (grants require an Admin caller) belong to the registry; the table itself
// only stores and answers lookups.
type Table struct {
	mu      sync.RWMutex
	entries map[entryKey]contracts.AccessLevel
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[entryKey]contracts.AccessLevel)}
}

// Grant writes or overwrites the entry for (contract, principal).
func (t *Table) Grant(id contracts.ContractID, p contracts.Principal, level contracts.AccessLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[entryKey{id, p}] = level
}

// Revoke removes the entry for (contract, principal). Removing a missing
// entry is a no-op.
func (t *Table) Revoke(id contracts.ContractID, p contracts.Principal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, entryKey{id, p})
}

// Level returns the stored level and whether an entry exists.
func (t *Table) Level(id contracts.ContractID, p contracts.Principal) (contracts.AccessLevel, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	level, ok := t.entries[entryKey{id, p}]
	return level, ok
}

// IsAdmin reports whether an entry exists with level Admin exactly.
func (t *Table) IsAdmin(id contracts.ContractID, p contracts.Principal) bool {
	level, ok := t.Level(id, p)
	return ok && level == contracts.AccessAdmin
}

// HasAtLeast reports whether an entry exists with the required level or
// higher. Used by the graded checks on the write surface.
func (t *Table) HasAtLeast(id contracts.ContractID, p contracts.Principal, required contracts.AccessLevel) bool {
	level, ok := t.Level(id, p)
	return ok && level >= required
}

// List returns all entries for a contract.
func (t *Table) List(id contracts.ContractID) []contracts.AccessEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]contracts.AccessEntry, 0)
	for k, level := range t.entries {
		if k.contract != id {
			continue
		}
		entries = append(entries, contracts.AccessEntry{
			ContractID: k.contract,
			Principal:  k.principal,
			Level:      level,
		})
	}
	return entries
}
