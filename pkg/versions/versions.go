// Package versions maintains the per-contract version history: an ordered,
// immutable sequence of content-hash snapshots numbered gaplessly from 0.
package versions

import (
	"fmt"
	"sync"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

// History stores version rows keyed by (contract, number).
type History struct {
	mu   sync.RWMutex
	byID map[contracts.ContractID][]contracts.Version
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{byID: make(map[contracts.ContractID][]contracts.Version)}
}

// Latest returns the maximum version number recorded for the contract and
// whether any version exists. Contracts are created with version 0, so a
// missing history for an existing contract is an internal-consistency fault.
func (h *History) Latest(id contracts.ContractID) (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rows := h.byID[id]
	if len(rows) == 0 {
		return 0, false
	}
	return rows[len(rows)-1].Number, true
}

// Record validates the snapshot and appends it with the next sequential
// number (0 for the first). The row is immutable once written.
func (h *History) Record(id contracts.ContractID, contentHash []byte, metadata string, author contracts.Principal, now contracts.LogicalTime) (uint64, error) {
	if len(contentHash) != contracts.ContentHashSize {
		return 0, fmt.Errorf("%w: content hash must be exactly %d bytes, got %d",
			contracts.ErrInvalidInput, contracts.ContentHashSize, len(contentHash))
	}
	if metadata == "" {
		return 0, fmt.Errorf("%w: version metadata must not be empty", contracts.ErrInvalidInput)
	}
	if len(metadata) > contracts.MaxMetadataLength {
		return 0, fmt.Errorf("%w: version metadata exceeds %d characters",
			contracts.ErrInvalidInput, contracts.MaxMetadataLength)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rows := h.byID[id]
	var number uint64
	if len(rows) > 0 {
		number = rows[len(rows)-1].Number + 1
	}

	hash := make([]byte, len(contentHash))
	copy(hash, contentHash)

	h.byID[id] = append(rows, contracts.Version{
		ContractID:  id,
		Number:      number,
		ContentHash: hash,
		Author:      author,
		CreatedAt:   now,
		Metadata:    metadata,
	})
	return number, nil
}

// Get returns the version row for (contract, number).
func (h *History) Get(id contracts.ContractID, number uint64) (contracts.Version, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rows := h.byID[id]
	if number >= uint64(len(rows)) {
		return contracts.Version{}, false
	}
	return rows[number], true
}

// List returns all versions of a contract in recording order.
func (h *History) List(id contracts.ContractID) []contracts.Version {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rows := h.byID[id]
	out := make([]contracts.Version, len(rows))
	copy(out, rows)
	return out
}
