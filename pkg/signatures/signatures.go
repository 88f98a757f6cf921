// Package signatures collects cryptographic signatures per contract. The
// engine stores signature hashes as opaque fixed-length byte strings; it
// does not verify them. One signature per (contract, signer) is enforced as
// a uniqueness invariant, and the quorum threshold is advisory metadata:
// signers past the threshold are still accepted.
package signatures

import (
	"fmt"
	"sync"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

type signerKey struct {
	contract contracts.ContractID
	signer   contracts.Principal
}

// Book stores signature rows.
type Book struct {
	mu       sync.RWMutex
	bySigner map[signerKey]contracts.Signature
	byID     map[contracts.ContractID][]signerKey
}

// NewBook creates an empty signature book.
func NewBook() *Book {
	return &Book{
		bySigner: make(map[signerKey]contracts.Signature),
		byID:     make(map[contracts.ContractID][]signerKey),
	}
}

// Has reports whether the signer already holds a signature row for the
// contract.
func (b *Book) Has(id contracts.ContractID, signer contracts.Principal) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.bySigner[signerKey{id, signer}]
	return ok
}

// Add validates and writes an immutable signature row stamped with the
// given version number. A duplicate signer fails with ErrInvalidState and
// changes nothing.
func (b *Book) Add(id contracts.ContractID, signer contracts.Principal, sigHash []byte, versionNumber uint64, now contracts.LogicalTime) error {
	if len(sigHash) != contracts.SignatureHashSize {
		return fmt.Errorf("%w: signature hash must be exactly %d bytes, got %d",
			contracts.ErrInvalidInput, contracts.SignatureHashSize, len(sigHash))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := signerKey{id, signer}
	if _, ok := b.bySigner[key]; ok {
		return fmt.Errorf("%w: %s has already signed contract %d", contracts.ErrInvalidState, signer, id)
	}

	hash := make([]byte, len(sigHash))
	copy(hash, sigHash)

	b.bySigner[key] = contracts.Signature{
		ContractID:    id,
		Signer:        signer,
		SignedAt:      now,
		SignatureHash: hash,
		VersionNumber: versionNumber,
	}
	b.byID[id] = append(b.byID[id], key)
	return nil
}

// Count returns the number of signature rows for the contract.
func (b *Book) Count(id contracts.ContractID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID[id])
}

// List returns the contract's signatures in signing order.
func (b *Book) List(id contracts.ContractID) []contracts.Signature {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := b.byID[id]
	out := make([]contracts.Signature, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.bySigner[k])
	}
	return out
}

// QuorumReached reports whether the live signature count has met the
// contract's required threshold. Advisory only: Add never consults it.
func (b *Book) QuorumReached(id contracts.ContractID, required uint8) bool {
	return b.Count(id) >= int(required)
}
