// Package registry owns the top-level contract records and orchestrates
// every mutating operation of the engine: it validates all preconditions,
// then commits the mutation together with exactly one audit event.
//
// Operations execute one at a time under a single lock, matching the
// engine's single-linear-order execution model. Validation happens entirely
// before any write. The audit append is the commit gate: it runs first
// inside the critical section and a failure aborts the operation before any
// map or counter is touched, so no state change ever exists without its
// audit record and no ID is consumed by a failed call.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/covenantlabs/covenant/pkg/access"
	"github.com/covenantlabs/covenant/pkg/contracts"
	"github.com/covenantlabs/covenant/pkg/eventlog"
	"github.com/covenantlabs/covenant/pkg/identity"
	"github.com/covenantlabs/covenant/pkg/signatures"
	"github.com/covenantlabs/covenant/pkg/versions"
)

// Registry composes the contract table with the version history, signature
// book, access table, and event log.
type Registry struct {
	mu             sync.RWMutex
	contracts      map[contracts.ContractID]contracts.Contract
	nextContractID uint64

	versions   *versions.History
	signatures *signatures.Book
	access     *access.Table
	events     *eventlog.Log
}

// New creates an empty registry around the given event log.
func New(events *eventlog.Log) *Registry {
	return &Registry{
		contracts:  make(map[contracts.ContractID]contracts.Contract),
		versions:   versions.NewHistory(),
		signatures: signatures.NewBook(),
		access:     access.NewTable(),
		events:     events,
	}
}

// Events exposes the event log for queries and chain verification.
func (r *Registry) Events() *eventlog.Log { return r.events }

// Access exposes the access table for read-only checks.
func (r *Registry) Access() *access.Table { return r.access }

// CreateContract validates all inputs, then writes the contract row with
// status Active, records version 0 ("Initial version"), grants the caller
// Admin, and appends a contract_created event. The contract-ID counter
// advances only on success; a failed call leaves the next ID unchanged.
func (r *Registry) CreateContract(ctx context.Context, op identity.Operation, title, description string, requiredSignatures uint8, initialContentHash []byte) (contracts.ContractID, error) {
	if title == "" {
		return 0, fmt.Errorf("%w: title must not be empty", contracts.ErrInvalidInput)
	}
	if len(title) > contracts.MaxTitleLength {
		return 0, fmt.Errorf("%w: title exceeds %d characters", contracts.ErrInvalidInput, contracts.MaxTitleLength)
	}
	if description == "" {
		return 0, fmt.Errorf("%w: description must not be empty", contracts.ErrInvalidInput)
	}
	if len(description) > contracts.MaxDescriptionLength {
		return 0, fmt.Errorf("%w: description exceeds %d characters", contracts.ErrInvalidInput, contracts.MaxDescriptionLength)
	}
	if requiredSignatures < contracts.MinRequiredSignatures || requiredSignatures > contracts.MaxRequiredSignatures {
		return 0, fmt.Errorf("%w: required signatures must be in [%d, %d], got %d",
			contracts.ErrInvalidInput, contracts.MinRequiredSignatures, contracts.MaxRequiredSignatures, requiredSignatures)
	}
	if len(initialContentHash) != contracts.ContentHashSize {
		return 0, fmt.Errorf("%w: content hash must be exactly %d bytes, got %d",
			contracts.ErrInvalidInput, contracts.ContentHashSize, len(initialContentHash))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := contracts.ContractID(r.nextContractID)

	if _, err := r.events.Append(ctx, eventlog.Record{
		ContractID: id,
		Type:       contracts.EventContractCreated,
		Metadata:   title,
		Caller:     op.Caller,
		Now:        op.Now,
	}); err != nil {
		return 0, err
	}

	r.contracts[id] = contracts.Contract{
		ID:                 id,
		Title:              title,
		Description:        description,
		Status:             contracts.StatusActive,
		Creator:            op.Caller,
		CreatedAt:          op.Now,
		UpdatedAt:          op.Now,
		RequiredSignatures: requiredSignatures,
	}
	if _, err := r.versions.Record(id, initialContentHash, contracts.InitialVersionMetadata, op.Caller, op.Now); err != nil {
		// Hash length was validated above; Record cannot fail here.
		panic(fmt.Sprintf("registry: initial version write rejected: %v", err))
	}
	r.access.Grant(id, op.Caller, contracts.AccessAdmin)
	r.nextContractID++

	return id, nil
}

// GetContractDetails returns a read-only snapshot of the contract. Queries
// log no event.
func (r *Registry) GetContractDetails(id contracts.ContractID) (contracts.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	if !ok {
		return contracts.Contract{}, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	return c, nil
}

// AddSignature records the caller's signature on the contract, stamped with
// the current latest version number rather than any caller-supplied claim.
// Duplicate signers are rejected with ErrInvalidState; signers beyond the
// quorum threshold are still accepted.
func (r *Registry) AddSignature(ctx context.Context, op identity.Operation, id contracts.ContractID, signatureHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	latest, ok := r.versions.Latest(id)
	if !ok {
		return fmt.Errorf("%w: contract %d has no recorded version", contracts.ErrVersionNotFound, id)
	}
	if len(signatureHash) != contracts.SignatureHashSize {
		return fmt.Errorf("%w: signature hash must be exactly %d bytes, got %d",
			contracts.ErrInvalidInput, contracts.SignatureHashSize, len(signatureHash))
	}
	if c.Status != contracts.StatusActive {
		return fmt.Errorf("%w: contract %d is %s", contracts.ErrInvalidState, id, c.Status)
	}
	if r.signatures.Has(id, op.Caller) {
		return fmt.Errorf("%w: %s has already signed contract %d", contracts.ErrInvalidState, op.Caller, id)
	}

	signer := op.Caller
	version := latest
	if _, err := r.events.Append(ctx, eventlog.Record{
		ContractID:       id,
		Type:             contracts.EventSignatureAdded,
		Metadata:         fmt.Sprintf("signature on version %d", version),
		RelatedPrincipal: &signer,
		RelatedValue:     &version,
		Caller:           op.Caller,
		Now:              op.Now,
	}); err != nil {
		return err
	}

	if err := r.signatures.Add(id, op.Caller, signatureHash, latest, op.Now); err != nil {
		// Both failure modes were checked above.
		panic(fmt.Sprintf("registry: signature write rejected: %v", err))
	}
	return nil
}

// RecordVersion appends a new content-hash snapshot. The caller needs Write
// access or better, and the contract must be Active.
func (r *Registry) RecordVersion(ctx context.Context, op identity.Operation, id contracts.ContractID, contentHash []byte, metadata string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return 0, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	if !r.access.HasAtLeast(id, op.Caller, contracts.AccessWrite) {
		return 0, fmt.Errorf("%w: %s needs write access on contract %d", contracts.ErrNotAuthorized, op.Caller, id)
	}
	if c.Status != contracts.StatusActive {
		return 0, fmt.Errorf("%w: contract %d is %s", contracts.ErrInvalidState, id, c.Status)
	}
	if len(contentHash) != contracts.ContentHashSize {
		return 0, fmt.Errorf("%w: content hash must be exactly %d bytes, got %d",
			contracts.ErrInvalidInput, contracts.ContentHashSize, len(contentHash))
	}
	if metadata == "" {
		return 0, fmt.Errorf("%w: version metadata must not be empty", contracts.ErrInvalidInput)
	}
	if len(metadata) > contracts.MaxMetadataLength {
		return 0, fmt.Errorf("%w: version metadata exceeds %d characters", contracts.ErrInvalidInput, contracts.MaxMetadataLength)
	}

	latest, ok := r.versions.Latest(id)
	if !ok {
		return 0, fmt.Errorf("%w: contract %d has no recorded version", contracts.ErrVersionNotFound, id)
	}
	number := latest + 1

	if _, err := r.events.Append(ctx, eventlog.Record{
		ContractID:   id,
		Type:         contracts.EventVersionRecorded,
		Metadata:     metadata,
		RelatedValue: &number,
		Caller:       op.Caller,
		Now:          op.Now,
	}); err != nil {
		return 0, err
	}

	recorded, err := r.versions.Record(id, contentHash, metadata, op.Caller, op.Now)
	if err != nil {
		panic(fmt.Sprintf("registry: version write rejected: %v", err))
	}
	if recorded != number {
		panic(fmt.Sprintf("registry: version numbering drifted: recorded %d, expected %d", recorded, number))
	}

	c.UpdatedAt = op.Now
	r.contracts[id] = c
	return number, nil
}

// ArchiveContract transitions the contract to Archived. Archived is
// terminal: there is no un-archive operation.
func (r *Registry) ArchiveContract(ctx context.Context, op identity.Operation, id contracts.ContractID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	if !r.access.IsAdmin(id, op.Caller) {
		return fmt.Errorf("%w: %s is not an admin of contract %d", contracts.ErrNotAuthorized, op.Caller, id)
	}
	if c.Status != contracts.StatusActive {
		return fmt.Errorf("%w: contract %d is already %s", contracts.ErrInvalidState, id, c.Status)
	}

	if _, err := r.events.Append(ctx, eventlog.Record{
		ContractID: id,
		Type:       contracts.EventContractArchived,
		Metadata:   c.Title,
		Caller:     op.Caller,
		Now:        op.Now,
	}); err != nil {
		return err
	}

	c.Status = contracts.StatusArchived
	c.UpdatedAt = op.Now
	r.contracts[id] = c
	return nil
}

// GrantAccess writes (or overwrites) an access entry for the grantee. The
// caller must be an Admin of the contract.
func (r *Registry) GrantAccess(ctx context.Context, op identity.Operation, id contracts.ContractID, grantee contracts.Principal, level contracts.AccessLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contracts[id]; !ok {
		return fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	if !r.access.IsAdmin(id, op.Caller) {
		return fmt.Errorf("%w: %s is not an admin of contract %d", contracts.ErrNotAuthorized, op.Caller, id)
	}
	if grantee == "" {
		return fmt.Errorf("%w: grantee must not be empty", contracts.ErrInvalidInput)
	}
	if !level.Valid() {
		return fmt.Errorf("%w: unknown access level %d", contracts.ErrInvalidInput, level)
	}

	levelValue := uint64(level)
	if _, err := r.events.Append(ctx, eventlog.Record{
		ContractID:       id,
		Type:             contracts.EventAccessGranted,
		Metadata:         level.String(),
		RelatedPrincipal: &grantee,
		RelatedValue:     &levelValue,
		Caller:           op.Caller,
		Now:              op.Now,
	}); err != nil {
		return err
	}

	r.access.Grant(id, grantee, level)
	return nil
}

// RevokeAccess removes the grantee's access entry. The caller must be an
// Admin; the contract creator's entry cannot be revoked.
func (r *Registry) RevokeAccess(ctx context.Context, op identity.Operation, id contracts.ContractID, grantee contracts.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[id]
	if !ok {
		return fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	if !r.access.IsAdmin(id, op.Caller) {
		return fmt.Errorf("%w: %s is not an admin of contract %d", contracts.ErrNotAuthorized, op.Caller, id)
	}
	if grantee == c.Creator {
		return fmt.Errorf("%w: cannot revoke the creator's access on contract %d", contracts.ErrInvalidState, id)
	}
	if _, ok := r.access.Level(id, grantee); !ok {
		return fmt.Errorf("%w: no access entry for %s on contract %d", contracts.ErrNotFound, grantee, id)
	}

	if _, err := r.events.Append(ctx, eventlog.Record{
		ContractID:       id,
		Type:             contracts.EventAccessRevoked,
		RelatedPrincipal: &grantee,
		Caller:           op.Caller,
		Now:              op.Now,
	}); err != nil {
		return err
	}

	r.access.Revoke(id, grantee)
	return nil
}

// LatestVersion returns the contract's latest version number.
func (r *Registry) LatestVersion(id contracts.ContractID) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.contracts[id]; !ok {
		return 0, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	latest, ok := r.versions.Latest(id)
	if !ok {
		return 0, fmt.Errorf("%w: contract %d has no recorded version", contracts.ErrVersionNotFound, id)
	}
	return latest, nil
}

// ListVersions returns the contract's full version history.
func (r *Registry) ListVersions(id contracts.ContractID) ([]contracts.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.contracts[id]; !ok {
		return nil, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	return r.versions.List(id), nil
}

// ListSignatures returns the contract's signatures in signing order.
func (r *Registry) ListSignatures(id contracts.ContractID) ([]contracts.Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.contracts[id]; !ok {
		return nil, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	return r.signatures.List(id), nil
}

// SignatureCount returns the live signature count for the contract.
func (r *Registry) SignatureCount(id contracts.ContractID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.contracts[id]; !ok {
		return 0, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	return r.signatures.Count(id), nil
}

// QuorumReached reports whether the contract has collected its required
// number of signatures. Advisory: reaching quorum does not block signing.
func (r *Registry) QuorumReached(id contracts.ContractID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	if !ok {
		return false, fmt.Errorf("%w: contract %d", contracts.ErrNotFound, id)
	}
	return r.signatures.QuorumReached(id, c.RequiredSignatures), nil
}

// NextContractID returns the ID the next successful CreateContract will
// return.
func (r *Registry) NextContractID() contracts.ContractID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return contracts.ContractID(r.nextContractID)
}
