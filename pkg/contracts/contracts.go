// Package contracts defines the domain model of the Covenant engine:
// contract records, their version history, collected signatures, access
// entries, and the audit events that chronicle every state change.
package contracts

// ContractID identifies a contract. IDs are allocated sequentially starting
// at 0 and are never reused.
type ContractID uint64

// Principal is an opaque caller identity supplied by the identity layer.
type Principal string

// LogicalTime is a monotonic non-decreasing logical timestamp supplied
// per-operation by the identity layer.
type LogicalTime uint64

// Size and range constraints for contract fields.
const (
	ContentHashSize   = 32
	SignatureHashSize = 64

	MinRequiredSignatures = 1
	MaxRequiredSignatures = 8

	MaxTitleLength       = 256
	MaxDescriptionLength = 4096
	MaxMetadataLength    = 1024
)

// InitialVersionMetadata is the metadata recorded on version 0 of every
// contract.
const InitialVersionMetadata = "Initial version"

// Status represents the lifecycle state of a contract.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// Contract is the top-level agreement record. Status and UpdatedAt are the
// only fields that change after creation; the Active -> Archived transition
// is one-directional.
type Contract struct {
	ID                 ContractID  `json:"id"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Status             Status      `json:"status"`
	Creator            Principal   `json:"creator"`
	CreatedAt          LogicalTime `json:"created_at"`
	UpdatedAt          LogicalTime `json:"updated_at"`
	RequiredSignatures uint8       `json:"required_signatures"`
}

// Version is an immutable content-hash snapshot of a contract. Numbers are
// zero-based and gapless per contract.
type Version struct {
	ContractID  ContractID  `json:"contract_id"`
	Number      uint64      `json:"number"`
	ContentHash []byte      `json:"content_hash"`
	Author      Principal   `json:"author"`
	CreatedAt   LogicalTime `json:"created_at"`
	Metadata    string      `json:"metadata"`
}

// Signature is an immutable signature row. At most one exists per
// (contract, signer) pair. VersionNumber is the latest version at the time
// of signing, never a caller-supplied claim.
type Signature struct {
	ContractID    ContractID  `json:"contract_id"`
	Signer        Principal   `json:"signer"`
	SignedAt      LogicalTime `json:"signed_at"`
	SignatureHash []byte      `json:"signature_hash"`
	VersionNumber uint64      `json:"version_number"`
}

// AccessLevel is an ordered permission tier. Higher values carry more
// privilege, but stored levels are checked explicitly, not implied.
type AccessLevel uint8

const (
	AccessRead  AccessLevel = 0
	AccessWrite AccessLevel = 1
	AccessAdmin AccessLevel = 2
)

// String returns the canonical name of the level.
func (l AccessLevel) String() string {
	switch l {
	case AccessRead:
		return "READ"
	case AccessWrite:
		return "WRITE"
	case AccessAdmin:
		return "ADMIN"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the level is one of the three defined tiers.
func (l AccessLevel) Valid() bool {
	return l <= AccessAdmin
}

// AccessEntry grants a principal an access level on a contract.
type AccessEntry struct {
	ContractID ContractID  `json:"contract_id"`
	Principal  Principal   `json:"principal"`
	Level      AccessLevel `json:"level"`
}

// EventType tags an audit event with the operation that produced it.
type EventType string

const (
	EventContractCreated  EventType = "contract_created"
	EventContractArchived EventType = "contract_archived"
	EventVersionRecorded  EventType = "version_recorded"
	EventSignatureAdded   EventType = "signature_added"
	EventAccessGranted    EventType = "access_granted"
	EventAccessRevoked    EventType = "access_revoked"
)

// Event is an immutable audit record. IDs come from a single global
// sequence shared across all contracts, starting at 0.
type Event struct {
	ID         uint64      `json:"id"`
	ContractID ContractID  `json:"contract_id"`
	Type       EventType   `json:"type"`
	CreatedAt  LogicalTime `json:"created_at"`
	CreatedBy  Principal   `json:"created_by"`
	Metadata   string      `json:"metadata"`

	// RelatedPrincipal and RelatedValue carry optional operation context,
	// e.g. the grantee of an access grant or the version number signed.
	RelatedPrincipal *Principal `json:"related_principal,omitempty"`
	RelatedValue     *uint64    `json:"related_value,omitempty"`

	// EntryHash and PrevHash chain the event to its predecessor in the
	// global log.
	EntryHash string `json:"entry_hash"`
	PrevHash  string `json:"prev_hash"`
}
