package contracts

import "errors"

// Error taxonomy. Every operation failure wraps exactly one of these so
// callers can classify with errors.Is.
var (
	// ErrNotAuthorized means the caller lacks the required access level.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidInput means an argument is malformed or out of range.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the referenced contract does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionNotFound means a contract exists with no recorded version.
	// Creation always writes version 0, so hitting this indicates an
	// internal consistency fault rather than bad caller input.
	ErrVersionNotFound = errors.New("version not found")

	// ErrMaxSignaturesReached is reserved for a hard signature ceiling.
	// The base flow never returns it: quorum is advisory and late signers
	// are accepted.
	ErrMaxSignaturesReached = errors.New("maximum signatures reached")

	// ErrInvalidState means the operation is not valid for the contract's
	// current status, or the signer already holds a signature row.
	ErrInvalidState = errors.New("invalid state")

	// ErrEventFailed means the audit append could not be completed. It is
	// fatal to the enclosing operation: all staged mutations are discarded
	// so no state change exists without its audit record.
	ErrEventFailed = errors.New("event append failed")
)
