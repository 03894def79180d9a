package interfaces

import "errors"

// Precondition failures of registry transitions. Each aborts the whole
// transition without any state change.
var (
	// ErrInvalidHashLength is returned when a fingerprint is not exactly 32 bytes.
	ErrInvalidHashLength = errors.New("invalid hash: must be a SHA-256 hash (32 bytes)")

	// ErrDuplicateDocument is returned when registering a fingerprint that already exists.
	ErrDuplicateDocument = errors.New("document is already registered")

	// ErrNotRegistered is returned when revoking an unknown fingerprint.
	ErrNotRegistered = errors.New("document is not registered")

	// ErrUnauthorized is returned when someone other than the owner revokes.
	ErrUnauthorized = errors.New("only the owner can revoke the document")

	// ErrAlreadyRevoked is returned when revoking a revoked document.
	ErrAlreadyRevoked = errors.New("document is already revoked")
)

// IsPreconditionError reports whether err is one of the registry's
// validation failures, as opposed to an infrastructure fault.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrInvalidHashLength) ||
		errors.Is(err, ErrDuplicateDocument) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAlreadyRevoked)
}
