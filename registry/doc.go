// Package registry implements the document registry state machine: the
// register, verify and revoke transitions and the three persistent stores
// they manipulate.
//
// # Stores
//
// All state lives in a key-value view (interfaces.State) under three fixed
// namespaces:
//
//   - documentRegistry: fingerprint -> RLP-encoded DocumentInfo
//   - userDocuments:    identity    -> RLP-encoded list of fingerprints
//   - totalDocuments:   single big-endian uint64 counter cell
//
// Records are created once and never deleted. The owner index is add-only
// and the counter is incremented once per successful registration.
//
// # Transitions
//
// Each fingerprint moves Unregistered -> Active -> Revoked. Register fails
// with ErrInvalidHashLength or ErrDuplicateDocument; Revoke fails with
// ErrNotRegistered, ErrUnauthorized or ErrAlreadyRevoked, checked in that
// order. Every precondition is evaluated before the first write, and the
// execution host discards the buffered writes of a failed transition, so
// a failure never leaves partial state behind.
//
// # Events
//
// Successful transitions emit documentRegistered(owner*, fingerprint*,
// timestamp) and documentRevoked(owner*, fingerprint*) to the transition's
// interfaces.EventSink. Events are write-only from the registry's point of
// view; observers read them from the host.
//
// # Concurrency
//
// A Registry performs no locking. The host (see package ledger) applies
// transitions strictly one at a time.
package registry
