// Package interfaces defines core interfaces and types for the document
// registry, separating interface definitions from implementations.
//
// # Registry Types
//
//   - Fingerprint: 32-byte binary digest identifying a document
//   - DocumentInfo: owner, registration timestamp and revocation flag
//   - Verification: result of a verify query, including the zero-owner
//     sentinel for unknown fingerprints
//   - CallContext: caller identity and host timestamp of a transition
//
// # Transition Contracts
//
//   - State: durable key-value view a transition reads and writes
//   - EventSink: receives the notifications emitted by a transition
//   - Event: structured notification with indexed (filterable) fields
//
// # Storage Interfaces
//
// StorageBackend: content-addressed storage used to archive registry
// snapshots (file, S3, IPFS, Vault).
//
// StorageBackendFactory: creates storage backends from URI strings and
// aggregates several into one redundant backend.
//
// # Error Types
//
// Registry precondition failures:
//
//   - ErrInvalidHashLength
//   - ErrDuplicateDocument
//   - ErrNotRegistered
//   - ErrUnauthorized
//   - ErrAlreadyRevoked
//
// Storage failures:
//
//   - ErrContentNotFound
//   - ErrBackendUnavailable
//   - ErrInvalidLocationURI
package interfaces
