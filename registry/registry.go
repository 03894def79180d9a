package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/document-registry/interfaces"
)

// Registry implements the register / verify / revoke transitions on top of
// the document store, owner index and document counter.
//
// A Registry is bound to the state of a single transition. It performs no
// locking: the host applies transitions one at a time and discards the
// buffered writes of any transition that returns an error.
type Registry struct {
	documents *DocumentStore
	owners    *OwnerIndex
	counter   *DocumentCounter
	events    *Emitter
}

// New creates a registry over state, emitting notifications to sink.
// sink may be nil for read-only use.
func New(state interfaces.State, sink interfaces.EventSink) *Registry {
	return &Registry{
		documents: NewDocumentStore(state),
		owners:    NewOwnerIndex(state),
		counter:   NewDocumentCounter(state),
		events:    NewEmitter(sink),
	}
}

// Register records fingerprint as owned by the caller at the call timestamp.
//
// Fails with ErrInvalidHashLength unless fingerprint is exactly 32 bytes,
// and with ErrDuplicateDocument if it is already registered. All checks run
// before the first write.
func (r *Registry) Register(call interfaces.CallContext, fingerprint []byte) error {
	fp, err := interfaces.NewFingerprintFromBytes(fingerprint)
	if err != nil {
		return err
	}

	exists, err := r.documents.Exists(fp)
	if err != nil {
		return err
	}
	if exists {
		return interfaces.ErrDuplicateDocument
	}

	info := interfaces.DocumentInfo{
		Owner:     call.Caller,
		Timestamp: call.Timestamp,
		IsRevoked: false,
	}
	if err := r.documents.Put(fp, info); err != nil {
		return err
	}
	if err := r.owners.Add(call.Caller, fp); err != nil {
		return err
	}
	if err := r.counter.Increment(); err != nil {
		return err
	}

	r.events.DocumentRegistered(call.Caller, fp, call.Timestamp)
	return nil
}

// Verify returns the record of fingerprint. Unknown fingerprints, including
// ones of the wrong length, yield Found=false with the zero owner.
func (r *Registry) Verify(fingerprint []byte) (interfaces.Verification, error) {
	fp, err := interfaces.NewFingerprintFromBytes(fingerprint)
	if err != nil {
		return interfaces.Verification{}, nil
	}

	exists, err := r.documents.Exists(fp)
	if err != nil {
		return interfaces.Verification{}, err
	}
	if !exists {
		return interfaces.Verification{}, nil
	}

	info, err := r.documents.Get(fp)
	if err != nil {
		return interfaces.Verification{}, err
	}
	return interfaces.Verification{
		Found:     true,
		Owner:     info.Owner,
		Timestamp: info.Timestamp,
		IsRevoked: info.IsRevoked,
	}, nil
}

// Revoke marks fingerprint as no longer attested.
//
// Preconditions, in order: the fingerprint is registered (ErrNotRegistered),
// the caller is its owner (ErrUnauthorized), it is not revoked yet
// (ErrAlreadyRevoked).
func (r *Registry) Revoke(call interfaces.CallContext, fingerprint []byte) error {
	fp, err := interfaces.NewFingerprintFromBytes(fingerprint)
	if err != nil {
		// A fingerprint of the wrong length can never have been registered.
		return interfaces.ErrNotRegistered
	}

	exists, err := r.documents.Exists(fp)
	if err != nil {
		return err
	}
	if !exists {
		return interfaces.ErrNotRegistered
	}

	info, err := r.documents.Get(fp)
	if err != nil {
		return err
	}
	if info.Owner != call.Caller {
		return interfaces.ErrUnauthorized
	}
	if info.IsRevoked {
		return interfaces.ErrAlreadyRevoked
	}

	info.IsRevoked = true
	if err := r.documents.Put(fp, info); err != nil {
		return err
	}

	r.events.DocumentRevoked(info.Owner, fp)
	return nil
}

// ListByOwner returns every fingerprint owner has registered, revoked or not.
func (r *Registry) ListByOwner(owner common.Address) ([]interfaces.Fingerprint, error) {
	return r.owners.List(owner)
}

// TotalCount returns the number of successful registrations.
func (r *Registry) TotalCount() (uint64, error) {
	return r.counter.Value()
}
