package interfaces

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EventKind names a notification emitted by a transition.
type EventKind string

const (
	// DocumentRegistered is emitted by a successful registration.
	DocumentRegistered EventKind = "documentRegistered"
	// DocumentRevoked is emitted by a successful revocation.
	DocumentRevoked EventKind = "documentRevoked"
)

// Field names used by the two event kinds.
const (
	FieldOwner       = "owner"
	FieldFingerprint = "fingerprint"
	FieldTimestamp   = "timestamp"
)

var eventSignatures = map[EventKind]string{
	DocumentRegistered: "documentRegistered(address,bytes32,uint64)",
	DocumentRevoked:    "documentRevoked(address,bytes32)",
}

// EventField is a named, binary-encoded event value.
type EventField struct {
	Name  string        `json:"name"`
	Value hexutil.Bytes `json:"value"`
}

// Event is an append-only structured notification attached to the
// transition that produced it. Indexed fields are the ones external
// observers can filter on.
type Event struct {
	Kind    EventKind    `json:"kind"`
	Indexed []EventField `json:"indexed"`
	Data    []EventField `json:"data"`
}

// NewDocumentRegisteredEvent builds the registration notification.
func NewDocumentRegisteredEvent(owner common.Address, fp Fingerprint, timestamp uint64) Event {
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, timestamp)
	return Event{
		Kind: DocumentRegistered,
		Indexed: []EventField{
			{Name: FieldOwner, Value: owner.Bytes()},
			{Name: FieldFingerprint, Value: fp.Bytes()},
		},
		Data: []EventField{
			{Name: FieldTimestamp, Value: ts},
		},
	}
}

// NewDocumentRevokedEvent builds the revocation notification.
func NewDocumentRevokedEvent(owner common.Address, fp Fingerprint) Event {
	return Event{
		Kind: DocumentRevoked,
		Indexed: []EventField{
			{Name: FieldOwner, Value: owner.Bytes()},
			{Name: FieldFingerprint, Value: fp.Bytes()},
		},
	}
}

// Topics returns the filter topics in the usual log layout: the keccak
// hash of the event signature followed by one word per indexed field.
func (e Event) Topics() []common.Hash {
	topics := make([]common.Hash, 0, len(e.Indexed)+1)
	topics = append(topics, crypto.Keccak256Hash([]byte(eventSignatures[e.Kind])))
	for _, f := range e.Indexed {
		topics = append(topics, common.BytesToHash(f.Value))
	}
	return topics
}

// Field looks up a field by name among indexed and data fields.
func (e Event) Field(name string) ([]byte, bool) {
	for _, f := range e.Indexed {
		if f.Name == name {
			return f.Value, true
		}
	}
	for _, f := range e.Data {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Owner returns the owner field.
func (e Event) Owner() (common.Address, bool) {
	v, ok := e.Field(FieldOwner)
	if !ok || len(v) != common.AddressLength {
		return common.Address{}, false
	}
	return common.BytesToAddress(v), true
}

// Fingerprint returns the fingerprint field.
func (e Event) Fingerprint() (Fingerprint, bool) {
	v, ok := e.Field(FieldFingerprint)
	if !ok {
		return Fingerprint{}, false
	}
	fp, err := NewFingerprintFromBytes(v)
	return fp, err == nil
}

// Timestamp returns the timestamp field of a registration event.
func (e Event) Timestamp() (uint64, bool) {
	v, ok := e.Field(FieldTimestamp)
	if !ok || len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}
