package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/document-registry/interfaces"
)

// Fixed namespace keys of the three persistent stores.
var (
	DocumentRegistryPrefix = []byte("documentRegistry")
	UserDocumentsPrefix    = []byte("userDocuments")
	TotalDocumentsKey      = []byte("totalDocuments")
)

// DocumentKey returns the state key of a fingerprint's record.
func DocumentKey(fp interfaces.Fingerprint) []byte {
	return append(append([]byte{}, DocumentRegistryPrefix...), fp[:]...)
}

// OwnerKey returns the state key holding the size of an identity's
// fingerprint set. Members live under the same prefix.
func OwnerKey(owner common.Address) []byte {
	return append(append([]byte{}, UserDocumentsPrefix...), owner[:]...)
}

// Owner set layout under OwnerKey(owner):
//
//	'm' + fingerprint -> insertion position (membership)
//	'i' + position    -> fingerprint
const (
	ownerMemberTag = 'm'
	ownerEntryTag  = 'i'
)

// OwnerMemberKey returns the membership key of fp in owner's set.
func OwnerMemberKey(owner common.Address, fp interfaces.Fingerprint) []byte {
	key := append(OwnerKey(owner), ownerMemberTag)
	return append(key, fp[:]...)
}

func ownerEntryKey(owner common.Address, pos uint64) []byte {
	key := append(OwnerKey(owner), ownerEntryTag)
	return binary.BigEndian.AppendUint64(key, pos)
}

// DocumentStore maps fingerprints to document records.
type DocumentStore struct {
	state interfaces.State
}

// NewDocumentStore creates a document store over the given state.
func NewDocumentStore(state interfaces.State) *DocumentStore {
	return &DocumentStore{state: state}
}

// Exists reports whether a record is stored for fp.
func (s *DocumentStore) Exists(fp interfaces.Fingerprint) (bool, error) {
	ok, err := s.state.Has(DocumentKey(fp))
	if err != nil {
		return false, fmt.Errorf("failed to check document %s: %w", fp, err)
	}
	return ok, nil
}

// Get returns the record for fp. Only valid when Exists reported true.
func (s *DocumentStore) Get(fp interfaces.Fingerprint) (interfaces.DocumentInfo, error) {
	raw, err := s.state.Get(DocumentKey(fp))
	if err != nil {
		return interfaces.DocumentInfo{}, fmt.Errorf("failed to read document %s: %w", fp, err)
	}
	return DecodeDocumentInfo(raw)
}

// Put inserts or overwrites the record for fp.
func (s *DocumentStore) Put(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error {
	raw, err := EncodeDocumentInfo(info)
	if err != nil {
		return err
	}
	if err := s.state.Put(DocumentKey(fp), raw); err != nil {
		return fmt.Errorf("failed to write document %s: %w", fp, err)
	}
	return nil
}

// EncodeDocumentInfo serializes a record with RLP.
func EncodeDocumentInfo(info interfaces.DocumentInfo) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(&info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document info: %w", err)
	}
	return raw, nil
}

// DecodeDocumentInfo parses an RLP-encoded record.
func DecodeDocumentInfo(raw []byte) (interfaces.DocumentInfo, error) {
	var info interfaces.DocumentInfo
	if err := rlp.DecodeBytes(raw, &info); err != nil {
		return interfaces.DocumentInfo{}, fmt.Errorf("failed to decode document info: %w", err)
	}
	return info, nil
}

// OwnerIndex keeps, per identity, the set of fingerprints it ever registered.
// Every member is stored under its own key, so adding one costs the same
// regardless of the set size. Entries are never removed.
type OwnerIndex struct {
	state interfaces.State
}

// NewOwnerIndex creates an owner index over the given state.
func NewOwnerIndex(state interfaces.State) *OwnerIndex {
	return &OwnerIndex{state: state}
}

// Add records fp under owner. Adding a present fingerprint is a no-op.
func (idx *OwnerIndex) Add(owner common.Address, fp interfaces.Fingerprint) error {
	member := OwnerMemberKey(owner, fp)
	ok, err := idx.state.Has(member)
	if err != nil {
		return fmt.Errorf("failed to check owner index for %s: %w", owner.Hex(), err)
	}
	if ok {
		return nil
	}

	size, err := idx.Len(owner)
	if err != nil {
		return err
	}
	if err := idx.state.Put(ownerEntryKey(owner, size), fp[:]); err != nil {
		return fmt.Errorf("failed to write owner index for %s: %w", owner.Hex(), err)
	}
	if err := idx.state.Put(member, encodeCounter(size)); err != nil {
		return fmt.Errorf("failed to write owner index for %s: %w", owner.Hex(), err)
	}
	if err := idx.state.Put(OwnerKey(owner), encodeCounter(size+1)); err != nil {
		return fmt.Errorf("failed to write owner index for %s: %w", owner.Hex(), err)
	}
	return nil
}

// Contains reports whether fp is in owner's set.
func (idx *OwnerIndex) Contains(owner common.Address, fp interfaces.Fingerprint) (bool, error) {
	ok, err := idx.state.Has(OwnerMemberKey(owner, fp))
	if err != nil {
		return false, fmt.Errorf("failed to check owner index for %s: %w", owner.Hex(), err)
	}
	return ok, nil
}

// Len returns the size of owner's set.
func (idx *OwnerIndex) Len(owner common.Address) (uint64, error) {
	key := OwnerKey(owner)
	ok, err := idx.state.Has(key)
	if err != nil {
		return 0, fmt.Errorf("failed to check owner index for %s: %w", owner.Hex(), err)
	}
	if !ok {
		return 0, nil
	}
	raw, err := idx.state.Get(key)
	if err != nil {
		return 0, fmt.Errorf("failed to read owner index for %s: %w", owner.Hex(), err)
	}
	size, err := decodeCounter(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt owner index for %s: %w", owner.Hex(), err)
	}
	return size, nil
}

// List returns the fingerprints registered by owner in registration order.
func (idx *OwnerIndex) List(owner common.Address) ([]interfaces.Fingerprint, error) {
	size, err := idx.Len(owner)
	if err != nil {
		return nil, err
	}

	fps := make([]interfaces.Fingerprint, 0, size)
	for pos := uint64(0); pos < size; pos++ {
		raw, err := idx.state.Get(ownerEntryKey(owner, pos))
		if err != nil {
			return nil, fmt.Errorf("failed to read owner index entry %d for %s: %w", pos, owner.Hex(), err)
		}
		fp, err := interfaces.NewFingerprintFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt owner index entry %d for %s: %w", pos, owner.Hex(), err)
		}
		fps = append(fps, fp)
	}
	return fps, nil
}

// DocumentCounter is the count of successful registrations.
type DocumentCounter struct {
	state interfaces.State
}

// NewDocumentCounter creates a counter over the given state.
func NewDocumentCounter(state interfaces.State) *DocumentCounter {
	return &DocumentCounter{state: state}
}

// Value returns the current count; an unset counter reads as zero.
func (c *DocumentCounter) Value() (uint64, error) {
	ok, err := c.state.Has(TotalDocumentsKey)
	if err != nil {
		return 0, fmt.Errorf("failed to check document counter: %w", err)
	}
	if !ok {
		return 0, nil
	}

	raw, err := c.state.Get(TotalDocumentsKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read document counter: %w", err)
	}
	total, err := decodeCounter(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt document counter: %w", err)
	}
	return total, nil
}

// Increment adds exactly one to the counter.
func (c *DocumentCounter) Increment() error {
	total, err := c.Value()
	if err != nil {
		return err
	}
	return c.Set(total + 1)
}

// Set overwrites the counter. Only used when importing a snapshot.
func (c *DocumentCounter) Set(total uint64) error {
	if err := c.state.Put(TotalDocumentsKey, encodeCounter(total)); err != nil {
		return fmt.Errorf("failed to write document counter: %w", err)
	}
	return nil
}

func encodeCounter(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeCounter(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, fmt.Errorf("%d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}
