// Package snapshot exports the registry state to content-addressed archive
// storage and restores it into an empty database.
//
// A snapshot holds every document record and the document counter. It does
// not hold receipts: a restored ledger starts a fresh receipt history at
// height zero, with its clock seeded from the newest imported record.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
	"github.com/ruteri/document-registry/registry"
)

// FormatVersion is the snapshot encoding version.
const FormatVersion = 1

var (
	ErrCorruptSnapshot    = errors.New("corrupt snapshot")
	ErrDatabaseNotEmpty   = errors.New("database is not empty")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// Document is one exported registry record.
type Document struct {
	Fingerprint string         `json:"fingerprint"`
	Owner       common.Address `json:"owner"`
	Timestamp   uint64         `json:"timestamp"`
	IsRevoked   bool           `json:"is_revoked"`
}

// Snapshot is the exported registry state. Documents are ordered by
// fingerprint, which makes the encoding of a given state deterministic.
type Snapshot struct {
	Version        int        `json:"version"`
	Height         uint64     `json:"height"`
	TotalDocuments uint64     `json:"total_documents"`
	Documents      []Document `json:"documents"`
}

// Source is the committed state a snapshot is exported from.
type Source interface {
	ExportState(fn func(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error) (height uint64, total uint64, err error)
}

// Export reads every document record from src.
func Export(src Source) (*Snapshot, error) {
	documents := []Document{}
	height, total, err := src.ExportState(func(fp interfaces.Fingerprint, info interfaces.DocumentInfo) error {
		documents = append(documents, Document{
			Fingerprint: fp.String(),
			Owner:       info.Owner,
			Timestamp:   info.Timestamp,
			IsRevoked:   info.IsRevoked,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export documents: %w", err)
	}

	snap := &Snapshot{
		Version:        FormatVersion,
		Height:         height,
		TotalDocuments: total,
		Documents:      documents,
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Validate checks the snapshot's internal consistency: every fingerprint
// is a valid 32-byte hex digest, fingerprints are strictly ascending, and
// the counter equals the number of records.
func (s *Snapshot) Validate() error {
	if s.Version != FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.Version)
	}
	if uint64(len(s.Documents)) != s.TotalDocuments {
		return fmt.Errorf("%w: counter is %d but %d documents are present", ErrCorruptSnapshot, s.TotalDocuments, len(s.Documents))
	}

	var prev interfaces.Fingerprint
	for i, doc := range s.Documents {
		fp, err := interfaces.NewFingerprintFromHex(doc.Fingerprint)
		if err != nil {
			return fmt.Errorf("%w: document %d: %v", ErrCorruptSnapshot, i, err)
		}
		if i > 0 && bytes.Compare(prev[:], fp[:]) >= 0 {
			return fmt.Errorf("%w: documents not in ascending fingerprint order at %d", ErrCorruptSnapshot, i)
		}
		prev = fp
	}
	return nil
}

// Encode returns the canonical JSON encoding.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses and validates an encoded snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Archive stores the snapshot in backend and returns its content ID.
func Archive(ctx context.Context, backend interfaces.StorageBackend, snap *Snapshot) (interfaces.ContentID, error) {
	data, err := snap.Encode()
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	id, err := backend.Store(ctx, data, interfaces.SnapshotType)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("failed to archive snapshot: %w", err)
	}
	if id != interfaces.ComputeID(data) {
		return interfaces.ContentID{}, fmt.Errorf("backend %s returned unexpected content ID %s", backend.Name(), id)
	}
	return id, nil
}

// Fetch retrieves the snapshot id from backend and checks the content
// against its ID before decoding it.
func Fetch(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID) (*Snapshot, error) {
	data, err := backend.Fetch(ctx, id, interfaces.SnapshotType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot %s: %w", id, err)
	}
	if got := interfaces.ComputeID(data); got != id {
		return nil, fmt.Errorf("%w: content hash %s does not match %s", ErrCorruptSnapshot, got, id)
	}
	return Decode(data)
}

// Import writes the snapshot's records, owner index and counter into db
// in one batch. db must be empty.
func Import(db ledger.Database, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	empty, err := ledger.IsEmpty(db)
	if err != nil {
		return err
	}
	if !empty {
		return ErrDatabaseNotEmpty
	}

	journal := ledger.NewJournal(db)
	documents := registry.NewDocumentStore(journal)
	owners := registry.NewOwnerIndex(journal)
	counter := registry.NewDocumentCounter(journal)

	// Owner lists are rebuilt in registration order.
	ordered := make([]Document, len(snap.Documents))
	copy(ordered, snap.Documents)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	var lastTime uint64
	for _, doc := range ordered {
		fp, err := interfaces.NewFingerprintFromHex(doc.Fingerprint)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		info := interfaces.DocumentInfo{
			Owner:     doc.Owner,
			Timestamp: doc.Timestamp,
			IsRevoked: doc.IsRevoked,
		}
		if err := documents.Put(fp, info); err != nil {
			return err
		}
		if err := owners.Add(doc.Owner, fp); err != nil {
			return err
		}
		if doc.Timestamp > lastTime {
			lastTime = doc.Timestamp
		}
	}
	if err := counter.Set(snap.TotalDocuments); err != nil {
		return err
	}

	batch := db.NewBatch()
	if err := journal.Flush(batch); err != nil {
		return err
	}
	if err := ledger.SeedTime(batch, lastTime); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write imported state: %w", err)
	}
	return nil
}

// Restore fetches snapshot id from backend and imports it into db.
func Restore(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID, db ledger.Database) (*Snapshot, error) {
	snap, err := Fetch(ctx, backend, id)
	if err != nil {
		return nil, err
	}
	if err := Import(db, snap); err != nil {
		return nil, err
	}
	return snap, nil
}
