package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/document-registry/interfaces"
)

// Method names accepted by Submit. Receipts and signatures carry them
// verbatim.
const (
	MethodRegister = "registerDocument"
	MethodRevoke   = "revokeDocument"
)

// Status is the outcome of a transition.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Host-owned key space, disjoint from the registry namespaces.
var (
	receiptPrefix = []byte("receipts")
	heightKey     = []byte("ledgerHeight")
	lastTimeKey   = []byte("ledgerTime")
)

// Transaction is one state-changing request.
type Transaction struct {
	Caller      common.Address
	Method      string
	Fingerprint []byte
}

// Receipt records the outcome of an applied transaction. Failed
// transactions get a receipt too, but carry no events and changed no
// registry state.
type Receipt struct {
	Seq         uint64             `json:"seq"`
	TxHash      common.Hash        `json:"tx_hash"`
	Caller      common.Address     `json:"caller"`
	Method      string             `json:"method"`
	Fingerprint hexutil.Bytes      `json:"fingerprint"`
	Timestamp   uint64             `json:"timestamp"`
	Status      Status             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Events      []interfaces.Event `json:"events"`
}

// LoggedEvent is a committed event together with its position in the ledger.
type LoggedEvent struct {
	interfaces.Event
	Seq       uint64        `json:"seq"`
	Index     int           `json:"index"`
	TxHash    common.Hash   `json:"tx_hash"`
	Timestamp uint64        `json:"timestamp"`
	Topics    []common.Hash `json:"topics"`
}

// loggedEvents flattens the events of a receipt.
func (r *Receipt) loggedEvents() []LoggedEvent {
	out := make([]LoggedEvent, 0, len(r.Events))
	for i, ev := range r.Events {
		out = append(out, LoggedEvent{
			Event:     ev,
			Seq:       r.Seq,
			Index:     i,
			TxHash:    r.TxHash,
			Timestamp: r.Timestamp,
			Topics:    ev.Topics(),
		})
	}
	return out
}

type txEnvelope struct {
	Seq         uint64
	Caller      common.Address
	Method      string
	Fingerprint []byte
	Timestamp   uint64
}

// computeTxHash derives a stable identifier for an applied transaction.
func computeTxHash(seq uint64, tx Transaction, timestamp uint64) (common.Hash, error) {
	raw, err := rlp.EncodeToBytes(&txEnvelope{
		Seq:         seq,
		Caller:      tx.Caller,
		Method:      tx.Method,
		Fingerprint: tx.Fingerprint,
		Timestamp:   timestamp,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return crypto.Keccak256Hash(raw), nil
}

func receiptKey(seq uint64) []byte {
	key := make([]byte, len(receiptPrefix)+8)
	copy(key, receiptPrefix)
	binary.BigEndian.PutUint64(key[len(receiptPrefix):], seq)
	return key
}

func encodeReceipt(r *Receipt) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt %d: %w", r.Seq, err)
	}
	return raw, nil
}

func decodeReceipt(raw []byte) (*Receipt, error) {
	var r Receipt
	if err := rlp.DecodeBytes(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &r, nil
}

func encodeUint64(v uint64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, v)
	return raw
}

func decodeUint64(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, fmt.Errorf("invalid uint64 encoding: %d bytes", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// ReceiptFilter selects receipts. Zero values do not filter.
type ReceiptFilter struct {
	// FromSeq is the first sequence number to return.
	FromSeq uint64
	// ToSeq is the last sequence number to return; 0 means no upper bound.
	ToSeq  uint64
	Caller *common.Address
	Method string
	Status Status
	// Limit caps the number of results; 0 means no limit.
	Limit int
}

func (f *ReceiptFilter) matches(r *Receipt) bool {
	if f.Caller != nil && r.Caller != *f.Caller {
		return false
	}
	if f.Method != "" && r.Method != f.Method {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// EventFilter selects committed events by kind and indexed fields.
type EventFilter struct {
	FromSeq     uint64
	Kind        interfaces.EventKind
	Owner       *common.Address
	Fingerprint *interfaces.Fingerprint
	Limit       int
}

// Matches reports whether ev passes the filter, ignoring FromSeq and Limit.
func (f *EventFilter) Matches(ev interfaces.Event) bool {
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if f.Owner != nil {
		owner, ok := ev.Owner()
		if !ok || owner != *f.Owner {
			return false
		}
	}
	if f.Fingerprint != nil {
		fp, ok := ev.Fingerprint()
		if !ok || fp != *f.Fingerprint {
			return false
		}
	}
	return true
}

// SeedTime records ts as the latest transition time, so transitions applied
// after a snapshot import are never stamped earlier than imported records.
func SeedTime(w ethdb.KeyValueWriter, ts uint64) error {
	return w.Put(lastTimeKey, encodeUint64(ts))
}
