package interfaces

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// FingerprintLength is the only accepted fingerprint size: a raw SHA-256 digest.
const FingerprintLength = 32

// Fingerprint is a 32-byte binary digest identifying a document's content.
type Fingerprint [FingerprintLength]byte

// NewFingerprintFromBytes converts raw bytes into a fingerprint.
// Anything other than exactly 32 bytes fails with ErrInvalidHashLength.
func NewFingerprintFromBytes(source []byte) (Fingerprint, error) {
	if len(source) != FingerprintLength {
		return Fingerprint{}, ErrInvalidHashLength
	}

	var fp Fingerprint
	copy(fp[:], source)
	return fp, nil
}

// NewFingerprintFromHex parses a 64-character hex string, with or without 0x prefix.
func NewFingerprintFromHex(source string) (Fingerprint, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 2*FingerprintLength {
		return Fingerprint{}, fmt.Errorf("%w: hex string must be 64 characters", ErrInvalidHashLength)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("invalid hex format: %w", err)
	}
	return NewFingerprintFromBytes(raw)
}

// ComputeFingerprint hashes document content. The registry itself never
// hashes; this is for clients preparing a registration.
func ComputeFingerprint(data []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(data))
}

// String returns the 0x-prefixed hex representation.
func (fp Fingerprint) String() string {
	return "0x" + hex.EncodeToString(fp[:])
}

// Bytes returns the raw 32-byte digest.
func (fp Fingerprint) Bytes() []byte {
	return fp[:]
}

// DocumentInfo is the record kept for every registered fingerprint.
// Owner and Timestamp never change after creation; IsRevoked only moves
// from false to true.
type DocumentInfo struct {
	Owner     common.Address
	Timestamp uint64
	IsRevoked bool
}

// Verification is the result of a verify query.
//
// For an unknown fingerprint Found is false and the remaining fields hold
// their zero values, including the all-zero owner address.
type Verification struct {
	Found     bool           `json:"found"`
	Owner     common.Address `json:"owner"`
	Timestamp uint64         `json:"timestamp"`
	IsRevoked bool           `json:"is_revoked"`
}

// CallContext carries what the execution host supplies to a transition.
type CallContext struct {
	// Caller is the identity initiating the call.
	Caller common.Address

	// Timestamp is the host time in seconds, non-decreasing across calls.
	Timestamp uint64
}
