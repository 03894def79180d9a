package api

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
)

// SignatureHeader carries the caller's signature over a state-changing request.
const SignatureHeader = "X-Registry-Signature"

// DocumentRequest is the body of register and revoke requests.
// Fingerprint is passed through to the registry as-is, so a wrong length
// is reported by the registry rather than rejected while decoding.
type DocumentRequest struct {
	Fingerprint hexutil.Bytes `json:"fingerprint"`
}

// SubmitResponse is returned by register and revoke. Failed transitions
// still carry their receipt together with the error message.
type SubmitResponse struct {
	Receipt *ledger.Receipt `json:"receipt,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DocumentResponse is the verification tuple of a single fingerprint.
type DocumentResponse struct {
	Fingerprint string `json:"fingerprint"`
	interfaces.Verification
}

// OwnerDocumentsResponse lists every fingerprint an identity registered,
// including revoked ones.
type OwnerDocumentsResponse struct {
	Owner        common.Address `json:"owner"`
	Fingerprints []string       `json:"fingerprints"`
}

// StatsResponse reports the document counter and the ledger height.
type StatsResponse struct {
	TotalDocuments uint64 `json:"total_documents"`
	Height         uint64 `json:"height"`
}

// SnapshotResponse describes an archived registry snapshot.
type SnapshotResponse struct {
	ContentID      string `json:"content_id"`
	Height         uint64 `json:"height"`
	TotalDocuments uint64 `json:"total_documents"`
	Location       string `json:"location"`
}

// FingerprintStrings renders fingerprints the way responses carry them.
func FingerprintStrings(fps []interfaces.Fingerprint) []string {
	out := make([]string, 0, len(fps))
	for _, fp := range fps {
		out = append(out, fp.String())
	}
	return out
}

// StatusError is a non-2xx response as seen by a client.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

var knownErrors = []error{
	interfaces.ErrInvalidHashLength,
	interfaces.ErrDuplicateDocument,
	interfaces.ErrNotRegistered,
	interfaces.ErrUnauthorized,
	interfaces.ErrAlreadyRevoked,
	interfaces.ErrContentNotFound,
}

// Unwrap maps the server's message back to the registry error it came
// from, so clients can use errors.Is.
func (e *StatusError) Unwrap() error {
	for _, known := range knownErrors {
		if strings.Contains(e.Message, known.Error()) {
			return known
		}
	}
	return nil
}
