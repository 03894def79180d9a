package ledger

import (
	"bytes"
	"testing"

	"github.com/ruteri/document-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptKey_SortsBySeq(t *testing.T) {
	assert.Negative(t, bytes.Compare(receiptKey(1), receiptKey(2)))
	assert.Negative(t, bytes.Compare(receiptKey(255), receiptKey(256)))
	assert.True(t, bytes.HasPrefix(receiptKey(7), receiptPrefix))
}

func TestReceipt_Codec(t *testing.T) {
	fp := interfaces.ComputeFingerprint([]byte("doc"))
	r := &Receipt{
		Seq:         3,
		Caller:      alice,
		Method:      MethodRegister,
		Fingerprint: fp.Bytes(),
		Timestamp:   99,
		Status:      StatusSuccess,
		Events:      []interfaces.Event{interfaces.NewDocumentRegisteredEvent(alice, fp, 99)},
	}
	raw, err := encodeReceipt(r)
	require.NoError(t, err)

	decoded, err := decodeReceipt(raw)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)

	_, err = decodeReceipt([]byte{0xff})
	assert.Error(t, err)
}

func TestComputeTxHash_DependsOnPosition(t *testing.T) {
	tx := register(alice, interfaces.ComputeFingerprint([]byte("doc")))

	h1, err := computeTxHash(0, tx, 10)
	require.NoError(t, err)
	h2, err := computeTxHash(1, tx, 10)
	require.NoError(t, err)
	again, err := computeTxHash(0, tx, 10)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, again)
}

func TestEventFilter_Matches(t *testing.T) {
	h1 := interfaces.ComputeFingerprint([]byte("H1"))
	h2 := interfaces.ComputeFingerprint([]byte("H2"))
	ev := interfaces.NewDocumentRevokedEvent(alice, h1)

	tests := []struct {
		name   string
		filter EventFilter
		want   bool
	}{
		{"empty", EventFilter{}, true},
		{"kind match", EventFilter{Kind: interfaces.DocumentRevoked}, true},
		{"kind mismatch", EventFilter{Kind: interfaces.DocumentRegistered}, false},
		{"owner match", EventFilter{Owner: &alice}, true},
		{"owner mismatch", EventFilter{Owner: &bob}, false},
		{"fingerprint match", EventFilter{Fingerprint: &h1}, true},
		{"fingerprint mismatch", EventFilter{Fingerprint: &h2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(ev))
		})
	}
}
