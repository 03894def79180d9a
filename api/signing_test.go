package api

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/document-registry/interfaces"
	"github.com/ruteri/document-registry/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	fp := interfaces.ComputeFingerprint([]byte("invoice.pdf"))

	sig, err := SignTransaction(key, ledger.MethodRegister, fp.Bytes())
	require.NoError(t, err)

	caller, err := RecoverCaller(ledger.MethodRegister, fp.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), caller)

	// wallets commonly produce 27/28 recovery ids
	legacy := append([]byte{}, sig...)
	legacy[64] += 27
	caller, err = RecoverCaller(ledger.MethodRegister, fp.Bytes(), legacy)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), caller)
}

func TestRecoverCaller_BoundToMethodAndFingerprint(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)
	fp := interfaces.ComputeFingerprint([]byte("a"))
	other := interfaces.ComputeFingerprint([]byte("b"))

	sig, err := SignTransaction(key, ledger.MethodRegister, fp.Bytes())
	require.NoError(t, err)

	caller, err := RecoverCaller(ledger.MethodRevoke, fp.Bytes(), sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer, caller)

	caller, err = RecoverCaller(ledger.MethodRegister, other.Bytes(), sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer, caller)
}

func TestRecoverCaller_Malformed(t *testing.T) {
	_, err := RecoverCaller(ledger.MethodRegister, nil, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = RecoverCaller(ledger.MethodRegister, nil, make([]byte, 65))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSigningMessage(t *testing.T) {
	assert.Equal(t, "revokeDocument:0x0102", string(SigningMessage(ledger.MethodRevoke, []byte{1, 2})))
}

func TestStatusError_Unwrap(t *testing.T) {
	err := &StatusError{StatusCode: 409, Message: interfaces.ErrDuplicateDocument.Error()}
	assert.ErrorIs(t, err, interfaces.ErrDuplicateDocument)
	assert.NotErrorIs(t, err, interfaces.ErrNotRegistered)

	assert.Nil(t, (&StatusError{StatusCode: 500, Message: "boom"}).Unwrap())
}
