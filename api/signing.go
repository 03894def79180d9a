package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a request signature cannot be recovered.
var ErrInvalidSignature = errors.New("invalid request signature")

// SigningMessage is the text a caller signs to invoke method on a fingerprint.
func SigningMessage(method string, fingerprint []byte) []byte {
	return []byte(method + ":" + hexutil.Encode(fingerprint))
}

// SignTransaction produces the 65-byte signature expected in SignatureHeader.
func SignTransaction(key *ecdsa.PrivateKey, method string, fingerprint []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(SigningMessage(method, fingerprint)), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s request: %w", method, err)
	}
	return sig, nil
}

// RecoverCaller returns the identity that signed method on fingerprint.
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverCaller(method string, fingerprint []byte, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, crypto.SignatureLength, len(sig))
	}

	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(SigningMessage(method, fingerprint)), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
