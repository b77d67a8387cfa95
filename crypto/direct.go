package crypto

import (
	"errors"

	"golang.org/x/crypto/nacl/box"
)

var (
	// ErrDecryptFailed indicates ciphertext authentication failed.
	ErrDecryptFailed = errors.New("crypto: ciphertext verification failed")
)

// EncryptDirect seals plaintext for one recipient using NaCl box.
//
// The ciphertext authenticates the sender: decryption with any other sender
// public key fails instead of producing garbage.
func EncryptDirect(plaintext []byte, recipientPublic, ownSecret *[KeySize]byte) (ciphertext, nonce []byte, err error) {
	if recipientPublic == nil {
		return nil, nil, errors.New("recipient public key is required")
	}
	if ownSecret == nil {
		return nil, nil, errors.New("own secret key is required")
	}

	n, err := newNonce()
	if err != nil {
		return nil, nil, err
	}

	ciphertext = box.Seal(nil, plaintext, n, recipientPublic, ownSecret)
	return ciphertext, n[:], nil
}

// DecryptDirect opens a NaCl box sealed by the claimed sender for this recipient.
func DecryptDirect(ciphertext, nonce []byte, senderPublic, ownSecret *[KeySize]byte) ([]byte, error) {
	if senderPublic == nil {
		return nil, errors.New("sender public key is required")
	}
	if ownSecret == nil {
		return nil, errors.New("own secret key is required")
	}
	if len(ciphertext) == 0 {
		return nil, errors.New("ciphertext is required")
	}

	n, err := nonceFromBytes(nonce)
	if err != nil {
		return nil, err
	}

	plaintext, ok := box.Open(nil, ciphertext, n, senderPublic, ownSecret)
	if !ok {
		return nil, ErrDecryptFailed
	}

	return plaintext, nil
}
