package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// GenerateGroupKey creates a fresh random symmetric key for one conversation.
func GenerateGroupKey() (*[KeySize]byte, error) {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generate group key: %w", err)
	}
	return &key, nil
}

// EncryptGroup seals plaintext with the conversation group key.
//
// A fresh random nonce is generated per call; nonce reuse under one key
// must never happen.
func EncryptGroup(plaintext []byte, groupKey *[KeySize]byte) (ciphertext, nonce []byte, err error) {
	if groupKey == nil {
		return nil, nil, errors.New("group key is required")
	}

	n, err := newNonce()
	if err != nil {
		return nil, nil, err
	}

	ciphertext = secretbox.Seal(nil, plaintext, n, groupKey)
	return ciphertext, n[:], nil
}

// DecryptGroup opens ciphertext sealed with the conversation group key.
func DecryptGroup(ciphertext, nonce []byte, groupKey *[KeySize]byte) ([]byte, error) {
	if groupKey == nil {
		return nil, errors.New("group key is required")
	}
	if len(ciphertext) == 0 {
		return nil, errors.New("ciphertext is required")
	}

	n, err := nonceFromBytes(nonce)
	if err != nil {
		return nil, err
	}

	plaintext, ok := secretbox.Open(nil, ciphertext, n, groupKey)
	if !ok {
		return nil, ErrDecryptFailed
	}

	return plaintext, nil
}

// WrapGroupKey envelopes a group key for one recipient using direct encryption.
func WrapGroupKey(groupKey, recipientPublic, ownSecret *[KeySize]byte) (ciphertext, nonce []byte, err error) {
	if groupKey == nil {
		return nil, nil, errors.New("group key is required")
	}
	return EncryptDirect(groupKey[:], recipientPublic, ownSecret)
}

// UnwrapGroupKey recovers a group key from an envelope produced by WrapGroupKey.
func UnwrapGroupKey(ciphertext, nonce []byte, senderPublic, ownSecret *[KeySize]byte) (*[KeySize]byte, error) {
	raw, err := DecryptDirect(ciphertext, nonce, senderPublic, ownSecret)
	if err != nil {
		return nil, err
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("unwrap group key: invalid key size %d", len(raw))
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}
