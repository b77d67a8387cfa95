package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	backupSaltSize = 16

	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// KeyBackup is a private key sealed under a passphrase-derived key, suitable
// for opaque server-side escrow.
type KeyBackup struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// SealKeyBackup encrypts a private key with a key derived from the passphrase
// via Argon2id over a random salt.
func SealKeyBackup(secret *[KeySize]byte, passphrase string) (*KeyBackup, error) {
	if secret == nil {
		return nil, errors.New("secret key is required")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	salt := make([]byte, backupSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate backup salt: %w", err)
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	sealKey := deriveBackupKey(passphrase, salt)
	ciphertext := secretbox.Seal(nil, secret[:], nonce, sealKey)

	return &KeyBackup{
		Ciphertext: ciphertext,
		Nonce:      nonce[:],
		Salt:       salt,
	}, nil
}

// OpenKeyBackup recovers a private key from a sealed backup.
func OpenKeyBackup(backup *KeyBackup, passphrase string) (*[KeySize]byte, error) {
	if backup == nil {
		return nil, errors.New("backup is required")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	nonce, err := nonceFromBytes(backup.Nonce)
	if err != nil {
		return nil, err
	}

	sealKey := deriveBackupKey(passphrase, backup.Salt)
	raw, ok := secretbox.Open(nil, backup.Ciphertext, nonce, sealKey)
	if !ok {
		return nil, ErrDecryptFailed
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("open key backup: invalid key size %d", len(raw))
	}

	var secret [KeySize]byte
	copy(secret[:], raw)
	return &secret, nil
}

func deriveBackupKey(passphrase string, salt []byte) *[KeySize]byte {
	raw := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, KeySize)

	var key [KeySize]byte
	copy(key[:], raw)
	return &key
}
