package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"

	"chatkit/api"
	"chatkit/crypto"
)

// SetupEncryption loads the local keypair, generating one on first run, and
// publishes the public key. With a non-empty passphrase it also uploads a
// sealed private key backup so the identity survives device loss.
//
// Publication is idempotent; re-running after a crash between key generation
// and upload completes the registration.
func SetupEncryption(ctx context.Context, client api.Client, privatePath, publicPath, passphrase string) (*crypto.KeyPair, error) {
	if client == nil {
		return nil, errors.New("api client is required")
	}

	pair, err := crypto.EnsureKeyPair(privatePath, publicPath)
	if err != nil {
		return nil, err
	}

	request := api.UpdateKeysRequest{PublicKey: crypto.EncodeKey(pair.Public)}
	if passphrase != "" {
		backup, err := crypto.SealKeyBackup(pair.Secret, passphrase)
		if err != nil {
			return nil, err
		}
		request.EncryptedPrivateKey = base64.StdEncoding.EncodeToString(backup.Ciphertext)
		request.Nonce = base64.StdEncoding.EncodeToString(backup.Nonce)
		request.Salt = base64.StdEncoding.EncodeToString(backup.Salt)
	}

	if err := client.UpdateEncryptionKeys(ctx, request); err != nil {
		return nil, fmt.Errorf("publish encryption keys: %w", err)
	}

	return pair, nil
}

// RestoreIdentity recovers the private key from the server-held sealed
// backup and writes the keypair to disk. An existing local private key is
// never overwritten.
func RestoreIdentity(ctx context.Context, client api.Client, privatePath, publicPath, passphrase string) (*crypto.KeyPair, error) {
	if client == nil {
		return nil, errors.New("api client is required")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}

	if _, err := crypto.LoadPrivateKey(privatePath); err == nil {
		return nil, errors.New("a local private key already exists")
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	stored, err := client.GetEncryptionKeyBackup(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch key backup: %w", err)
	}

	backup, err := decodeKeyBackup(stored)
	if err != nil {
		return nil, err
	}

	secret, err := crypto.OpenKeyBackup(backup, passphrase)
	if err != nil {
		return nil, err
	}

	if err := crypto.SavePrivateKey(privatePath, secret); err != nil {
		return nil, err
	}

	// EnsureKeyPair derives and persists the matching public key file.
	return crypto.EnsureKeyPair(privatePath, publicPath)
}

func decodeKeyBackup(stored *api.KeyBackupResponse) (*crypto.KeyBackup, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(stored.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode backup ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode backup nonce: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode backup salt: %w", err)
	}

	return &crypto.KeyBackup{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, nil
}
