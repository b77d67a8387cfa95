package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// KeySize is the byte length of Curve25519 keys and of group keys.
	KeySize = 32
	// NonceSize is the byte length of NaCl box/secretbox nonces.
	NonceSize = 24

	curve25519PrivatePEMType = "CURVE25519 PRIVATE KEY"
	curve25519PublicPEMType  = "CURVE25519 PUBLIC KEY"
)

// KeyPair is a long-lived Curve25519 keypair for NaCl box encryption.
type KeyPair struct {
	Public *[KeySize]byte
	Secret *[KeySize]byte
}

// GenerateKeyPair creates a new Curve25519 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	public, secret, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate Curve25519 keypair: %w", err)
	}
	return &KeyPair{Public: public, Secret: secret}, nil
}

// EnsureKeyPair loads a Curve25519 keypair from disk, generating it on first run.
//
// The stored public key file is rewritten if it is missing or does not match
// the key derived from the private key.
func EnsureKeyPair(privatePath, publicPath string) (*KeyPair, error) {
	secret, err := LoadPrivateKey(privatePath)
	if err == nil {
		public, derr := derivePublicKey(secret)
		if derr != nil {
			return nil, derr
		}

		storedPublic, pubErr := LoadPublicKey(publicPath)
		if pubErr != nil || *storedPublic != *public {
			if err := SavePublicKey(publicPath, public); err != nil {
				return nil, err
			}
		}

		return &KeyPair{Public: public, Secret: secret}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	pair, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	if err := SavePrivateKey(privatePath, pair.Secret); err != nil {
		return nil, err
	}
	if err := SavePublicKey(publicPath, pair.Public); err != nil {
		return nil, err
	}

	return pair, nil
}

// LoadPrivateKey loads a Curve25519 private key from a PEM file.
func LoadPrivateKey(path string) (*[KeySize]byte, error) {
	return loadKeyPEM(path, curve25519PrivatePEMType, "private")
}

// LoadPublicKey loads a Curve25519 public key from a PEM file.
func LoadPublicKey(path string) (*[KeySize]byte, error) {
	return loadKeyPEM(path, curve25519PublicPEMType, "public")
}

// SavePrivateKey writes a Curve25519 private key PEM file with 0600 permissions.
func SavePrivateKey(path string, key *[KeySize]byte) error {
	if key == nil {
		return errors.New("private key is required")
	}

	block := &pem.Block{
		Type:  curve25519PrivatePEMType,
		Bytes: key[:],
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write Curve25519 private key: %w", err)
	}

	return nil
}

// SavePublicKey writes a Curve25519 public key PEM file.
func SavePublicKey(path string, key *[KeySize]byte) error {
	if key == nil {
		return errors.New("public key is required")
	}

	block := &pem.Block{
		Type:  curve25519PublicPEMType,
		Bytes: key[:],
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o644); err != nil {
		return fmt.Errorf("write Curve25519 public key: %w", err)
	}

	return nil
}

// EncodeKey returns the base64 wire encoding of a key.
func EncodeKey(key *[KeySize]byte) string {
	if key == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(key[:])
}

// DecodeKey parses a base64-encoded 32-byte key.
func DecodeKey(encoded string) (*[KeySize]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("decode key: invalid key size %d", len(raw))
	}

	var key [KeySize]byte
	copy(key[:], raw)
	return &key, nil
}

// KeyFingerprint returns the truncated SHA-256 hex fingerprint of a public key.
func KeyFingerprint(publicKey *[KeySize]byte) string {
	if publicKey == nil {
		return ""
	}
	sum := sha256.Sum256(publicKey[:])
	return hex.EncodeToString(sum[:16])
}

func derivePublicKey(secret *[KeySize]byte) (*[KeySize]byte, error) {
	raw, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("derive Curve25519 public key: %w", err)
	}

	var public [KeySize]byte
	copy(public[:], raw)
	return &public, nil
}

func loadKeyPEM(path, pemType, label string) (*[KeySize]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read Curve25519 %s key: %w", label, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode Curve25519 %s PEM: no PEM block", label)
	}
	if block.Type != pemType {
		return nil, fmt.Errorf("decode Curve25519 %s PEM: unexpected type %q", label, block.Type)
	}
	if len(block.Bytes) != KeySize {
		return nil, fmt.Errorf("decode Curve25519 %s PEM: invalid key size %d", label, len(block.Bytes))
	}

	var key [KeySize]byte
	copy(key[:], block.Bytes)
	return &key, nil
}

func newNonce() (*[NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return &nonce, nil
}

func nonceFromBytes(raw []byte) (*[NonceSize]byte, error) {
	if len(raw) != NonceSize {
		return nil, fmt.Errorf("invalid nonce length: got %d want %d", len(raw), NonceSize)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], raw)
	return &nonce, nil
}
