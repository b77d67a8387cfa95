package messaging

import "errors"

var (
	// ErrEncryptionUnavailable indicates no usable local key material. The
	// operation fails closed; content is never sent or rendered as plaintext
	// fallback.
	ErrEncryptionUnavailable = errors.New("messaging: encryption keys unavailable")

	// ErrKeyBundleNotReady indicates the conversation has no local group key
	// and the server holds no bundle for this user yet. Retryable.
	ErrKeyBundleNotReady = errors.New("messaging: group key bundle not yet available")

	// ErrUnknownConversation indicates the conversation could not be resolved
	// locally or remotely.
	ErrUnknownConversation = errors.New("messaging: unknown conversation")
)

const (
	// PlaceholderCannotDecrypt is rendered when ciphertext fails verification.
	PlaceholderCannotDecrypt = "Could not decrypt message"
	// PlaceholderKeyPending is rendered while the group key bundle is still
	// being distributed.
	PlaceholderKeyPending = "Waiting for encryption keys"
)
