package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"chatkit/api"
	"chatkit/crypto"
	"chatkit/models"
	"chatkit/storage"
)

// ensureGroupKey resolves the symmetric key for a group conversation on the
// send path. Resolution order: local store, then a server-held bundle wrapped
// for this user, then generation. Generation happens at most here; the
// receive path never creates keys.
func (c *Controller) ensureGroupKey(ctx context.Context, conversation *models.Conversation) (*[crypto.KeySize]byte, error) {
	if key, err := c.localGroupKey(conversation.ID); err == nil {
		return key, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	key, err := c.groupKeyFromBundle(ctx, conversation.ID)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return nil, err
	}

	return c.establishGroupKey(ctx, conversation)
}

// groupKeyForReceive resolves the group key without ever generating one.
// A missing bundle means distribution is still in flight; the caller renders
// a pending placeholder and retries later.
func (c *Controller) groupKeyForReceive(ctx context.Context, conversationID string) (*[crypto.KeySize]byte, error) {
	if key, err := c.localGroupKey(conversationID); err == nil {
		return key, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	key, err := c.groupKeyFromBundle(ctx, conversationID)
	if errors.Is(err, api.ErrNotFound) {
		return nil, ErrKeyBundleNotReady
	}
	return key, err
}

func (c *Controller) localGroupKey(conversationID string) (*[crypto.KeySize]byte, error) {
	if c.options.Store == nil {
		return nil, ErrEncryptionUnavailable
	}

	record, err := c.options.Store.GetGroupKey(conversationID)
	if err != nil {
		return nil, err
	}
	return crypto.DecodeKey(record.SymmetricKey)
}

// groupKeyFromBundle fetches this user's wrapped key bundle, unwraps it with
// the local secret key, and persists the result.
func (c *Controller) groupKeyFromBundle(ctx context.Context, conversationID string) (*[crypto.KeySize]byte, error) {
	if c.options.KeyPair == nil || c.options.Store == nil {
		return nil, ErrEncryptionUnavailable
	}

	bundle, err := c.options.API.GetConversationKeyBundle(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	senderPublic, err := crypto.DecodeKey(bundle.SenderPublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode bundle sender key: %w", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(bundle.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("decode bundle ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(bundle.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode bundle nonce: %w", err)
	}

	key, err := crypto.UnwrapGroupKey(wrapped, nonce, senderPublic, c.options.KeyPair.Secret)
	if err != nil {
		return nil, fmt.Errorf("unwrap group key for conversation %q: %w", conversationID, err)
	}

	if err := c.options.Store.SaveGroupKey(conversationID, crypto.EncodeKey(key), bundle.Version); err != nil {
		if !errors.Is(err, storage.ErrStaleGroupKey) {
			return nil, err
		}
		// A newer key landed concurrently; use that one.
		return c.localGroupKey(conversationID)
	}

	return key, nil
}

// establishGroupKey generates a fresh conversation key and distributes it,
// wrapped once per participant, including this user. The self bundle lets the
// key be recovered on another device.
func (c *Controller) establishGroupKey(ctx context.Context, conversation *models.Conversation) (*[crypto.KeySize]byte, error) {
	if c.options.KeyPair == nil || c.options.Store == nil {
		return nil, ErrEncryptionUnavailable
	}

	key, err := crypto.GenerateGroupKey()
	if err != nil {
		return nil, err
	}

	const version = 1
	senderPublic := crypto.EncodeKey(c.options.KeyPair.Public)

	bundles := make([]api.KeyBundle, 0, len(conversation.Participants))
	for _, participant := range conversation.Participants {
		recipientPublic, err := c.recipientPublicKey(ctx, participant.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve key for participant %q: %w", participant.ID, err)
		}

		wrapped, nonce, err := crypto.WrapGroupKey(key, recipientPublic, c.options.KeyPair.Secret)
		if err != nil {
			return nil, fmt.Errorf("wrap group key for %q: %w", participant.ID, err)
		}

		bundles = append(bundles, api.KeyBundle{
			ConversationID:  conversation.ID,
			RecipientUserID: participant.ID,
			EncryptedKey:    base64.StdEncoding.EncodeToString(wrapped),
			Nonce:           base64.StdEncoding.EncodeToString(nonce),
			SenderPublicKey: senderPublic,
			Version:         version,
		})
	}

	if err := c.options.API.CreateConversationKeyBundles(ctx, conversation.ID, bundles); err != nil {
		return nil, fmt.Errorf("publish key bundles: %w", err)
	}

	if err := c.options.Store.SaveGroupKey(conversation.ID, crypto.EncodeKey(key), version); err != nil {
		if !errors.Is(err, storage.ErrStaleGroupKey) {
			return nil, err
		}
		return c.localGroupKey(conversation.ID)
	}

	return key, nil
}

func (c *Controller) recipientPublicKey(ctx context.Context, userID string) (*[crypto.KeySize]byte, error) {
	if userID == c.options.UserID {
		return c.options.KeyPair.Public, nil
	}
	return c.options.Directory.Lookup(ctx, userID)
}
