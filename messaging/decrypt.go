package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"chatkit/crypto"
	"chatkit/models"
)

// decryptConversation walks the cached thread and decrypts, in the
// background, every encrypted message that has not been handled yet. The
// in-flight set keeps list refreshes and event bursts from decrypting the
// same message twice.
func (c *Controller) decryptConversation(conversationID string) {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var claimed []models.Message
	c.decryptMu.Lock()
	for _, message := range c.options.Cache.Messages(conversationID) {
		if !message.IsEncrypted || message.EncryptedContent == "" {
			continue
		}
		if _, done := c.decrypted[message.ID]; done {
			continue
		}
		if _, busy := c.inflight[message.ID]; busy {
			continue
		}
		c.inflight[message.ID] = struct{}{}
		claimed = append(claimed, message)
	}
	c.decryptMu.Unlock()

	if len(claimed) == 0 {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, message := range claimed {
			c.decryptOne(ctx, message)
		}
	}()
}

// decryptOne resolves one message's plaintext and writes the result back to
// the cache and store. Verification failures are terminal; a pending group
// key bundle is not, so those stay eligible for retry.
func (c *Controller) decryptOne(ctx context.Context, message models.Message) {
	plaintext, err := c.decryptMessage(ctx, message)

	c.decryptMu.Lock()
	delete(c.inflight, message.ID)
	if err == nil || !errors.Is(err, ErrKeyBundleNotReady) {
		c.decrypted[message.ID] = struct{}{}
	}
	c.decryptMu.Unlock()

	content := plaintext
	switch {
	case err == nil:
	case errors.Is(err, ErrKeyBundleNotReady):
		content = PlaceholderKeyPending
	default:
		content = PlaceholderCannotDecrypt
		c.options.OnError(err)
	}

	c.options.Cache.UpdateMessage(message.ConversationID, message.ID, func(m *models.Message) {
		m.Content = content
	})

	if err == nil && c.options.Store != nil {
		stored := message
		stored.Content = content
		_ = c.options.Store.UpsertMessage(stored)
	}
}

func (c *Controller) decryptMessage(ctx context.Context, message models.Message) (string, error) {
	if c.options.KeyPair == nil || c.options.Store == nil {
		return "", ErrEncryptionUnavailable
	}

	ciphertext, err := base64.StdEncoding.DecodeString(message.EncryptedContent)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext for message %q: %w", message.ID, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(message.Nonce)
	if err != nil {
		return "", fmt.Errorf("decode nonce for message %q: %w", message.ID, err)
	}

	conversation, err := c.conversationByID(ctx, message.ConversationID)
	if err != nil {
		return "", err
	}

	var raw []byte
	switch conversation.Type {
	case models.ConversationDirect:
		// The box shared key is symmetric in the two keypairs, so the peer's
		// public key opens both inbound messages and our own echoes.
		peerID, err := otherParticipant(conversation, c.options.UserID)
		if err != nil {
			return "", err
		}
		peerKey, err := c.options.Directory.Lookup(ctx, peerID)
		if err != nil {
			return "", err
		}
		raw, err = crypto.DecryptDirect(ciphertext, nonce, peerKey, c.options.KeyPair.Secret)
		if err != nil {
			return "", fmt.Errorf("message %q: %w", message.ID, err)
		}

	case models.ConversationGroup:
		groupKey, err := c.groupKeyForReceive(ctx, message.ConversationID)
		if err != nil {
			return "", err
		}
		raw, err = crypto.DecryptGroup(ciphertext, nonce, groupKey)
		if err != nil {
			return "", fmt.Errorf("message %q: %w", message.ID, err)
		}

	default:
		return "", fmt.Errorf("unknown conversation type %q", conversation.Type)
	}

	payload, err := crypto.DecodePayload(raw)
	if err != nil {
		return "", fmt.Errorf("message %q payload: %w", message.ID, err)
	}
	return payload.Text, nil
}

// markDecrypted records a message whose plaintext is already known, such as
// our own just-sent messages, so the background pass skips it.
func (c *Controller) markDecrypted(messageID string) {
	c.decryptMu.Lock()
	c.decrypted[messageID] = struct{}{}
	c.decryptMu.Unlock()
}

func (c *Controller) forgetDecrypted(messageID string) {
	c.decryptMu.Lock()
	delete(c.decrypted, messageID)
	delete(c.inflight, messageID)
	c.decryptMu.Unlock()
}
