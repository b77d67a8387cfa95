package messaging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatkit/api"
	"chatkit/crypto"
	"chatkit/models"
)

// TempIDPrefix marks optimistic client-generated message ids.
const TempIDPrefix = "temp-"

// SendText encrypts and sends a text message.
//
// The optimistic entry keeps the plaintext locally; the wire carries only
// ciphertext. On failure the cache is rolled back to its pre-send state and
// the error is returned to the caller; nothing is silently retried.
func (c *Controller) SendText(ctx context.Context, conversationID, text, replyToID string) (*models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	if text == "" {
		return nil, errors.New("text is required")
	}

	conversation, err := c.conversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	payload, err := crypto.EncodePayload(crypto.Payload{Text: text})
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := c.encryptForConversation(ctx, conversation, payload)
	if err != nil {
		return nil, err
	}

	request := api.SendMessageRequest{
		ContentType:      models.ContentTypeText,
		ReplyToID:        replyToID,
		EncryptedContent: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:            base64.StdEncoding.EncodeToString(nonce),
		IsEncrypted:      true,
	}

	optimistic := models.Message{
		ID:               TempIDPrefix + uuid.NewString(),
		ConversationID:   conversationID,
		SenderID:         c.options.UserID,
		ContentType:      models.ContentTypeText,
		Content:          text,
		EncryptedContent: request.EncryptedContent,
		Nonce:            request.Nonce,
		IsEncrypted:      true,
		ReplyToID:        replyToID,
		Status:           models.StatusSending,
		CreatedAt:        time.Now().UnixMilli(),
	}

	return c.dispatch(ctx, conversationID, optimistic, request)
}

// SendMedia sends an image or audio message referencing already-uploaded
// media. Media blobs move through the object store, not the channel; only
// the reference travels here.
func (c *Controller) SendMedia(ctx context.Context, conversationID string, contentType models.ContentType, mediaURL string, mediaDuration float64) (*models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	if contentType != models.ContentTypeImage && contentType != models.ContentTypeAudio {
		return nil, fmt.Errorf("unsupported media content type %q", contentType)
	}
	if mediaURL == "" {
		return nil, errors.New("media url is required")
	}

	request := api.SendMessageRequest{
		ContentType:   contentType,
		MediaURL:      mediaURL,
		MediaDuration: mediaDuration,
	}

	optimistic := models.Message{
		ID:             TempIDPrefix + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       c.options.UserID,
		ContentType:    contentType,
		MediaURL:       mediaURL,
		MediaDuration:  mediaDuration,
		Status:         models.StatusSending,
		CreatedAt:      time.Now().UnixMilli(),
	}

	return c.dispatch(ctx, conversationID, optimistic, request)
}

func (c *Controller) dispatch(ctx context.Context, conversationID string, optimistic models.Message, request api.SendMessageRequest) (*models.Message, error) {
	snapshot := c.options.Cache.Snapshot(conversationID)
	c.options.Cache.PrependMessage(conversationID, optimistic, true)

	confirmed, err := c.options.API.SendMessage(ctx, conversationID, request)
	if err != nil {
		c.options.Cache.Restore(snapshot)
		return nil, fmt.Errorf("send message: %w", err)
	}

	canonical := *confirmed
	if canonical.ConversationID == "" {
		canonical.ConversationID = conversationID
	}
	if canonical.SenderID == "" {
		canonical.SenderID = c.options.UserID
	}
	// The server echoes ciphertext; keep the plaintext from the optimistic copy.
	if canonical.IsEncrypted && canonical.Content == "" {
		canonical.Content = optimistic.Content
	}
	if models.StatusRank(canonical.Status) < models.StatusRank(models.StatusSent) {
		canonical.Status = models.StatusSent
	}

	c.options.Cache.Reconcile(conversationID, c.options.UserID, optimistic.ID, canonical)
	c.markDecrypted(canonical.ID)
	c.options.Cache.BumpPreview(conversationID, canonical, false)
	if c.options.Store != nil {
		_ = c.options.Store.UpsertMessage(canonical)
	}

	return &canonical, nil
}

// DeleteMessage removes a message server-side; the local tombstone is applied
// when the message.deleted event arrives, or immediately here for the caller.
func (c *Controller) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if err := c.options.API.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	c.options.Cache.RemoveMessage(conversationID, messageID)
	if c.options.Store != nil {
		_ = c.options.Store.MarkMessageDeleted(messageID, 0)
	}
	return nil
}

// AddReaction records the local user's reaction optimistically and submits it.
func (c *Controller) AddReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	if err := c.options.API.AddReaction(ctx, messageID, emoji); err != nil {
		return err
	}

	c.options.Cache.UpdateMessage(conversationID, messageID, func(message *models.Message) {
		applyReaction(message, c.options.UserID, emoji, false)
	})
	return nil
}

// RemoveReaction removes the local user's reaction.
func (c *Controller) RemoveReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	if err := c.options.API.RemoveReaction(ctx, messageID, emoji); err != nil {
		return err
	}

	c.options.Cache.UpdateMessage(conversationID, messageID, func(message *models.Message) {
		applyReaction(message, c.options.UserID, emoji, true)
	})
	return nil
}

func (c *Controller) encryptForConversation(ctx context.Context, conversation *models.Conversation, payload []byte) (ciphertext, nonce []byte, err error) {
	if c.options.KeyPair == nil || c.options.Store == nil {
		return nil, nil, ErrEncryptionUnavailable
	}

	switch conversation.Type {
	case models.ConversationDirect:
		peerID, err := otherParticipant(conversation, c.options.UserID)
		if err != nil {
			return nil, nil, err
		}
		peerKey, err := c.options.Directory.Lookup(ctx, peerID)
		if err != nil {
			return nil, nil, err
		}
		return crypto.EncryptDirect(payload, peerKey, c.options.KeyPair.Secret)

	case models.ConversationGroup:
		groupKey, err := c.ensureGroupKey(ctx, conversation)
		if err != nil {
			return nil, nil, err
		}
		return crypto.EncryptGroup(payload, groupKey)

	default:
		return nil, nil, fmt.Errorf("unknown conversation type %q", conversation.Type)
	}
}

func (c *Controller) conversationByID(ctx context.Context, conversationID string) (*models.Conversation, error) {
	if conversation, ok := c.options.Cache.Conversation(conversationID); ok {
		return &conversation, nil
	}

	conversation, err := c.options.API.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, ErrUnknownConversation
		}
		return nil, err
	}

	c.options.Cache.UpsertConversation(*conversation)
	if c.options.Store != nil {
		_ = c.options.Store.UpsertConversation(*conversation)
	}
	return conversation, nil
}

func otherParticipant(conversation *models.Conversation, selfID string) (string, error) {
	if len(conversation.Participants) != 2 {
		return "", fmt.Errorf("direct conversation %q must have exactly 2 participants, got %d",
			conversation.ID, len(conversation.Participants))
	}
	for _, participant := range conversation.Participants {
		if participant.ID != selfID {
			return participant.ID, nil
		}
	}
	return "", fmt.Errorf("direct conversation %q has no participant besides %q", conversation.ID, selfID)
}

func applyReaction(message *models.Message, userID, emoji string, remove bool) {
	for i, reaction := range message.Reactions {
		if reaction.UserID == userID && reaction.Emoji == emoji {
			if remove {
				message.Reactions = append(message.Reactions[:i], message.Reactions[i+1:]...)
			}
			return
		}
	}
	if !remove {
		message.Reactions = append(message.Reactions, models.Reaction{UserID: userID, Emoji: emoji})
	}
}
