package messaging

import (
	"context"
	"errors"

	"chatkit/api"
	"chatkit/models"
)

// CreateConversation creates a direct or group conversation. For groups the
// symmetric key is generated and distributed up front so the first message
// does not race key establishment.
func (c *Controller) CreateConversation(ctx context.Context, req api.CreateConversationRequest) (*models.Conversation, error) {
	if len(req.ParticipantIDs) == 0 {
		return nil, errors.New("participant ids are required")
	}
	if req.Type == models.ConversationDirect && len(req.ParticipantIDs) != 1 {
		return nil, errors.New("direct conversation takes exactly one other participant")
	}

	conversation, err := c.options.API.CreateConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	c.options.Cache.UpsertConversation(*conversation)
	if c.options.Store != nil {
		_ = c.options.Store.UpsertConversation(*conversation)
	}

	if conversation.Type == models.ConversationGroup && c.options.KeyPair != nil && c.options.Store != nil {
		if _, err := c.ensureGroupKey(ctx, conversation); err != nil {
			return conversation, err
		}
	}

	return conversation, nil
}
