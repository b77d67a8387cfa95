package messaging

import (
	"chatkit/channel"
	"chatkit/models"
)

// handleEventPayload is the realtime channel entry point. Presence and
// activity events are handled by the presence tracker's own subscription;
// everything message-shaped is dispatched here.
func (c *Controller) handleEventPayload(payload []byte) {
	event, err := channel.DecodeEvent(payload)
	if err != nil {
		c.options.OnError(err)
		return
	}

	switch e := event.(type) {
	case channel.MessageNewEvent:
		c.handleMessageNew(e.Message)
	case channel.MessageDeliveredEvent:
		c.handleDelivered(e)
	case channel.MessageReadEvent:
		c.handleRead(e)
	case channel.MessageDeletedEvent:
		c.handleDeleted(e)
	case channel.MessageReactionEvent:
		c.handleReaction(e)
	}
}

// handleMessageNew applies an inbound message. Duplicate delivery is the
// norm, not the exception: the insert is id-deduplicated and a repeat event
// is a no-op.
func (c *Controller) handleMessageNew(message models.Message) {
	if message.ID == "" || message.ConversationID == "" {
		return
	}

	fromSelf := message.SenderID == c.options.UserID
	if fromSelf {
		// Our own echo. Reconciliation against the pending optimistic entry
		// already happened on the send path, or happens here when the event
		// outruns the send response.
		c.reconcileOwnEcho(message)
		return
	}

	if models.StatusRank(message.Status) < models.StatusRank(models.StatusSent) {
		message.Status = models.StatusSent
	}

	active := c.ActiveConversationID()
	if message.ConversationID == active {
		if !c.options.Cache.PrependMessage(message.ConversationID, message, false) {
			return
		}
		if c.options.Store != nil {
			_ = c.options.Store.UpsertMessage(message)
		}
		c.decryptConversation(message.ConversationID)
		return
	}

	c.options.Cache.BumpPreview(message.ConversationID, message, true)
	if c.options.Store != nil {
		_ = c.options.Store.UpsertMessage(message)
	}
}

func (c *Controller) reconcileOwnEcho(message models.Message) {
	if _, ok := c.options.Cache.Message(message.ConversationID, message.ID); ok {
		return
	}

	pending := c.options.Cache.PendingIDs(message.ConversationID, c.options.UserID)
	if len(pending) > 0 {
		// Sends resolve in order, so the echo belongs to the oldest entry.
		c.options.Cache.Reconcile(message.ConversationID, c.options.UserID, pending[0], message)
	} else {
		c.options.Cache.PrependMessage(message.ConversationID, message, false)
	}
	if c.options.Store != nil {
		_ = c.options.Store.UpsertMessage(message)
	}
}

func (c *Controller) handleDelivered(event channel.MessageDeliveredEvent) {
	if !c.options.Cache.AdvanceStatus(event.ConversationID, event.MessageID, models.StatusDelivered) {
		return
	}
	if c.options.Store != nil {
		_ = c.options.Store.UpdateMessageStatus(event.MessageID, models.StatusDelivered)
	}
}

func (c *Controller) handleRead(event channel.MessageReadEvent) {
	if len(event.MessageIDs) == 0 {
		c.options.Cache.AdvanceStatusAll(event.ConversationID, models.StatusRead)
		if c.options.Store != nil {
			for _, message := range c.options.Cache.Messages(event.ConversationID) {
				if message.Status == models.StatusRead {
					_ = c.options.Store.UpdateMessageStatus(message.ID, models.StatusRead)
				}
			}
		}
	} else {
		for _, messageID := range event.MessageIDs {
			if c.options.Cache.AdvanceStatus(event.ConversationID, messageID, models.StatusRead) && c.options.Store != nil {
				_ = c.options.Store.UpdateMessageStatus(messageID, models.StatusRead)
			}
		}
	}

	// The local user read the conversation, possibly on another device.
	if event.ReaderID == c.options.UserID {
		c.options.Cache.ZeroUnread(event.ConversationID)
		if c.options.Store != nil {
			_ = c.options.Store.SetUnreadCount(event.ConversationID, 0)
		}
	}
}

func (c *Controller) handleDeleted(event channel.MessageDeletedEvent) {
	c.options.Cache.RemoveMessage(event.ConversationID, event.MessageID)
	c.forgetDecrypted(event.MessageID)
	if c.options.Store != nil {
		_ = c.options.Store.MarkMessageDeleted(event.MessageID, event.Timestamp)
	}
}

func (c *Controller) handleReaction(event channel.MessageReactionEvent) {
	c.options.Cache.UpdateMessage(event.ConversationID, event.MessageID, func(message *models.Message) {
		applyReaction(message, event.UserID, event.Emoji, event.Removed)
	})
}
