// Package cache holds the local, reactive mirror of conversations and their
// message lists. It is the single source of truth for rendering and the
// target of optimistic mutation.
package cache

import (
	"sync"

	"chatkit/models"
)

// Cache mirrors the server-confirmed conversation state plus optimistic
// local entries. All mutations are atomic under one mutex, so observers
// never see a half-applied batch.
type Cache struct {
	mu sync.Mutex

	conversations []models.Conversation
	convIndex     map[string]int

	threads map[string]*thread

	subscribers []func()
}

// thread is the message arena for one conversation: messages indexed by id
// with a newest-first order slice and a pending-by-sender index for
// optimistic reconciliation.
type thread struct {
	order           []string
	byID            map[string]models.Message
	pendingBySender map[string][]string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		convIndex: make(map[string]int),
		threads:   make(map[string]*thread),
	}
}

// Subscribe registers a callback invoked after every mutation.
func (c *Cache) Subscribe(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.mu.Unlock()
}

func (c *Cache) notify() {
	c.mu.Lock()
	subscribers := append([]func(){}, c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn()
	}
}

// ReplaceConversations replaces the whole conversation list.
func (c *Cache) ReplaceConversations(conversations []models.Conversation) {
	c.mu.Lock()
	c.conversations = append([]models.Conversation(nil), conversations...)
	c.convIndex = make(map[string]int, len(c.conversations))
	for i, conversation := range c.conversations {
		c.convIndex[conversation.ID] = i
	}
	c.mu.Unlock()

	c.notify()
}

// Conversations returns a copy of the conversation list.
func (c *Cache) Conversations() []models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Conversation(nil), c.conversations...)
}

// Conversation returns one conversation by id.
func (c *Cache) Conversation(conversationID string) (models.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.convIndex[conversationID]
	if !ok {
		return models.Conversation{}, false
	}
	return c.conversations[i], true
}

// UpsertConversation inserts or updates one conversation list entry.
func (c *Cache) UpsertConversation(conversation models.Conversation) {
	c.mu.Lock()
	if i, ok := c.convIndex[conversation.ID]; ok {
		c.conversations[i] = conversation
	} else {
		c.convIndex[conversation.ID] = len(c.conversations)
		c.conversations = append(c.conversations, conversation)
	}
	c.mu.Unlock()

	c.notify()
}

// BumpPreview updates a conversation's last-message preview, optionally
// incrementing its unread counter. Used for message.new events targeting a
// conversation other than the active one.
func (c *Cache) BumpPreview(conversationID string, preview models.Message, incrementUnread bool) {
	c.mu.Lock()
	if i, ok := c.convIndex[conversationID]; ok {
		msg := preview
		c.conversations[i].LastMessage = &msg
		if incrementUnread {
			c.conversations[i].UnreadCount++
		}
	}
	c.mu.Unlock()

	c.notify()
}

// ZeroUnread resets a conversation's unread counter.
func (c *Cache) ZeroUnread(conversationID string) {
	c.mu.Lock()
	if i, ok := c.convIndex[conversationID]; ok {
		c.conversations[i].UnreadCount = 0
	}
	c.mu.Unlock()

	c.notify()
}

func (c *Cache) threadLocked(conversationID string) *thread {
	t, ok := c.threads[conversationID]
	if !ok {
		t = &thread{
			byID:            make(map[string]models.Message),
			pendingBySender: make(map[string][]string),
		}
		c.threads[conversationID] = t
	}
	return t
}

// ReplaceMessages replaces the message list of one conversation with a
// server-confirmed page, newest-first. Pending optimistic entries survive at
// the top of the list.
func (c *Cache) ReplaceMessages(conversationID string, messages []models.Message) {
	c.mu.Lock()
	old := c.threads[conversationID]
	t := &thread{
		byID:            make(map[string]models.Message, len(messages)),
		pendingBySender: make(map[string][]string),
	}

	if old != nil {
		for sender, tempIDs := range old.pendingBySender {
			for _, tempID := range tempIDs {
				if msg, ok := old.byID[tempID]; ok {
					t.order = append(t.order, tempID)
					t.byID[tempID] = msg
					t.pendingBySender[sender] = append(t.pendingBySender[sender], tempID)
				}
			}
		}
	}

	for _, msg := range messages {
		if _, dup := t.byID[msg.ID]; dup {
			continue
		}
		t.order = append(t.order, msg.ID)
		t.byID[msg.ID] = msg
	}
	c.threads[conversationID] = t
	c.mu.Unlock()

	c.notify()
}

// PrependMessage inserts one message at the newest position. Returns false
// if the id is already present (idempotent receive).
func (c *Cache) PrependMessage(conversationID string, message models.Message, pending bool) bool {
	c.mu.Lock()
	t := c.threadLocked(conversationID)
	if _, dup := t.byID[message.ID]; dup {
		c.mu.Unlock()
		return false
	}

	t.order = append([]string{message.ID}, t.order...)
	t.byID[message.ID] = message
	if pending {
		t.pendingBySender[message.SenderID] = append(t.pendingBySender[message.SenderID], message.ID)
	}
	c.mu.Unlock()

	c.notify()
	return true
}

// AppendOlder appends an older page (pagination) below existing messages,
// skipping duplicates.
func (c *Cache) AppendOlder(conversationID string, messages []models.Message) {
	c.mu.Lock()
	t := c.threadLocked(conversationID)
	for _, msg := range messages {
		if _, dup := t.byID[msg.ID]; dup {
			continue
		}
		t.order = append(t.order, msg.ID)
		t.byID[msg.ID] = msg
	}
	c.mu.Unlock()

	c.notify()
}

// Messages returns the conversation's messages newest-first.
func (c *Cache) Messages(conversationID string) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.threads[conversationID]
	if !ok {
		return nil
	}

	out := make([]models.Message, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Message returns one message by id.
func (c *Cache) Message(conversationID, messageID string) (models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.threads[conversationID]
	if !ok {
		return models.Message{}, false
	}
	msg, ok := t.byID[messageID]
	return msg, ok
}

// UpdateMessage applies a mutation to one message. Returns false if the
// message is not cached.
func (c *Cache) UpdateMessage(conversationID, messageID string, mutate func(*models.Message)) bool {
	c.mu.Lock()
	t, ok := c.threads[conversationID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	msg, ok := t.byID[messageID]
	if !ok {
		c.mu.Unlock()
		return false
	}

	mutate(&msg)
	t.byID[messageID] = msg
	c.mu.Unlock()

	c.notify()
	return true
}

// AdvanceStatus moves one message's status forward. Out-of-order older
// statuses are a no-op; status never decreases.
func (c *Cache) AdvanceStatus(conversationID, messageID string, status models.MessageStatus) bool {
	advanced := false
	c.UpdateMessage(conversationID, messageID, func(msg *models.Message) {
		if models.StatusRank(status) > models.StatusRank(msg.Status) {
			msg.Status = status
			advanced = true
		}
	})
	return advanced
}

// AdvanceStatusAll advances every cached message of a conversation, used for
// conversation-wide read receipts.
func (c *Cache) AdvanceStatusAll(conversationID string, status models.MessageStatus) {
	c.mu.Lock()
	t, ok := c.threads[conversationID]
	if ok {
		for id, msg := range t.byID {
			if models.StatusRank(status) > models.StatusRank(msg.Status) {
				msg.Status = status
				t.byID[id] = msg
			}
		}
	}
	c.mu.Unlock()

	c.notify()
}

// RemoveMessage drops one message from the thread.
func (c *Cache) RemoveMessage(conversationID, messageID string) bool {
	c.mu.Lock()
	t, ok := c.threads[conversationID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if _, ok := t.byID[messageID]; !ok {
		c.mu.Unlock()
		return false
	}

	t.removeLocked(messageID)
	c.mu.Unlock()

	c.notify()
	return true
}

// Invalidate drops a conversation's cached messages so the next render
// refetches them from the authoritative source.
func (c *Cache) Invalidate(conversationID string) {
	c.mu.Lock()
	delete(c.threads, conversationID)
	c.mu.Unlock()

	c.notify()
}

func (t *thread) removeLocked(messageID string) {
	delete(t.byID, messageID)
	for i, id := range t.order {
		if id == messageID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	for sender, tempIDs := range t.pendingBySender {
		for i, id := range tempIDs {
			if id == messageID {
				t.pendingBySender[sender] = append(tempIDs[:i], tempIDs[i+1:]...)
				if len(t.pendingBySender[sender]) == 0 {
					delete(t.pendingBySender, sender)
				}
				break
			}
		}
	}
}
