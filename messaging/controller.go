// Package messaging orchestrates the message lifecycle: encrypt, optimistic
// insert, network send, reconciliation, and inbound event handling.
package messaging

import (
	"context"
	"errors"
	"sync"

	"chatkit/api"
	"chatkit/cache"
	"chatkit/channel"
	"chatkit/crypto"
	"chatkit/directory"
	"chatkit/models"
	"chatkit/storage"
)

const defaultPageSize = 50

// Options configures a Controller.
type Options struct {
	API       api.Client
	Channel   channel.Channel
	Cache     *cache.Cache
	Directory *directory.Directory

	// Store persists key material and the offline mirror. Nil means secure
	// storage is unavailable: every encrypt/decrypt fails closed.
	Store *storage.Store

	// UserID is the local authenticated user.
	UserID string

	// KeyPair is the local long-lived keypair. Nil means encryption is
	// unavailable; sends and decrypts fail closed.
	KeyPair *crypto.KeyPair

	PageSize int

	// OnError receives failures from the async receive path.
	OnError func(error)
}

// Controller owns the conversation core's runtime state.
type Controller struct {
	options Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	activeMu             sync.Mutex
	activeConversationID string

	decryptMu sync.Mutex
	inflight  map[string]struct{}
	decrypted map[string]struct{}
}

// NewController creates a controller with validated configuration.
func NewController(options Options) (*Controller, error) {
	if options.API == nil {
		return nil, errors.New("api client is required")
	}
	if options.Channel == nil {
		return nil, errors.New("channel is required")
	}
	if options.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if options.Directory == nil {
		return nil, errors.New("directory is required")
	}
	if options.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if options.PageSize <= 0 {
		options.PageSize = defaultPageSize
	}
	if options.OnError == nil {
		options.OnError = func(error) {}
	}

	return &Controller{
		options:   options,
		inflight:  make(map[string]struct{}),
		decrypted: make(map[string]struct{}),
	}, nil
}

// Start subscribes to the realtime channel and begins processing events.
func (c *Controller) Start() error {
	if c.ctx != nil {
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.options.Channel.OnEvent(c.handleEventPayload)
	c.options.Channel.OnReconnect(c.handleReconnect)

	return nil
}

// Close stops background work and waits for in-flight tasks.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// OpenConversation makes a conversation active: joins its room, loads the
// newest message page, marks it read, and starts opportunistic decryption.
func (c *Controller) OpenConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	c.activeMu.Lock()
	previous := c.activeConversationID
	c.activeConversationID = conversationID
	c.activeMu.Unlock()

	if previous != "" && previous != conversationID {
		_ = c.options.Channel.Leave(previous)
	}
	if err := c.options.Channel.Join(conversationID); err != nil {
		return err
	}

	if err := c.refreshMessages(ctx, conversationID); err != nil {
		return err
	}

	if err := c.options.API.MarkConversationAsRead(ctx, conversationID); err != nil {
		return err
	}
	c.options.Cache.ZeroUnread(conversationID)
	if c.options.Store != nil {
		_ = c.options.Store.SetUnreadCount(conversationID, 0)
	}

	return nil
}

// CloseConversation leaves the active conversation's room.
func (c *Controller) CloseConversation(conversationID string) {
	c.activeMu.Lock()
	if c.activeConversationID == conversationID {
		c.activeConversationID = ""
	}
	c.activeMu.Unlock()

	_ = c.options.Channel.Leave(conversationID)
}

// ActiveConversationID returns the currently open conversation, if any.
func (c *Controller) ActiveConversationID() string {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return c.activeConversationID
}

// RefreshConversations reloads the conversation list from the backend.
func (c *Controller) RefreshConversations(ctx context.Context) error {
	page, err := c.options.API.ListConversations(ctx, api.ConversationFilters{})
	if err != nil {
		return err
	}

	c.options.Cache.ReplaceConversations(page.Data)
	if c.options.Store != nil {
		for _, conversation := range page.Data {
			_ = c.options.Store.UpsertConversation(conversation)
		}
	}

	return nil
}

// LoadOlderMessages fetches the page preceding the oldest cached message.
func (c *Controller) LoadOlderMessages(ctx context.Context, conversationID string) (bool, error) {
	messages := c.options.Cache.Messages(conversationID)
	query := api.MessageQuery{Limit: c.options.PageSize}
	if len(messages) > 0 {
		query.Before = messages[len(messages)-1].ID
	}

	page, err := c.options.API.ListMessages(ctx, conversationID, query)
	if err != nil {
		return false, err
	}

	c.options.Cache.AppendOlder(conversationID, page.Data)
	c.persistMessages(page.Data)
	c.decryptConversation(conversationID)

	return page.Pagination.HasMore, nil
}

func (c *Controller) refreshMessages(ctx context.Context, conversationID string) error {
	page, err := c.options.API.ListMessages(ctx, conversationID, api.MessageQuery{Limit: c.options.PageSize})
	if err != nil {
		return err
	}

	c.options.Cache.ReplaceMessages(conversationID, page.Data)
	c.persistMessages(page.Data)
	c.decryptConversation(conversationID)

	return nil
}

// handleReconnect resynchronizes from the authoritative request/response
// source: events buffered across the disconnect window are never trusted.
func (c *Controller) handleReconnect() {
	ctx := c.ctx
	if ctx == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		active := c.ActiveConversationID()
		if active != "" {
			c.options.Cache.Invalidate(active)
			if err := c.options.Channel.Join(active); err != nil {
				c.options.OnError(err)
			}
			if err := c.refreshMessages(ctx, active); err != nil {
				c.options.OnError(err)
			}
		}
		if err := c.RefreshConversations(ctx); err != nil {
			c.options.OnError(err)
		}
	}()
}

func (c *Controller) persistMessages(messages []models.Message) {
	if c.options.Store == nil {
		return
	}
	for _, message := range messages {
		_ = c.options.Store.UpsertMessage(message)
	}
}
