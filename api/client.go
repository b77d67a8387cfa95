// Package api declares the request/response operations the conversation core
// consumes. The concrete transport lives outside this module; callers inject
// an implementation of Client.
package api

import (
	"context"

	"chatkit/models"
)

// ConversationFilters narrows ListConversations results.
type ConversationFilters struct {
	Archived *bool  `json:"archived,omitempty"`
	Pinned   *bool  `json:"pinned,omitempty"`
	Search   string `json:"search,omitempty"`
}

// ConversationPage is one page of the conversation list.
type ConversationPage struct {
	Data []models.Conversation `json:"data"`
}

// MessageQuery selects a message page, newest-first, optionally before a
// known message id.
type MessageQuery struct {
	Limit  int    `json:"limit"`
	Before string `json:"before,omitempty"`
}

// MessagePage is one page of a conversation's messages.
type MessagePage struct {
	Data       []models.Message `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination describes whether older pages remain.
type Pagination struct {
	HasMore  bool   `json:"hasMore"`
	OldestID string `json:"oldestId,omitempty"`
}

// CreateConversationRequest creates a direct or group conversation.
type CreateConversationRequest struct {
	Type           models.ConversationType `json:"type"`
	ParticipantIDs []string                `json:"participantIds"`
	GroupName      string                  `json:"groupName,omitempty"`
	GroupImageURL  string                  `json:"groupImageUrl,omitempty"`
}

// SendMessageRequest is the outbound message submission payload.
//
// Encrypted sends carry EncryptedContent/Nonce with IsEncrypted set and leave
// Content empty; the server never sees plaintext.
type SendMessageRequest struct {
	Content          string             `json:"content,omitempty"`
	ContentType      models.ContentType `json:"contentType"`
	MediaURL         string             `json:"mediaUrl,omitempty"`
	MediaDuration    float64            `json:"mediaDuration,omitempty"`
	ReplyToID        string             `json:"replyToId,omitempty"`
	EncryptedContent string             `json:"encryptedContent,omitempty"`
	Nonce            string             `json:"nonce,omitempty"`
	IsEncrypted      bool               `json:"isEncrypted,omitempty"`
}

// PublicKeyResponse is one user's published encryption key.
type PublicKeyResponse struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

// UpdateKeysRequest publishes the local public key, optionally with a
// passphrase-sealed private key backup.
type UpdateKeysRequest struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey,omitempty"`
	Nonce               string `json:"nonce,omitempty"`
	Salt                string `json:"salt,omitempty"`
}

// KeyBackupResponse is the stored private key backup.
type KeyBackupResponse struct {
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	Nonce               string `json:"nonce"`
	Salt                string `json:"salt"`
}

// KeyBundle is a group key wrapped for one recipient; opaque to the server.
type KeyBundle struct {
	ConversationID  string `json:"conversationId"`
	RecipientUserID string `json:"recipientUserId"`
	EncryptedKey    string `json:"encryptedKey"`
	Nonce           string `json:"nonce"`
	SenderPublicKey string `json:"senderPublicKey"`
	Version         int    `json:"version"`
}

// OnlineContactsResponse lists currently online contact user ids.
type OnlineContactsResponse struct {
	UserIDs []string `json:"userIds"`
}

// Client is the request/response surface of the conversation backend.
type Client interface {
	ListConversations(ctx context.Context, filters ConversationFilters) (*ConversationPage, error)
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, req CreateConversationRequest) (*models.Conversation, error)

	ListMessages(ctx context.Context, conversationID string, query MessageQuery) (*MessagePage, error)
	SendMessage(ctx context.Context, conversationID string, req SendMessageRequest) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error

	GetUserPublicKey(ctx context.Context, userID string) (*PublicKeyResponse, error)
	UpdateEncryptionKeys(ctx context.Context, req UpdateKeysRequest) error
	GetEncryptionKeyBackup(ctx context.Context) (*KeyBackupResponse, error)

	GetConversationKeyBundle(ctx context.Context, conversationID string) (*KeyBundle, error)
	CreateConversationKeyBundles(ctx context.Context, conversationID string, bundles []KeyBundle) error

	MarkConversationAsRead(ctx context.Context, conversationID string) error
	GetOnlineContacts(ctx context.Context) (*OnlineContactsResponse, error)
}
