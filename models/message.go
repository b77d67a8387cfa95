package models

// ContentType identifies the kind of content a message carries.
type ContentType string

const (
	ContentTypeText  ContentType = "TEXT"
	ContentTypeImage ContentType = "IMAGE"
	ContentTypeAudio ContentType = "AUDIO"
)

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSending   MessageStatus = "SENDING"
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

// StatusRank maps a status to its position in the SENDING → READ progression.
// Unknown statuses rank below SENDING so they can never move a message backward.
func StatusRank(status MessageStatus) int {
	switch status {
	case StatusSending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	default:
		return 0
	}
}

// Reaction is one user's emoji reaction to a message.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// Message is a single conversation message.
//
// Encrypted messages arrive with EncryptedContent and Nonce set; Content then
// holds the decrypted text once decryption succeeds, or a placeholder when it
// has not happened yet. Optimistic local messages carry a temporary id until
// the server echoes back the canonical one.
type Message struct {
	ID               string        `json:"id"`
	ConversationID   string        `json:"conversationId"`
	SenderID         string        `json:"senderId"`
	ContentType      ContentType   `json:"contentType"`
	Content          string        `json:"content,omitempty"`
	EncryptedContent string        `json:"encryptedContent,omitempty"`
	Nonce            string        `json:"nonce,omitempty"`
	IsEncrypted      bool          `json:"isEncrypted,omitempty"`
	MediaURL         string        `json:"mediaUrl,omitempty"`
	MediaDuration    float64       `json:"mediaDuration,omitempty"`
	ReplyToID        string        `json:"replyToId,omitempty"`
	Reactions        []Reaction    `json:"reactions,omitempty"`
	Status           MessageStatus `json:"status"`
	CreatedAt        int64         `json:"createdAt"`
	DeletedAt        *int64        `json:"deletedAt,omitempty"`
}
