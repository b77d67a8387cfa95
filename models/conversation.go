package models

// ConversationType distinguishes pairwise and group conversations.
type ConversationType string

const (
	ConversationDirect ConversationType = "DIRECT"
	ConversationGroup  ConversationType = "GROUP"
)

// Participant is one member of a conversation.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Conversation is one entry in the conversation list.
//
// A DIRECT conversation always has exactly two participants.
type Conversation struct {
	ID            string           `json:"id"`
	Type          ConversationType `json:"type"`
	Participants  []Participant    `json:"participants"`
	GroupName     string           `json:"groupName,omitempty"`
	GroupImageURL string           `json:"groupImageUrl,omitempty"`
	LastMessage   *Message         `json:"lastMessage,omitempty"`
	UnreadCount   int              `json:"unreadCount"`
	IsMuted       bool             `json:"isMuted"`
	IsPinned      bool             `json:"isPinned"`
	IsArchived    bool             `json:"isArchived"`
}
