package models

// PresenceEntry is the online/offline state of one user.
type PresenceEntry struct {
	UserID     string `json:"userId"`
	IsOnline   bool   `json:"isOnline"`
	LastSeenAt *int64 `json:"lastSeenAt,omitempty"`
}

// ActivityKind identifies a transient per-conversation activity signal.
type ActivityKind string

const (
	ActivityTyping    ActivityKind = "typing"
	ActivityRecording ActivityKind = "recording"
)

// ActivityEntry is one user's transient activity inside a conversation.
type ActivityEntry struct {
	ConversationID string       `json:"conversationId"`
	UserID         string       `json:"userId"`
	Kind           ActivityKind `json:"kind"`
}
