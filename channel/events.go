package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"chatkit/models"
)

// Inbound event names.
const (
	EventMessageNew       = "message.new"
	EventMessageDelivered = "message.delivered"
	EventMessageRead      = "message.read"
	EventMessageDeleted   = "message.deleted"
	EventMessageReaction  = "message.reaction"
	EventTypingUpdate     = "typing.update"
	EventRecordingUpdate  = "recording.update"
	EventPresenceUpdate   = "presence.update"
)

// Emitted event names.
const (
	EventJoin           = "join"
	EventLeave          = "leave"
	EventTypingStart    = "typing.start"
	EventTypingStop     = "typing.stop"
	EventRecordingStart = "recording.start"
	EventRecordingStop  = "recording.stop"
)

var (
	// ErrInvalidEventType indicates the event type tag is missing or unknown.
	ErrInvalidEventType = errors.New("channel: invalid event type")
)

type envelope struct {
	Type string `json:"type"`
}

// MessageNewEvent carries a newly created message.
type MessageNewEvent struct {
	Type    string         `json:"type"`
	Message models.Message `json:"message"`
}

// MessageDeliveredEvent advances one message to DELIVERED.
type MessageDeliveredEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Timestamp      int64  `json:"timestamp"`
}

// MessageReadEvent marks messages of a conversation as read.
//
// An empty MessageIDs list means every message the reader had received.
type MessageReadEvent struct {
	Type           string   `json:"type"`
	ConversationID string   `json:"conversationId"`
	ReaderID       string   `json:"readerId"`
	MessageIDs     []string `json:"messageIds,omitempty"`
	Timestamp      int64    `json:"timestamp"`
}

// MessageDeletedEvent removes one message.
type MessageDeletedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Timestamp      int64  `json:"timestamp"`
}

// MessageReactionEvent adds or removes one reaction.
type MessageReactionEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	Emoji          string `json:"emoji"`
	Removed        bool   `json:"removed,omitempty"`
}

// TypingEvent signals a user started or stopped typing.
type TypingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// RecordingEvent signals a user started or stopped recording audio.
type RecordingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsRecording    bool   `json:"isRecording"`
}

// PresenceEvent signals a user's online state changed.
type PresenceEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"userId"`
	IsOnline   bool   `json:"isOnline"`
	LastSeenAt *int64 `json:"lastSeenAt,omitempty"`
}

// DecodeEvent parses one inbound payload into its typed event.
//
// Required fields are validated here so event consumers never see
// half-formed events.
func DecodeEvent(payload []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.Type == "" {
		return nil, ErrInvalidEventType
	}

	switch env.Type {
	case EventMessageNew:
		var event MessageNewEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.Message.ID == "" || event.Message.ConversationID == "" {
			return nil, fmt.Errorf("event %s: message id and conversation id are required", env.Type)
		}
		return event, nil

	case EventMessageDelivered:
		var event MessageDeliveredEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.MessageID == "" {
			return nil, fmt.Errorf("event %s: message id is required", env.Type)
		}
		return event, nil

	case EventMessageRead:
		var event MessageReadEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.ConversationID == "" {
			return nil, fmt.Errorf("event %s: conversation id is required", env.Type)
		}
		return event, nil

	case EventMessageDeleted:
		var event MessageDeletedEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.MessageID == "" {
			return nil, fmt.Errorf("event %s: message id is required", env.Type)
		}
		return event, nil

	case EventMessageReaction:
		var event MessageReactionEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.MessageID == "" || event.UserID == "" {
			return nil, fmt.Errorf("event %s: message id and user id are required", env.Type)
		}
		return event, nil

	case EventTypingUpdate:
		var event TypingEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.ConversationID == "" || event.UserID == "" {
			return nil, fmt.Errorf("event %s: conversation id and user id are required", env.Type)
		}
		return event, nil

	case EventRecordingUpdate:
		var event RecordingEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.ConversationID == "" || event.UserID == "" {
			return nil, fmt.Errorf("event %s: conversation id and user id are required", env.Type)
		}
		return event, nil

	case EventPresenceUpdate:
		var event PresenceEvent
		if err := unmarshalEvent(payload, &event); err != nil {
			return nil, err
		}
		if event.UserID == "" {
			return nil, fmt.Errorf("event %s: user id is required", env.Type)
		}
		return event, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, env.Type)
	}
}

func unmarshalEvent(payload []byte, target any) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
