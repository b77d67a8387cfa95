// Package channel defines the realtime transport boundary of the
// conversation core and the typed events that cross it. The transport
// implementation (socket handling, reconnection) lives outside this module.
package channel

// Channel is a bidirectional, reconnecting event channel.
//
// Inbound events are delivered as raw payloads carrying a "type" tag and are
// decoded at the boundary with DecodeEvent. The channel gives no delivery
// guarantee across a disconnect window; subscribers must resynchronize from
// the request/response source on reconnect.
type Channel interface {
	// Emit publishes one named event.
	Emit(event string, payload any) error

	// Join subscribes this client to a conversation room.
	Join(conversationID string) error
	// Leave unsubscribes this client from a conversation room.
	Leave(conversationID string) error

	// OnEvent registers an inbound payload handler. Every registered
	// handler observes every event.
	OnEvent(handler func(payload []byte))
	// OnReconnect registers a callback fired after the underlying
	// connection has been re-established.
	OnReconnect(handler func())
}

// TypingSignal is the payload for typing.start / typing.stop emissions.
type TypingSignal struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// RecordingSignal is the payload for recording.start / recording.stop emissions.
type RecordingSignal struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}
