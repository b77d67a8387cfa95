package presence

import (
	"sync"
	"time"

	"chatkit/channel"
)

// DefaultTypingIdleTimeout stops the local typing signal after inactivity.
const DefaultTypingIdleTimeout = 2 * time.Second

// Emitter debounces the local user's typing signal: one start per burst of
// keystrokes, one stop on idle or when the input empties.
type Emitter struct {
	ch          channel.Channel
	userID      string
	idleTimeout time.Duration

	mu     sync.Mutex
	active map[string]*time.Timer
}

// NewEmitter creates a typing signal emitter for the local user.
func NewEmitter(ch channel.Channel, userID string, idleTimeout time.Duration) *Emitter {
	if idleTimeout <= 0 {
		idleTimeout = DefaultTypingIdleTimeout
	}

	return &Emitter{
		ch:          ch,
		userID:      userID,
		idleTimeout: idleTimeout,
		active:      make(map[string]*time.Timer),
	}
}

// Keystroke reports one keystroke in a conversation's input. The first
// keystroke after idle emits typing.start; subsequent ones only push the
// idle timer forward.
func (e *Emitter) Keystroke(conversationID string) {
	if conversationID == "" {
		return
	}

	e.mu.Lock()
	timer, active := e.active[conversationID]
	if active {
		timer.Stop()
	}
	e.active[conversationID] = time.AfterFunc(e.idleTimeout, func() {
		e.stop(conversationID)
	})
	e.mu.Unlock()

	if !active {
		_ = e.ch.Emit(channel.EventTypingStart, channel.TypingSignal{
			ConversationID: conversationID,
			UserID:         e.userID,
		})
	}
}

// InputCleared reports the input became empty; the stop signal is emitted
// immediately instead of waiting for the idle timer.
func (e *Emitter) InputCleared(conversationID string) {
	e.stop(conversationID)
}

// StartRecording signals an audio recording began. Recording has an explicit
// user-driven lifecycle, so there is no debounce or idle timer.
func (e *Emitter) StartRecording(conversationID string) {
	if conversationID == "" {
		return
	}
	_ = e.ch.Emit(channel.EventRecordingStart, channel.RecordingSignal{
		ConversationID: conversationID,
		UserID:         e.userID,
	})
}

// StopRecording signals the recording ended or was cancelled.
func (e *Emitter) StopRecording(conversationID string) {
	if conversationID == "" {
		return
	}
	_ = e.ch.Emit(channel.EventRecordingStop, channel.RecordingSignal{
		ConversationID: conversationID,
		UserID:         e.userID,
	})
}

// Close stops every conversation's typing signal.
func (e *Emitter) Close() {
	e.mu.Lock()
	conversationIDs := make([]string, 0, len(e.active))
	for conversationID := range e.active {
		conversationIDs = append(conversationIDs, conversationID)
	}
	e.mu.Unlock()

	for _, conversationID := range conversationIDs {
		e.stop(conversationID)
	}
}

func (e *Emitter) stop(conversationID string) {
	e.mu.Lock()
	timer, active := e.active[conversationID]
	if active {
		timer.Stop()
		delete(e.active, conversationID)
	}
	e.mu.Unlock()

	if active {
		_ = e.ch.Emit(channel.EventTypingStop, channel.TypingSignal{
			ConversationID: conversationID,
			UserID:         e.userID,
		})
	}
}
