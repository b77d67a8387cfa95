// Package presence aggregates online/offline, typing and recording signals
// per user and conversation, with safety-net expiry for lost stop events.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatkit/api"
	"chatkit/channel"
	"chatkit/models"
)

// ContactSource provides the initial online contact snapshot.
type ContactSource interface {
	GetOnlineContacts(ctx context.Context) (*api.OnlineContactsResponse, error)
}

const (
	// DefaultTypingTTL clears a typing entry whose stop event was lost.
	DefaultTypingTTL = 5 * time.Second
	// DefaultRecordingTTL clears a recording entry whose stop event was lost.
	DefaultRecordingTTL = 30 * time.Second
)

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	TypingTTL    time.Duration
	RecordingTTL time.Duration

	// OnChange fires after every state mutation.
	OnChange func()
}

// Tracker owns presence state for one client instance. State lives on the
// tracker, never in package globals, so instances stay independent.
type Tracker struct {
	options TrackerOptions

	mu        sync.Mutex
	online    map[string]models.PresenceEntry
	typing    map[string]map[string]*time.Timer
	recording map[string]map[string]*time.Timer
}

// NewTracker creates a tracker with defaulted expiry windows.
func NewTracker(options TrackerOptions) *Tracker {
	if options.TypingTTL <= 0 {
		options.TypingTTL = DefaultTypingTTL
	}
	if options.RecordingTTL <= 0 {
		options.RecordingTTL = DefaultRecordingTTL
	}

	return &Tracker{
		options:   options,
		online:    make(map[string]models.PresenceEntry),
		typing:    make(map[string]map[string]*time.Timer),
		recording: make(map[string]map[string]*time.Timer),
	}
}

// Bind subscribes the tracker to a realtime channel. Decode failures are
// ignored here; the messaging layer reports them.
func (t *Tracker) Bind(ch channel.Channel) {
	ch.OnEvent(func(payload []byte) {
		event, err := channel.DecodeEvent(payload)
		if err != nil {
			return
		}
		t.Apply(event)
	})
}

// Apply consumes one decoded channel event. Events the tracker does not care
// about are ignored.
func (t *Tracker) Apply(event any) {
	switch e := event.(type) {
	case channel.PresenceEvent:
		t.SetOnline(e.UserID, e.IsOnline, e.LastSeenAt)
	case channel.TypingEvent:
		if e.IsTyping {
			t.StartActivity(e.ConversationID, e.UserID, models.ActivityTyping)
		} else {
			t.StopActivity(e.ConversationID, e.UserID, models.ActivityTyping)
		}
	case channel.RecordingEvent:
		if e.IsRecording {
			t.StartActivity(e.ConversationID, e.UserID, models.ActivityRecording)
		} else {
			t.StopActivity(e.ConversationID, e.UserID, models.ActivityRecording)
		}
	}
}

// SeedFromContacts fetches the current online contact snapshot and seeds the
// tracker with it. Typically called once after connecting; later changes
// arrive as presence events.
func (t *Tracker) SeedFromContacts(ctx context.Context, source ContactSource) error {
	response, err := source.GetOnlineContacts(ctx)
	if err != nil {
		return err
	}

	t.SeedOnline(response.UserIDs)
	return nil
}

// SeedOnline marks a set of users online.
func (t *Tracker) SeedOnline(userIDs []string) {
	t.mu.Lock()
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		t.online[userID] = models.PresenceEntry{UserID: userID, IsOnline: true}
	}
	t.mu.Unlock()

	t.notifyChange()
}

// SetOnline records one user's online state.
func (t *Tracker) SetOnline(userID string, isOnline bool, lastSeenAt *int64) {
	if userID == "" {
		return
	}

	t.mu.Lock()
	entry := models.PresenceEntry{UserID: userID, IsOnline: isOnline, LastSeenAt: lastSeenAt}
	if !isOnline && lastSeenAt == nil {
		now := time.Now().UnixMilli()
		entry.LastSeenAt = &now
	}
	t.online[userID] = entry
	t.mu.Unlock()

	t.notifyChange()
}

// Presence returns one user's presence entry.
func (t *Tracker) Presence(userID string) (models.PresenceEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.online[userID]
	return entry, ok
}

// StartActivity records a typing/recording start with a safety-net expiry.
// A repeated start for the same user keeps one entry and resets its timer.
func (t *Tracker) StartActivity(conversationID, userID string, kind models.ActivityKind) {
	if conversationID == "" || userID == "" {
		return
	}

	t.mu.Lock()
	entries, ttl := t.activityLocked(kind)
	if entries == nil {
		t.mu.Unlock()
		return
	}

	byUser, ok := entries[conversationID]
	if !ok {
		byUser = make(map[string]*time.Timer)
		entries[conversationID] = byUser
	}
	if timer, exists := byUser[userID]; exists {
		timer.Stop()
	}
	byUser[userID] = time.AfterFunc(ttl, func() {
		t.expireActivity(conversationID, userID, kind)
	})
	t.mu.Unlock()

	t.notifyChange()
}

// StopActivity removes an entry and cancels its expiry timer.
func (t *Tracker) StopActivity(conversationID, userID string, kind models.ActivityKind) {
	t.mu.Lock()
	removed := t.removeActivityLocked(conversationID, userID, kind)
	t.mu.Unlock()

	if removed {
		t.notifyChange()
	}
}

// ActiveUsers returns the users currently typing or recording in a
// conversation, sorted for stable rendering.
func (t *Tracker) ActiveUsers(conversationID string, kind models.ActivityKind) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, _ := t.activityLocked(kind)
	if entries == nil {
		return nil
	}

	byUser := entries[conversationID]
	if len(byUser) == 0 {
		return nil
	}

	users := make([]string, 0, len(byUser))
	for userID := range byUser {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Close cancels every outstanding expiry timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	for _, byUser := range t.typing {
		for _, timer := range byUser {
			timer.Stop()
		}
	}
	for _, byUser := range t.recording {
		for _, timer := range byUser {
			timer.Stop()
		}
	}
	t.typing = make(map[string]map[string]*time.Timer)
	t.recording = make(map[string]map[string]*time.Timer)
	t.mu.Unlock()
}

func (t *Tracker) expireActivity(conversationID, userID string, kind models.ActivityKind) {
	t.mu.Lock()
	removed := t.removeActivityLocked(conversationID, userID, kind)
	t.mu.Unlock()

	if removed {
		t.notifyChange()
	}
}

func (t *Tracker) removeActivityLocked(conversationID, userID string, kind models.ActivityKind) bool {
	entries, _ := t.activityLocked(kind)
	if entries == nil {
		return false
	}

	byUser, ok := entries[conversationID]
	if !ok {
		return false
	}
	timer, ok := byUser[userID]
	if !ok {
		return false
	}

	timer.Stop()
	delete(byUser, userID)
	if len(byUser) == 0 {
		delete(entries, conversationID)
	}
	return true
}

func (t *Tracker) activityLocked(kind models.ActivityKind) (map[string]map[string]*time.Timer, time.Duration) {
	switch kind {
	case models.ActivityTyping:
		return t.typing, t.options.TypingTTL
	case models.ActivityRecording:
		return t.recording, t.options.RecordingTTL
	default:
		return nil, 0
	}
}

func (t *Tracker) notifyChange() {
	if t.options.OnChange != nil {
		t.options.OnChange()
	}
}
