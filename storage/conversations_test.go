package storage

import (
	"errors"
	"testing"

	"chatkit/models"
)

func TestConversationMirror(t *testing.T) {
	store := newTestStore(t)

	err := store.UpsertConversation(models.Conversation{
		ID:   "conv-direct",
		Type: models.ConversationDirect,
		Participants: []models.Participant{
			{ID: "user-self"},
			{ID: "user-peer"},
		},
		LastMessage: &models.Message{Content: "preview text", CreatedAt: nowUnixMilli()},
		UnreadCount: 2,
	})
	if err != nil {
		t.Fatalf("UpsertConversation direct failed: %v", err)
	}

	err = store.UpsertConversation(models.Conversation{
		ID:        "conv-group",
		Type:      models.ConversationGroup,
		GroupName: "Turma",
		Participants: []models.Participant{
			{ID: "user-self"},
			{ID: "user-peer"},
			{ID: "user-third"},
		},
		IsPinned: true,
	})
	if err != nil {
		t.Fatalf("UpsertConversation group failed: %v", err)
	}

	conversations, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ID != "conv-group" {
		t.Fatalf("expected pinned conversation first, got %q", conversations[0].ID)
	}

	var direct models.Conversation
	for _, conversation := range conversations {
		if conversation.ID == "conv-direct" {
			direct = conversation
		}
	}
	if direct.LastMessage == nil || direct.LastMessage.Content != "preview text" {
		t.Fatalf("preview not preserved: %+v", direct.LastMessage)
	}
	if direct.UnreadCount != 2 {
		t.Fatalf("expected unread count 2, got %d", direct.UnreadCount)
	}
	if len(direct.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(direct.Participants))
	}
}

func TestDirectConversationParticipantInvariant(t *testing.T) {
	store := newTestStore(t)

	err := store.UpsertConversation(models.Conversation{
		ID:   "conv-bad",
		Type: models.ConversationDirect,
		Participants: []models.Participant{
			{ID: "only-one"},
		},
	})
	if err == nil {
		t.Fatalf("expected error for direct conversation with one participant")
	}
}

func TestSetUnreadCount(t *testing.T) {
	store := newTestStore(t)
	mustUpsertConversation(t, store, "conv-1", models.ConversationDirect)

	if err := store.SetUnreadCount("conv-1", 5); err != nil {
		t.Fatalf("SetUnreadCount failed: %v", err)
	}
	if err := store.SetUnreadCount("conv-1", 0); err != nil {
		t.Fatalf("SetUnreadCount zero failed: %v", err)
	}
	if err := store.SetUnreadCount("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	conversations, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if conversations[0].UnreadCount != 0 {
		t.Fatalf("expected unread count 0, got %d", conversations[0].UnreadCount)
	}
}
