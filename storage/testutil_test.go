package storage

import (
	"testing"

	"chatkit/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustUpsertConversation(t *testing.T, store *Store, id string, conversationType models.ConversationType) {
	t.Helper()

	participants := []models.Participant{
		{ID: "user-self", Name: "Self"},
		{ID: "user-peer", Name: "Peer"},
	}
	if conversationType == models.ConversationGroup {
		participants = append(participants, models.Participant{ID: "user-third", Name: "Third"})
	}

	err := store.UpsertConversation(models.Conversation{
		ID:           id,
		Type:         conversationType,
		Participants: participants,
	})
	if err != nil {
		t.Fatalf("upsert conversation %q: %v", id, err)
	}
}
