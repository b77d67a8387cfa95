package storage

import (
	"errors"
	"testing"

	"chatkit/models"
)

func TestMessageMirrorCRUD(t *testing.T) {
	store := newTestStore(t)
	mustUpsertConversation(t, store, "conv-1", models.ConversationDirect)

	base := nowUnixMilli()

	if err := store.UpsertMessage(models.Message{
		ID:             "msg-old",
		ConversationID: "conv-1",
		SenderID:       "user-peer",
		Content:        "old message",
		ContentType:    models.ContentTypeText,
		Status:         models.StatusRead,
		CreatedAt:      base - 10_000,
	}); err != nil {
		t.Fatalf("UpsertMessage old failed: %v", err)
	}

	if err := store.UpsertMessage(models.Message{
		ID:               "msg-new",
		ConversationID:   "conv-1",
		SenderID:         "user-self",
		Content:          "new message",
		ContentType:      models.ContentTypeText,
		EncryptedContent: "cipher",
		Nonce:            "nonce",
		IsEncrypted:      true,
		Status:           models.StatusSent,
		CreatedAt:        base,
	}); err != nil {
		t.Fatalf("UpsertMessage new failed: %v", err)
	}

	messages, err := store.ListMessages("conv-1", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].ID != "msg-new" || messages[1].ID != "msg-old" {
		t.Fatalf("messages are not ordered newest-first: %q, %q", messages[0].ID, messages[1].ID)
	}
	if !messages[0].IsEncrypted || messages[0].EncryptedContent != "cipher" {
		t.Fatalf("encrypted fields not preserved: %+v", messages[0])
	}

	older, err := store.ListMessages("conv-1", 10, base)
	if err != nil {
		t.Fatalf("ListMessages before cursor failed: %v", err)
	}
	if len(older) != 1 || older[0].ID != "msg-old" {
		t.Fatalf("expected only msg-old before cursor, got %+v", older)
	}

	if err := store.UpdateMessageStatus("msg-new", models.StatusDelivered); err != nil {
		t.Fatalf("UpdateMessageStatus failed: %v", err)
	}
	updated, err := store.ListMessages("conv-1", 1, 0)
	if err != nil {
		t.Fatalf("ListMessages after status update failed: %v", err)
	}
	if updated[0].Status != models.StatusDelivered {
		t.Fatalf("expected DELIVERED, got %q", updated[0].Status)
	}

	if err := store.UpdateMessageStatus("missing", models.StatusRead); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing message, got %v", err)
	}
}

func TestMessageTombstoneExcludedFromListing(t *testing.T) {
	store := newTestStore(t)
	mustUpsertConversation(t, store, "conv-1", models.ConversationDirect)

	if err := store.UpsertMessage(models.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-peer",
		Content:        "to be deleted",
		ContentType:    models.ContentTypeText,
		Status:         models.StatusSent,
	}); err != nil {
		t.Fatalf("UpsertMessage failed: %v", err)
	}

	if err := store.MarkMessageDeleted("msg-1", 0); err != nil {
		t.Fatalf("MarkMessageDeleted failed: %v", err)
	}

	messages, err := store.ListMessages("conv-1", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected tombstoned message to be excluded, got %d rows", len(messages))
	}
}

func TestRemoveMessageDropsOptimisticRow(t *testing.T) {
	store := newTestStore(t)
	mustUpsertConversation(t, store, "conv-1", models.ConversationDirect)

	if err := store.UpsertMessage(models.Message{
		ID:             "temp-abc",
		ConversationID: "conv-1",
		SenderID:       "user-self",
		Content:        "optimistic",
		ContentType:    models.ContentTypeText,
		Status:         models.StatusSending,
	}); err != nil {
		t.Fatalf("UpsertMessage failed: %v", err)
	}

	if err := store.RemoveMessage("temp-abc"); err != nil {
		t.Fatalf("RemoveMessage failed: %v", err)
	}

	messages, err := store.ListMessages("conv-1", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected temp row to be gone, got %d rows", len(messages))
	}
}

func TestUpsertMessageBeforeConversationMirrored(t *testing.T) {
	store := newTestStore(t)

	// Events can outrun the conversation list sync; the mirror accepts the
	// message and the conversation row catches up later.
	if err := store.UpsertMessage(models.Message{
		ID:             "msg-early",
		ConversationID: "conv-unseen",
		SenderID:       "user-peer",
		Content:        "chegou antes",
		ContentType:    models.ContentTypeText,
		Status:         models.StatusSent,
		CreatedAt:      nowUnixMilli(),
	}); err != nil {
		t.Fatalf("UpsertMessage without conversation row failed: %v", err)
	}

	messages, err := store.ListMessages("conv-unseen", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != "msg-early" {
		t.Fatalf("expected the early message mirrored, got %+v", messages)
	}
}
