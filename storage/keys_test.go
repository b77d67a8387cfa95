package storage

import (
	"errors"
	"testing"
)

func TestGroupKeyUpsertAndVersioning(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetGroupKey("conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing group key, got %v", err)
	}

	if err := store.SaveGroupKey("conv-1", "key-v1", 1); err != nil {
		t.Fatalf("SaveGroupKey v1 failed: %v", err)
	}

	key, err := store.GetGroupKey("conv-1")
	if err != nil {
		t.Fatalf("GetGroupKey failed: %v", err)
	}
	if key.SymmetricKey != "key-v1" || key.Version != 1 {
		t.Fatalf("unexpected stored key %+v", key)
	}

	// Re-saving the same version is idempotent.
	if err := store.SaveGroupKey("conv-1", "key-v1-again", 1); err != nil {
		t.Fatalf("SaveGroupKey same version failed: %v", err)
	}

	if err := store.SaveGroupKey("conv-1", "key-v2", 2); err != nil {
		t.Fatalf("SaveGroupKey v2 failed: %v", err)
	}

	if err := store.SaveGroupKey("conv-1", "key-old", 1); !errors.Is(err, ErrStaleGroupKey) {
		t.Fatalf("expected ErrStaleGroupKey for downgrade, got %v", err)
	}

	key, err = store.GetGroupKey("conv-1")
	if err != nil {
		t.Fatalf("GetGroupKey after upgrade failed: %v", err)
	}
	if key.SymmetricKey != "key-v2" || key.Version != 2 {
		t.Fatalf("expected v2 key to survive, got %+v", key)
	}
}

func TestPublicKeyCache(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.GetPublicKey("user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing public key, got %v", err)
	}

	if err := store.SavePublicKey("user-1", "pk-base64"); err != nil {
		t.Fatalf("SavePublicKey failed: %v", err)
	}

	record, err := store.GetPublicKey("user-1")
	if err != nil {
		t.Fatalf("GetPublicKey failed: %v", err)
	}
	if record.PublicKey != "pk-base64" {
		t.Fatalf("expected public key %q, got %q", "pk-base64", record.PublicKey)
	}
	if record.FetchedAt == 0 {
		t.Fatalf("expected fetched_at to be stamped")
	}
}
