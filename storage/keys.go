package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetGroupKey returns the stored group key for a conversation.
func (s *Store) GetGroupKey(conversationID string) (*GroupKey, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id is required")
	}

	row := s.db.QueryRow(
		`SELECT conversation_id, symmetric_key, version, updated_at
		FROM group_keys
		WHERE conversation_id = ?`,
		conversationID,
	)

	var key GroupKey
	if err := row.Scan(&key.ConversationID, &key.SymmetricKey, &key.Version, &key.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group key for conversation %q: %w", conversationID, err)
	}

	return &key, nil
}

// SaveGroupKey upserts the group key for a conversation.
//
// A save carrying a version older than the stored one is rejected; equal
// versions overwrite, so re-unwrapping the same bundle is idempotent.
func (s *Store) SaveGroupKey(conversationID, symmetricKey string, version int) error {
	if conversationID == "" {
		return errors.New("conversation_id is required")
	}
	if symmetricKey == "" {
		return errors.New("symmetric_key is required")
	}
	if version <= 0 {
		version = 1
	}

	existing, err := s.GetGroupKey(conversationID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && existing.Version > version {
		return ErrStaleGroupKey
	}

	_, err = s.db.Exec(
		`INSERT INTO group_keys (conversation_id, symmetric_key, version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			symmetric_key = excluded.symmetric_key,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		conversationID,
		symmetricKey,
		version,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save group key for conversation %q: %w", conversationID, err)
	}

	return nil
}

// GetPublicKey returns the cached public key for a user.
func (s *Store) GetPublicKey(userID string) (*PublicKeyRecord, error) {
	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	row := s.db.QueryRow(
		`SELECT user_id, public_key, fetched_at
		FROM public_keys
		WHERE user_id = ?`,
		userID,
	)

	var record PublicKeyRecord
	if err := row.Scan(&record.UserID, &record.PublicKey, &record.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get public key for user %q: %w", userID, err)
	}

	return &record, nil
}

// SavePublicKey caches a user's public key.
func (s *Store) SavePublicKey(userID, publicKey string) error {
	if userID == "" {
		return errors.New("user_id is required")
	}
	if publicKey == "" {
		return errors.New("public_key is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO public_keys (user_id, public_key, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			public_key = excluded.public_key,
			fetched_at = excluded.fetched_at`,
		userID,
		publicKey,
		nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save public key for user %q: %w", userID, err)
	}

	return nil
}
