package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"chatkit/models"
)

// UpsertMessage inserts or replaces one message in the offline mirror.
func (s *Store) UpsertMessage(message models.Message) error {
	if message.ID == "" {
		return errors.New("message id is required")
	}
	if message.ConversationID == "" {
		return errors.New("conversation id is required")
	}
	if message.SenderID == "" {
		return errors.New("sender id is required")
	}
	if message.ContentType == "" {
		message.ContentType = models.ContentTypeText
	}
	if err := validateContentType(message.ContentType); err != nil {
		return err
	}
	if message.Status == "" {
		message.Status = models.StatusSent
	}
	if err := validateMessageStatus(message.Status); err != nil {
		return err
	}
	if message.CreatedAt == 0 {
		message.CreatedAt = nowUnixMilli()
	}

	isEncrypted := 0
	if message.IsEncrypted {
		isEncrypted = 1
	}

	var replyTo *string
	if message.ReplyToID != "" {
		replyTo = &message.ReplyToID
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (
			message_id,
			conversation_id,
			sender_id,
			content,
			content_type,
			encrypted_content,
			nonce,
			is_encrypted,
			media_url,
			media_duration,
			reply_to_id,
			status,
			created_at,
			deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			content = excluded.content,
			encrypted_content = excluded.encrypted_content,
			nonce = excluded.nonce,
			is_encrypted = excluded.is_encrypted,
			status = excluded.status,
			deleted_at = excluded.deleted_at`,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.Content,
		string(message.ContentType),
		message.EncryptedContent,
		message.Nonce,
		isEncrypted,
		message.MediaURL,
		message.MediaDuration,
		nullString(replyTo),
		string(message.Status),
		message.CreatedAt,
		nullInt64(message.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert message %q: %w", message.ID, err)
	}

	return nil
}

// ListMessages returns conversation messages newest-first, optionally only
// those created before the given timestamp.
func (s *Store) ListMessages(conversationID string, limit int, beforeCreatedAt int64) ([]models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	before := beforeCreatedAt
	if before <= 0 {
		before = int64(1) << 62
	}

	rows, err := s.db.Query(
		`SELECT
			message_id,
			conversation_id,
			sender_id,
			content,
			content_type,
			encrypted_content,
			nonce,
			is_encrypted,
			media_url,
			media_duration,
			reply_to_id,
			status,
			created_at,
			deleted_at
		FROM messages
		WHERE conversation_id = ? AND created_at < ? AND deleted_at IS NULL
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?`,
		conversationID,
		before,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages for conversation %q: %w", conversationID, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanStoredMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	return messages, nil
}

// UpdateMessageStatus sets the stored status for one message.
func (s *Store) UpdateMessageStatus(messageID string, status models.MessageStatus) error {
	if messageID == "" {
		return errors.New("message id is required")
	}
	if err := validateMessageStatus(status); err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE messages SET status = ? WHERE message_id = ?`,
		string(status),
		messageID,
	)
	if err != nil {
		return fmt.Errorf("update status for message %q: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for status update %q: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkMessageDeleted tombstones one message; the row stays for audit but is
// excluded from listings.
func (s *Store) MarkMessageDeleted(messageID string, deletedAt int64) error {
	if messageID == "" {
		return errors.New("message id is required")
	}
	if deletedAt == 0 {
		deletedAt = nowUnixMilli()
	}

	res, err := s.db.Exec(
		`UPDATE messages SET deleted_at = ?, content = '', encrypted_content = '' WHERE message_id = ?`,
		deletedAt,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("mark message %q deleted: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for delete %q: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// RemoveMessage hard-deletes a row. Only reconciliation uses this, to drop
// optimistic temp-id entries once the canonical message arrives.
func (s *Store) RemoveMessage(messageID string) error {
	if messageID == "" {
		return errors.New("message id is required")
	}

	if _, err := s.db.Exec(`DELETE FROM messages WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("remove message %q: %w", messageID, err)
	}

	return nil
}

func scanStoredMessage(row scanner) (*models.Message, error) {
	var (
		message     models.Message
		contentType string
		status      string
		isEncrypted int
		replyTo     sql.NullString
		deletedAt   sql.NullInt64
	)

	if err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Content,
		&contentType,
		&message.EncryptedContent,
		&message.Nonce,
		&isEncrypted,
		&message.MediaURL,
		&message.MediaDuration,
		&replyTo,
		&status,
		&message.CreatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	message.ContentType = models.ContentType(contentType)
	message.Status = models.MessageStatus(status)
	message.IsEncrypted = isEncrypted == 1
	if replyTo.Valid {
		message.ReplyToID = replyTo.String
	}
	message.DeletedAt = int64Ptr(deletedAt)

	return &message, nil
}
