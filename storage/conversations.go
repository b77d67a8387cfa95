package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chatkit/models"
)

// UpsertConversation inserts or updates one conversation list entry.
func (s *Store) UpsertConversation(conversation models.Conversation) error {
	if conversation.ID == "" {
		return errors.New("conversation id is required")
	}
	if err := validateConversationType(conversation.Type); err != nil {
		return err
	}
	if conversation.Type == models.ConversationDirect && len(conversation.Participants) != 2 {
		return fmt.Errorf("direct conversation %q must have exactly 2 participants, got %d",
			conversation.ID, len(conversation.Participants))
	}

	participants, err := json.Marshal(conversation.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants for conversation %q: %w", conversation.ID, err)
	}

	var (
		preview       string
		lastMessageAt *int64
	)
	if conversation.LastMessage != nil {
		preview = conversation.LastMessage.Content
		at := conversation.LastMessage.CreatedAt
		lastMessageAt = &at
	}

	_, err = s.db.Exec(
		`INSERT INTO conversations (
			conversation_id,
			conversation_type,
			group_name,
			group_image_url,
			participants,
			last_message_preview,
			last_message_at,
			unread_count,
			is_muted,
			is_pinned,
			is_archived
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			group_name = excluded.group_name,
			group_image_url = excluded.group_image_url,
			participants = excluded.participants,
			last_message_preview = excluded.last_message_preview,
			last_message_at = excluded.last_message_at,
			unread_count = excluded.unread_count,
			is_muted = excluded.is_muted,
			is_pinned = excluded.is_pinned,
			is_archived = excluded.is_archived`,
		conversation.ID,
		string(conversation.Type),
		conversation.GroupName,
		conversation.GroupImageURL,
		string(participants),
		preview,
		nullInt64(lastMessageAt),
		conversation.UnreadCount,
		boolToInt(conversation.IsMuted),
		boolToInt(conversation.IsPinned),
		boolToInt(conversation.IsArchived),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation %q: %w", conversation.ID, err)
	}

	return nil
}

// ListConversations returns non-archived conversations, most recent first.
func (s *Store) ListConversations() ([]models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT
			conversation_id,
			conversation_type,
			group_name,
			group_image_url,
			participants,
			last_message_preview,
			last_message_at,
			unread_count,
			is_muted,
			is_pinned,
			is_archived
		FROM conversations
		WHERE is_archived = 0
		ORDER BY is_pinned DESC, last_message_at DESC, conversation_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanStoredConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, *conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	return conversations, nil
}

// SetUnreadCount overwrites the unread counter for one conversation.
func (s *Store) SetUnreadCount(conversationID string, count int) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}
	if count < 0 {
		count = 0
	}

	res, err := s.db.Exec(
		`UPDATE conversations SET unread_count = ? WHERE conversation_id = ?`,
		count,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("set unread count for conversation %q: %w", conversationID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for unread update %q: %w", conversationID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func scanStoredConversation(row scanner) (*models.Conversation, error) {
	var (
		conversation     models.Conversation
		conversationType string
		participantsRaw  string
		preview          string
		lastMessageAt    sql.NullInt64
		isMuted          int
		isPinned         int
		isArchived       int
	)

	if err := row.Scan(
		&conversation.ID,
		&conversationType,
		&conversation.GroupName,
		&conversation.GroupImageURL,
		&participantsRaw,
		&preview,
		&lastMessageAt,
		&conversation.UnreadCount,
		&isMuted,
		&isPinned,
		&isArchived,
	); err != nil {
		return nil, err
	}

	conversation.Type = models.ConversationType(conversationType)
	if err := json.Unmarshal([]byte(participantsRaw), &conversation.Participants); err != nil {
		return nil, fmt.Errorf("parse participants for conversation %q: %w", conversation.ID, err)
	}
	conversation.IsMuted = isMuted == 1
	conversation.IsPinned = isPinned == 1
	conversation.IsArchived = isArchived == 1

	if preview != "" || lastMessageAt.Valid {
		conversation.LastMessage = &models.Message{
			ConversationID: conversation.ID,
			Content:        preview,
			CreatedAt:      lastMessageAt.Int64,
		}
	}

	return &conversation, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
