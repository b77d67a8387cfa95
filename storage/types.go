package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatkit/models"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrStaleGroupKey indicates a save attempted to downgrade a group key version.
	ErrStaleGroupKey = errors.New("storage: group key version is older than stored version")
)

// GroupKey is the locally-held symmetric key for one group conversation.
type GroupKey struct {
	ConversationID string
	SymmetricKey   string
	Version        int
	UpdatedAt      int64
}

// PublicKeyRecord is a cached public key for one remote user.
type PublicKeyRecord struct {
	UserID    string
	PublicKey string
	FetchedAt int64
}

func validateContentType(contentType models.ContentType) error {
	switch contentType {
	case models.ContentTypeText, models.ContentTypeImage, models.ContentTypeAudio:
		return nil
	default:
		return fmt.Errorf("invalid content type %q", contentType)
	}
}

func validateMessageStatus(status models.MessageStatus) error {
	switch status {
	case models.StatusSending, models.StatusSent, models.StatusDelivered, models.StatusRead:
		return nil
	default:
		return fmt.Errorf("invalid message status %q", status)
	}
}

func validateConversationType(conversationType models.ConversationType) error {
	switch conversationType {
	case models.ConversationDirect, models.ConversationGroup:
		return nil
	default:
		return fmt.Errorf("invalid conversation type %q", conversationType)
	}
}

func nullString(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func nullInt64(ptr *int64) sql.NullInt64 {
	if ptr == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *ptr, Valid: true}
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

type scanner interface {
	Scan(dest ...any) error
}
