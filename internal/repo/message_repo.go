// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// ListOptions selects a page of room history.
type ListOptions struct {
	// BeforeID, when non-zero, restricts the page to messages older than it.
	BeforeID uint
	// Limit caps the page; zero or negative means no cap.
	Limit int
	// IncludeDeleted keeps soft-deleted messages in the page.
	IncludeDeleted bool
}

// CreateMessage inserts m and fills in its ID. Timestamps left zero are
// stamped with the current UTC time.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.MessageType == "" {
		m.MessageType = domain.MessageTypeText
	}
	return db.WithContext(ctx).Omit("Room", "Sender", "ReplyTo").Create(m).Error
}

// GetMessage fetches a message by ID with its sender and replied-to message
// preloaded, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id uint) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Preload("Sender").
		Preload("ReplyTo").
		First(&m, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessage applies patch (column -> value) to message id. It returns
// ErrNotFound if no row matched.
func UpdateMessage(ctx context.Context, db *gorm.DB, id uint, patch map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkMessagesRead marks every unread message in roomID not sent by readerID
// as read at at, and returns how many rows changed. System messages count as
// not sent by the reader.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, roomID, readerID uint, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ? AND is_read = ? AND (sender_id IS NULL OR sender_id <> ?)", roomID, false, readerID).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// ListMessages returns a page of room history ordered oldest to newest. The
// page holds the newest Limit messages matching opts.
func ListMessages(ctx context.Context, db *gorm.DB, roomID uint, opts ListOptions) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Preload("Sender").
		Preload("ReplyTo").
		Where("room_id = ?", roomID)
	if !opts.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if opts.BeforeID > 0 {
		q = q.Where("id < ?", opts.BeforeID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	var out []domain.Message
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastMessage returns the newest message in roomID, deleted or not, or
// ErrNotFound for an empty room.
func LastMessage(ctx context.Context, db *gorm.DB, roomID uint) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Preload("Sender").
		Preload("ReplyTo").
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountUnread returns how many messages in roomID the user has not read.
func CountUnread(ctx context.Context, db *gorm.DB, roomID, userID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("room_id = ? AND is_read = ? AND (sender_id IS NULL OR sender_id <> ?)", roomID, false, userID).
		Count(&n).Error
	return n, err
}

// SearchMessages returns non-deleted messages in roomID whose body contains
// query, newest first.
func SearchMessages(ctx context.Context, db *gorm.DB, roomID uint, query string, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Preload("Sender").
		Preload("ReplyTo").
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Where("instr(message, ?) > 0", query).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Message
	err := q.Find(&out).Error
	return out, err
}

// MessagesStats returns the number of messages in roomID and the greatest
// updated_at among them, for history ETags. When the room has no messages,
// the count is 0 and maxUpdatedAt is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, roomID uint) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("room_id = ?", roomID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
