// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the admin
// statistics endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// StatsFilter narrows ChatStatistics. Zero values disable a filter.
type StatsFilter struct {
	// SenderID restricts the message count to one sender.
	SenderID uint
	From     *time.Time
	To       *time.Time
}

// ChatStats is the aggregate returned by ChatStatistics.
type ChatStats struct {
	TotalMessages int64 `json:"total_messages"`
	TotalRooms    int64 `json:"total_rooms"`
	ActiveRooms   int64 `json:"active_rooms"`
	ClosedRooms   int64 `json:"closed_rooms"`
}

// ChatStatistics counts messages and rooms created within the filter window.
// The sender filter applies to messages only.
func ChatStatistics(ctx context.Context, db *gorm.DB, f StatsFilter) (ChatStats, error) {
	var out ChatStats

	msgs := db.WithContext(ctx).Model(&domain.Message{})
	if f.SenderID != 0 {
		msgs = msgs.Where("sender_id = ?", f.SenderID)
	}
	msgs = window(msgs, f)
	if err := msgs.Count(&out.TotalMessages).Error; err != nil {
		return ChatStats{}, err
	}

	rooms := func() *gorm.DB {
		return window(db.WithContext(ctx).Model(&domain.Room{}), f)
	}
	if err := rooms().Count(&out.TotalRooms).Error; err != nil {
		return ChatStats{}, err
	}
	if err := rooms().Where("status = ?", domain.RoomStatusActive).Count(&out.ActiveRooms).Error; err != nil {
		return ChatStats{}, err
	}
	if err := rooms().Where("status = ?", domain.RoomStatusClosed).Count(&out.ClosedRooms).Error; err != nil {
		return ChatStats{}, err
	}
	return out, nil
}

func window(q *gorm.DB, f StatsFilter) *gorm.DB {
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}
	return q
}
