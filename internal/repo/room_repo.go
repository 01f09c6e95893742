// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Room model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a room is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - A uniqueness violation (for example a second active support room for
//     the same customer and service request) is reported as ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
//
// Usage:
//
//	// Within a service transaction
//	room, err := repo.GetRoom(ctx, tx, roomID)
//	if errors.Is(err, repo.ErrNotFound) {
//	    // handle missing
//	} else if err != nil {
//	    // handle DB failure
//	}
//
// This repository is wrapped by services.ChatService, which enforces access
// rules and transaction boundaries.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// GetRoom fetches a room by ID with its customer and staff preloaded. If the
// record does not exist, it returns ErrNotFound.
func GetRoom(ctx context.Context, db *gorm.DB, id uint) (*domain.Room, error) {
	var r domain.Room
	err := db.WithContext(ctx).
		Preload("Customer").
		Preload("Staff").
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRoom inserts r and fills in its ID. Timestamps left zero are stamped
// with the current UTC time.
func CreateRoom(ctx context.Context, db *gorm.DB, r *domain.Room) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if r.LastActivity.IsZero() {
		r.LastActivity = r.CreatedAt
	}
	if r.MaxParticipants == 0 {
		r.MaxParticipants = 2
	}
	// Associations are resolved by ID only.
	if err := db.WithContext(ctx).Omit("Customer", "Staff").Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindExistingSupportRoom returns the active support room for customerID and
// serviceRequestID (nil matches rooms without a service request), or
// ErrNotFound.
func FindExistingSupportRoom(ctx context.Context, db *gorm.DB, customerID uint, serviceRequestID *uint) (*domain.Room, error) {
	q := db.WithContext(ctx).
		Where("customer_id = ? AND room_type = ? AND status = ?", customerID, domain.RoomTypeSupport, domain.RoomStatusActive)
	if serviceRequestID == nil {
		q = q.Where("service_request_id IS NULL")
	} else {
		q = q.Where("service_request_id = ?", *serviceRequestID)
	}
	var r domain.Room
	if err := q.Order("id ASC").First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// RoomsForUser returns the active rooms visible to userID given role, most
// recently active first: every active room for admins, assigned rooms for
// staff and owned rooms for customers.
func RoomsForUser(ctx context.Context, db *gorm.DB, userID uint, role domain.Role) ([]domain.Room, error) {
	q := db.WithContext(ctx).
		Preload("Customer").
		Preload("Staff").
		Where("status = ?", domain.RoomStatusActive)
	switch role {
	case domain.RoleAdmin:
	case domain.RoleStaff:
		q = q.Where("staff_id = ?", userID)
	default:
		q = q.Where("customer_id = ?", userID)
	}
	var out []domain.Room
	err := q.Order("last_activity DESC, id DESC").Find(&out).Error
	return out, err
}

// ListUnassignedSupportRooms returns active support rooms without staff,
// oldest first, so the support desk picks them up in arrival order.
func ListUnassignedSupportRooms(ctx context.Context, db *gorm.DB) ([]domain.Room, error) {
	var out []domain.Room
	err := db.WithContext(ctx).
		Preload("Customer").
		Where("room_type = ? AND status = ? AND staff_id IS NULL", domain.RoomTypeSupport, domain.RoomStatusActive).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// TouchRoomActivity sets last_activity and updated_at of room id to at.
func TouchRoomActivity(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_activity": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AssignStaff sets staff_id on room id if it is still unassigned. It returns
// ErrDuplicate when the room already has a staff member.
func AssignStaff(ctx context.Context, db *gorm.DB, id, staffID uint, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND staff_id IS NULL", id).
		Updates(map[string]any{"staff_id": staffID, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// CloseRoom applies r.Close(at) and persists the result. A room that is not
// active in the store is left alone and reported as ErrNotFound.
func CloseRoom(ctx context.Context, db *gorm.DB, r *domain.Room, at time.Time) error {
	r.Close(at)
	res := db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("id = ? AND status = ?", r.ID, domain.RoomStatusActive).
		Updates(map[string]any{"status": r.Status, "closed_at": r.ClosedAt, "updated_at": r.UpdatedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteRoom hard deletes room id. Its messages go with it through the
// ON DELETE CASCADE foreign key.
func DeleteRoom(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Room{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
