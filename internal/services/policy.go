// Package services – Policy
//
// Policy is the authorization oracle. Every decision is a pure function of
// the actor and durable state already loaded from the store; it never looks
// at in-memory subscriptions. Callers load fresh rows inside the same
// transaction that performs the mutation.
package services

import (
	"time"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// DefaultEditWindow is how long after creation a sender may edit a message.
const DefaultEditWindow = 600 * time.Second

// Policy evaluates access rules for rooms and messages.
type Policy struct {
	EditWindow time.Duration
}

func (p Policy) window() time.Duration {
	if p.EditWindow <= 0 {
		return DefaultEditWindow
	}
	return p.EditWindow
}

// CanAccessRoom allows the room's customer, its staff member and admins to
// join, read and post.
func (p Policy) CanAccessRoom(actor domain.Identity, room *domain.Room) error {
	if actor.IsAdmin() || room.HasParticipant(actor.ID) {
		return nil
	}
	return ErrAccessDenied
}

// CanEditMessage allows the sender to edit a live, non-system message while
// now - created_at <= EditWindow.
func (p Policy) CanEditMessage(actor domain.Identity, m *domain.Message, now time.Time) error {
	if m.IsDeleted {
		return ErrMessageDeleted
	}
	if m.IsSystem() {
		return ErrSystemMessage
	}
	if !m.SentBy(actor.ID) {
		return ErrEditNotOwner
	}
	if now.After(m.EditableUntil(p.window())) {
		return editWindowError(p.window().Minutes())
	}
	return nil
}

// CanDeleteMessage allows the sender or an admin to soft delete a live,
// non-system message.
func (p Policy) CanDeleteMessage(actor domain.Identity, m *domain.Message) error {
	if m.IsDeleted {
		return ErrMessageDeleted
	}
	if m.IsSystem() {
		return ErrSystemMessage
	}
	if !m.SentBy(actor.ID) && !actor.IsAdmin() {
		return ErrDeleteNotOwner
	}
	return nil
}

// CanCreateSupportRoom allows customers only.
func (p Policy) CanCreateSupportRoom(actor domain.Identity) error {
	if !actor.IsCustomer() {
		return ErrCustomersOnly
	}
	return nil
}

// CanManageRooms allows staff and admins to work the support queue.
func (p Policy) CanManageRooms(actor domain.Identity) error {
	if actor.IsStaff() || actor.IsAdmin() {
		return nil
	}
	return ErrStaffOnly
}

// CanAssign allows admins to assign any staff member and staff members to
// assign themselves.
func (p Policy) CanAssign(actor domain.Identity, staffID uint) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsStaff() && actor.ID == staffID {
		return nil
	}
	return ErrAccessDenied
}

// RequireAdmin allows admins only.
func (p Policy) RequireAdmin(actor domain.Identity) error {
	if !actor.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}
