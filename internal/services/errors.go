// Package services defines the business logic for chat rooms and messages.
// This file centralizes the service-level error taxonomy so that realtime and
// HTTP callers can surface a short client-safe message and map the category
// to a transport status consistently.
//
// Store details never leak through these errors: Message is the only text a
// client ever sees, and Cause is kept for logs.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// Kind classifies a service failure.
type Kind int

const (
	// KindInternal is an unclassified failure.
	KindInternal Kind = iota
	// KindUnauthenticated: the caller has no identity.
	KindUnauthenticated
	// KindMalformed: missing fields, empty body, wrong types.
	KindMalformed
	// KindNotFound: the referenced room or message does not exist.
	KindNotFound
	// KindForbidden: authorization denied, including edit-window expiry.
	KindForbidden
	// KindConflict: uniqueness or single-assignment violation.
	KindConflict
	// KindTransient: store unavailable or commit failure.
	KindTransient
	// KindRateLimited: the caller exceeded its event budget.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a classified service error. Two errors match under errors.Is when
// they share a Code, so sentinels still match when the message is rendered
// from configuration.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors by Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newErr(k Kind, code, msg string) *Error {
	return &Error{Kind: k, Code: code, Message: msg}
}

// Sentinel errors. Messages are the exact strings clients display.
var (
	ErrUnauthenticated = newErr(KindUnauthenticated, "unauthenticated", "Authentication required")
	ErrRateLimited     = newErr(KindRateLimited, "rate_limited", "Too many requests")

	ErrRoomIDRequired     = newErr(KindMalformed, "room_id_required", "Room ID required")
	ErrSendFieldsRequired = newErr(KindMalformed, "send_fields_required", "Room ID and message are required")
	ErrEditFieldsRequired = newErr(KindMalformed, "edit_fields_required", "Message ID and new text are required")
	ErrMessageIDRequired  = newErr(KindMalformed, "message_id_required", "Message ID required")
	ErrInvalidMessageType = newErr(KindMalformed, "invalid_message_type", "Invalid message type")
	ErrMessageTooLong     = newErr(KindMalformed, "message_too_long", "Message is too long")
	ErrReplyNotInRoom     = newErr(KindMalformed, "reply_not_in_room", "Reply target must be in the same room")
	ErrInvalidStaff       = newErr(KindMalformed, "invalid_staff", "Staff member not found")
	ErrUnknownEvent       = newErr(KindMalformed, "unknown_event", "Unknown event")
	ErrMalformedPayload   = newErr(KindMalformed, "malformed_payload", "Invalid payload")
	ErrQueryRequired      = newErr(KindMalformed, "query_required", "Search query required")
	ErrInvalidAttachment  = newErr(KindMalformed, "invalid_attachment", "Attachment requires file_url and file_name")

	ErrRoomNotFound    = newErr(KindNotFound, "room_not_found", "Room not found")
	ErrMessageNotFound = newErr(KindNotFound, "message_not_found", "Message not found")

	ErrAccessDenied       = newErr(KindForbidden, "access_denied", "Access denied")
	ErrEditNotOwner       = newErr(KindForbidden, "edit_not_owner", "You can only edit your own messages")
	ErrEditWindowExpired  = newErr(KindForbidden, "edit_window_expired", "Cannot edit messages older than 10 minutes")
	ErrDeleteNotOwner     = newErr(KindForbidden, "delete_not_owner", "You can only delete your own messages")
	ErrSystemMessage      = newErr(KindForbidden, "system_message", "System messages cannot be changed")
	ErrMessageDeleted     = newErr(KindForbidden, "message_deleted", "Message already deleted")
	ErrCustomersOnly      = newErr(KindForbidden, "customers_only", "Only customers can create support rooms")
	ErrStaffOnly          = newErr(KindForbidden, "staff_only", "Staff access required")
	ErrAdminOnly          = newErr(KindForbidden, "admin_only", "Admin access required")
	ErrRoomClosed         = newErr(KindForbidden, "room_closed", "Room is closed")
	ErrRoomAlreadyStaffed = newErr(KindConflict, "room_already_staffed", "Room already has a staff member")
)

// editWindowError renders ErrEditWindowExpired for the configured window.
func editWindowError(window float64) *Error {
	e := *ErrEditWindowExpired
	e.Message = fmt.Sprintf("Cannot edit messages older than %s", minutesLabel(window))
	return &e
}

func minutesLabel(minutes float64) string {
	if minutes == float64(int(minutes)) {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", int(minutes))
	}
	return fmt.Sprintf("%.1f minutes", minutes)
}

// failed wraps an unexpected store error as "Failed to <action>". A busy or
// closed store is Transient, a uniqueness violation Conflict, and anything
// else Internal.
func failed(action string, cause error) *Error {
	kind := KindInternal
	switch {
	case repo.IsDuplicate(cause):
		kind = KindConflict
	case repo.IsTransient(cause):
		kind = KindTransient
	}
	return &Error{Kind: kind, Code: "failed", Message: "Failed to " + action, Cause: cause}
}

// KindOf returns the classification of err; unclassified errors are
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-safe text for err. Unclassified errors
// render as fallback so store detail never reaches clients.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
