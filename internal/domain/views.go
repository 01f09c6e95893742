package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replyPreviewRunes caps the quoted body of the message being replied to.
const replyPreviewRunes = 100

// FormatTime renders t in UTC as ISO-8601 with a 'T' separator and no zone
// suffix. Microseconds are printed only when non-zero.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/1000 == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05.000000")
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTime(*t)
	return &s
}

// TimeAgo renders the elapsed time between created and now the way the chat
// widgets display it ("Just now", "5 minutes ago", "1 day ago").
func TimeAgo(created, now time.Time) string {
	d := now.Sub(created)
	switch {
	case d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d > time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d > time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return "Just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s ago", n, unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// MessageView is the wire representation of a message, shared by the
// realtime events and the REST API.
type MessageView struct {
	ID               uint    `json:"id"`
	RoomID           uint    `json:"room_id"`
	SenderID         *uint   `json:"sender_id"`
	SenderName       *string `json:"sender_name"`
	SenderRole       *Role   `json:"sender_role"`
	Message          string  `json:"message"`
	MessageType      string  `json:"message_type"`
	FileURL          *string `json:"file_url"`
	FileName         *string `json:"file_name"`
	FileSize         *int64  `json:"file_size"`
	FileType         *string `json:"file_type"`
	IsRead           bool    `json:"is_read"`
	IsEdited         bool    `json:"is_edited"`
	IsDeleted        bool    `json:"is_deleted"`
	ReplyToMessageID *uint   `json:"reply_to_message_id"`
	ReplyToMessage   *string `json:"reply_to_message"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	ReadAt           *string `json:"read_at"`
	TimeAgo          string  `json:"time_ago"`
}

// View renders the message for clients. Sender and ReplyTo must be preloaded
// for the derived fields to be populated.
func (m *Message) View(now time.Time) MessageView {
	v := MessageView{
		ID:               m.ID,
		RoomID:           m.RoomID,
		SenderID:         m.SenderID,
		Message:          m.Body,
		MessageType:      m.MessageType,
		FileURL:          m.FileURL,
		FileName:         m.FileName,
		FileSize:         m.FileSize,
		FileType:         m.FileType,
		IsRead:           m.IsRead,
		IsEdited:         m.IsEdited,
		IsDeleted:        m.IsDeleted,
		ReplyToMessageID: m.ReplyToMessageID,
		CreatedAt:        FormatTime(m.CreatedAt),
		UpdatedAt:        FormatTime(m.UpdatedAt),
		ReadAt:           formatTimePtr(m.ReadAt),
		TimeAgo:          TimeAgo(m.CreatedAt, now),
	}
	if m.Sender != nil && m.SenderID != nil {
		name := m.Sender.FullName()
		role := m.Sender.Role
		v.SenderName = &name
		v.SenderRole = &role
	}
	if m.ReplyTo != nil && !m.ReplyTo.IsDeleted {
		preview := clipRunes(m.ReplyTo.Body, replyPreviewRunes)
		v.ReplyToMessage = &preview
	}
	return v
}

// Views renders a slice of messages in order.
func Views(msgs []Message, now time.Time) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].View(now))
	}
	return out
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// DisplayName returns the room label shown to a viewer. An explicit name
// wins. Otherwise the label names the other party: customers see the
// assigned staff member (or "Support" while unassigned), staff and admins see
// the customer. Customer and Staff must be preloaded.
func (r *Room) DisplayName(viewer Role) string {
	if r.Name != nil && strings.TrimSpace(*r.Name) != "" {
		return *r.Name
	}
	return DisplayNameFor(viewer, r.Customer, r.Staff)
}

// DisplayNameFor is the pure naming policy behind Room.DisplayName.
func DisplayNameFor(viewer Role, customer, staff *User) string {
	if viewer == RoleCustomer {
		if staff == nil {
			return "Support"
		}
		return "Chat with " + staff.FullName()
	}
	if customer == nil {
		return "Support"
	}
	return "Chat with " + customer.FullName()
}

// TypeLabel renders the room type for humans, e.g. "Service Specific".
func (r *Room) TypeLabel() string {
	return cases.Title(language.English).String(strings.ReplaceAll(r.RoomType, "_", " "))
}

// ParticipantView is the public projection of a room participant.
type ParticipantView struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// View projects the user for room summaries.
func (u User) View() ParticipantView {
	return ParticipantView{ID: u.ID, FullName: u.FullName(), Role: u.Role}
}

// RoomView is the wire representation of a room for REST responses.
type RoomView struct {
	ID               uint    `json:"id"`
	Name             *string `json:"name"`
	RoomType         string  `json:"room_type"`
	CustomerID       uint    `json:"customer_id"`
	StaffID          *uint   `json:"staff_id"`
	CustomerName     *string `json:"customer_name"`
	StaffName        *string `json:"staff_name"`
	Status           string  `json:"status"`
	ServiceRequestID *uint   `json:"service_request_id"`
	CreatedAt        string  `json:"created_at"`
	LastActivity     string  `json:"last_activity"`
	ClosedAt         *string `json:"closed_at"`
}

// View renders the room for clients.
func (r *Room) View() RoomView {
	v := RoomView{
		ID:               r.ID,
		Name:             r.Name,
		RoomType:         r.RoomType,
		CustomerID:       r.CustomerID,
		StaffID:          r.StaffID,
		Status:           r.Status,
		ServiceRequestID: r.ServiceRequestID,
		CreatedAt:        FormatTime(r.CreatedAt),
		LastActivity:     FormatTime(r.LastActivity),
		ClosedAt:         formatTimePtr(r.ClosedAt),
	}
	if r.Customer != nil {
		n := r.Customer.FullName()
		v.CustomerName = &n
	}
	if r.Staff != nil {
		n := r.Staff.FullName()
		v.StaffName = &n
	}
	return v
}
