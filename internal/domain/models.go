// Package domain defines the persistence models for participants, chat rooms
// and chat messages. These types are mapped with GORM and form the core data
// layer of the realtime chat backend.
package domain

import (
	"strings"
	"time"
)

// Role is the coarse permission class of a participant.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Room types.
const (
	RoomTypeSupport         = "support"
	RoomTypeGeneral         = "general"
	RoomTypeServiceSpecific = "service_specific"
)

// Room statuses.
const (
	RoomStatusActive   = "active"
	RoomStatusClosed   = "closed"
	RoomStatusArchived = "archived"
)

// Message types.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// DeletedBody replaces the body of a soft-deleted message. The original text
// is not retained.
const DeletedBody = "[Message deleted]"

// User is the participant directory entry. Identities are owned by the
// authentication collaborator; the row mirrors the latest names and role so
// that messages and rooms can be rendered without calling out.
type User struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	FirstName string    `json:"first_name" gorm:"type:varchar(50);not null"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(50);not null;default:''"`
	Email     string    `json:"email"      gorm:"type:varchar(120);index"`
	Role      Role      `json:"role"       gorm:"type:varchar(20);not null;check:role IN ('customer','staff','admin')"`
	IsActive  bool      `json:"is_active"  gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// FullName joins first and last name, dropping empty parts.
func (u User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// Room is a durable conversation context binding a customer and, once
// assigned, one staff member.
//
// Invariants:
//   - ClosedAt is non-nil iff Status is closed or archived.
//   - LastActivity is never older than the newest message in the room.
//   - StaffID is assigned at most once.
type Room struct {
	ID               uint       `json:"id"                 gorm:"primaryKey"`
	Name             *string    `json:"name"               gorm:"type:varchar(200)"`
	RoomType         string     `json:"room_type"          gorm:"type:varchar(50);not null;check:room_type IN ('support','general','service_specific')"`
	CustomerID       uint       `json:"customer_id"        gorm:"not null;index"`
	StaffID          *uint      `json:"staff_id"           gorm:"index"`
	Status           string     `json:"status"             gorm:"type:varchar(20);not null;index;check:status IN ('active','closed','archived')"`
	IsPrivate        bool       `json:"is_private"         gorm:"not null"`
	ServiceRequestID *uint      `json:"service_request_id" gorm:"index"`
	AllowFileUpload  bool       `json:"allow_file_upload"  gorm:"not null"`
	MaxParticipants  int        `json:"max_participants"   gorm:"not null"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastActivity     time.Time  `json:"last_activity"      gorm:"index"`
	ClosedAt         *time.Time `json:"closed_at"`

	Customer *User `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Staff    *User `json:"-" gorm:"foreignKey:StaffID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Room.
func (Room) TableName() string { return "chat_rooms" }

// NewSupportRoom returns an unsaved active support room for customerID with
// the defaults used by the support desk.
func NewSupportRoom(customerID uint, serviceRequestID *uint, name string, now time.Time) *Room {
	r := &Room{
		RoomType:         RoomTypeSupport,
		CustomerID:       customerID,
		Status:           RoomStatusActive,
		IsPrivate:        true,
		ServiceRequestID: serviceRequestID,
		AllowFileUpload:  true,
		MaxParticipants:  2,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastActivity:     now,
	}
	if name = strings.TrimSpace(name); name != "" {
		r.Name = &name
	}
	return r
}

// IsActive reports whether the room still accepts traffic.
func (r *Room) IsActive() bool { return r.Status == RoomStatusActive }

// HasParticipant reports whether userID is the room's customer or staff member.
func (r *Room) HasParticipant(userID uint) bool {
	return r.CustomerID == userID || (r.StaffID != nil && *r.StaffID == userID)
}

// ParticipantIDs returns the customer id followed by the staff id, if any.
func (r *Room) ParticipantIDs() []uint {
	ids := []uint{r.CustomerID}
	if r.StaffID != nil {
		ids = append(ids, *r.StaffID)
	}
	return ids
}

// Participants returns the loaded customer and staff users, skipping the ones
// that were not preloaded or are unassigned.
func (r *Room) Participants() []User {
	out := make([]User, 0, 2)
	if r.Customer != nil {
		out = append(out, *r.Customer)
	}
	if r.Staff != nil {
		out = append(out, *r.Staff)
	}
	return out
}

// Close marks the room closed at now. Closing an already closed room keeps
// the original ClosedAt.
func (r *Room) Close(now time.Time) {
	if r.ClosedAt == nil {
		r.ClosedAt = &now
	}
	r.Status = RoomStatusClosed
	r.UpdatedAt = now
}

// Touch moves LastActivity forward to now. It never moves it backwards.
func (r *Room) Touch(now time.Time) {
	if now.After(r.LastActivity) {
		r.LastActivity = now
	}
	r.UpdatedAt = now
}

// Message is a single utterance within a room. A nil SenderID marks a system
// message.
//
// Invariants:
//   - IsDeleted implies Body == DeletedBody.
//   - IsEdited implies UpdatedAt after CreatedAt.
//   - ReadAt is non-nil iff IsRead; once read a message never becomes unread.
//   - ReplyToMessageID, when set, references a message in the same room.
type Message struct {
	ID               uint       `json:"id"                  gorm:"primaryKey"`
	RoomID           uint       `json:"room_id"             gorm:"not null;index:idx_room_msgs,priority:1"`
	SenderID         *uint      `json:"sender_id"           gorm:"index"`
	Body             string     `json:"message"             gorm:"column:message;type:text;not null"`
	MessageType      string     `json:"message_type"        gorm:"type:varchar(20);not null;check:message_type IN ('text','image','file','system')"`
	FileURL          *string    `json:"file_url"            gorm:"type:varchar(255)"`
	FileName         *string    `json:"file_name"           gorm:"type:varchar(255)"`
	FileSize         *int64     `json:"file_size"`
	FileType         *string    `json:"file_type"           gorm:"type:varchar(50)"`
	IsRead           bool       `json:"is_read"             gorm:"not null;index"`
	IsEdited         bool       `json:"is_edited"           gorm:"not null"`
	IsDeleted        bool       `json:"is_deleted"          gorm:"not null"`
	ReplyToMessageID *uint      `json:"reply_to_message_id" gorm:"index"`
	CreatedAt        time.Time  `json:"created_at"          gorm:"index:idx_room_msgs,priority:2"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ReadAt           *time.Time `json:"read_at"`

	// Room is the owning conversation. Hard deleting a room cascades to its
	// messages.
	Room    *Room    `json:"-" gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Sender  *User    `json:"-" gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	ReplyTo *Message `json:"-" gorm:"foreignKey:ReplyToMessageID;references:ID;constraint:OnDelete:SET NULL"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "chat_messages" }

// IsSystem reports whether the message was produced by the server.
func (m *Message) IsSystem() bool {
	return m.SenderID == nil || m.MessageType == MessageTypeSystem
}

// SentBy reports whether userID authored the message.
func (m *Message) SentBy(userID uint) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// HasAttachment reports whether any attachment field is set.
func (m *Message) HasAttachment() bool {
	return m.FileURL != nil || m.FileName != nil || m.FileSize != nil || m.FileType != nil
}

// Edit replaces the body and flags the message as edited at now. UpdatedAt
// is forced strictly after CreatedAt so the edited invariant holds even for
// an edit stamped in the same clock tick as the creation.
func (m *Message) Edit(body string, now time.Time) {
	if !now.After(m.CreatedAt) {
		now = m.CreatedAt.Add(time.Microsecond)
	}
	m.Body = body
	m.IsEdited = true
	m.UpdatedAt = now
}

// SoftDelete replaces the body with DeletedBody and flags the message deleted.
func (m *Message) SoftDelete(now time.Time) {
	if now.Before(m.CreatedAt) {
		now = m.CreatedAt
	}
	m.IsDeleted = true
	m.Body = DeletedBody
	m.UpdatedAt = now
}

// EditableUntil returns the instant after which the sender can no longer edit.
func (m *Message) EditableUntil(window time.Duration) time.Time {
	return m.CreatedAt.Add(window)
}
