// Package realtime implements the live side of the chat: the room registry
// (which connections receive a room's events), the session table (who is
// behind each connection and which rooms it joined), and the dispatcher that
// turns inbound events into service calls and fans the results out.
//
// Frames on the wire are JSON objects of the form
//
//	{"event": "<name>", "data": {...}}
//
// in both directions.
package realtime

import (
	"encoding/json"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/services"
)

// Inbound event names.
const (
	EventJoinRoom          = "join_room"
	EventLeaveRoom         = "leave_room"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventMarkMessagesRead  = "mark_messages_read"
	EventEditMessage       = "edit_message"
	EventDeleteMessage     = "delete_message"
	EventGetUserRooms      = "get_user_rooms"
	EventCreateSupportRoom = "create_support_room"
)

// Outbound event names.
const (
	EventStatus         = "status"
	EventError          = "error"
	EventJoinedRoom     = "joined_room"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventNewMessage     = "new_message"
	EventUserTyping     = "user_typing"
	EventMessagesRead   = "messages_read"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventUserRooms      = "user_rooms"
	EventRoomCreated    = "room_created"
	EventRoomClosed     = "room_closed"
)

// Event is one outbound frame.
type Event struct {
	Name string
	Data any
}

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireFrame{Event: e.Name, Data: data})
}

// Outbound payloads.
type (
	StatusPayload struct {
		Msg string `json:"msg"`
	}

	ErrorPayload struct {
		Message string `json:"message"`
	}

	JoinedRoomPayload struct {
		RoomID   uint                 `json:"room_id"`
		RoomName string               `json:"room_name"`
		Messages []domain.MessageView `json:"messages"`
	}

	// PresencePayload is carried by user_joined and user_left.
	PresencePayload struct {
		UserName string `json:"user_name"`
		UserRole string `json:"user_role"`
	}

	TypingPayload struct {
		UserID   uint   `json:"user_id"`
		UserName string `json:"user_name"`
		IsTyping bool   `json:"is_typing"`
	}

	MessagesReadPayload struct {
		UserID uint `json:"user_id"`
		RoomID uint `json:"room_id"`
	}

	MessageEditedPayload struct {
		MessageID  uint   `json:"message_id"`
		NewMessage string `json:"new_message"`
		IsEdited   bool   `json:"is_edited"`
		UpdatedAt  string `json:"updated_at"`
	}

	MessageDeletedPayload struct {
		MessageID uint   `json:"message_id"`
		DeletedBy string `json:"deleted_by"`
	}

	UserRoomsPayload struct {
		Rooms []services.RoomSummary `json:"rooms"`
	}

	// RoomPayload is carried by room_created and room_closed.
	RoomPayload struct {
		RoomID uint `json:"room_id"`
	}
)

func errorEvent(msg string) Event {
	return Event{Name: EventError, Data: ErrorPayload{Message: msg}}
}

// Inbound is the tagged union of client events. Decode with DecodeEvent and
// dispatch on the concrete type.
type Inbound interface {
	EventName() string
}

type (
	JoinRoom struct {
		RoomID uint `json:"room_id"`
	}

	LeaveRoom struct {
		RoomID uint `json:"room_id"`
	}

	SendMessage struct {
		RoomID           uint    `json:"room_id"`
		Message          string  `json:"message"`
		MessageType      string  `json:"message_type"`
		ReplyToMessageID *uint   `json:"reply_to_message_id"`
		FileURL          *string `json:"file_url"`
		FileName         *string `json:"file_name"`
		FileSize         *int64  `json:"file_size"`
		FileType         *string `json:"file_type"`
	}

	Typing struct {
		RoomID   uint `json:"room_id"`
		IsTyping bool `json:"is_typing"`
	}

	MarkMessagesRead struct {
		RoomID uint `json:"room_id"`
	}

	EditMessage struct {
		MessageID  uint   `json:"message_id"`
		NewMessage string `json:"new_message"`
	}

	DeleteMessage struct {
		MessageID uint `json:"message_id"`
	}

	GetUserRooms struct{}

	CreateSupportRoom struct {
		ServiceRequestID *uint `json:"service_request_id"`
	}
)

func (JoinRoom) EventName() string          { return EventJoinRoom }
func (LeaveRoom) EventName() string         { return EventLeaveRoom }
func (SendMessage) EventName() string       { return EventSendMessage }
func (Typing) EventName() string            { return EventTyping }
func (MarkMessagesRead) EventName() string  { return EventMarkMessagesRead }
func (EditMessage) EventName() string       { return EventEditMessage }
func (DeleteMessage) EventName() string     { return EventDeleteMessage }
func (GetUserRooms) EventName() string      { return EventGetUserRooms }
func (CreateSupportRoom) EventName() string { return EventCreateSupportRoom }

func (m SendMessage) input() services.SendInput {
	return services.SendInput{
		RoomID:           m.RoomID,
		Body:             m.Message,
		MessageType:      m.MessageType,
		ReplyToMessageID: m.ReplyToMessageID,
		FileURL:          m.FileURL,
		FileName:         m.FileName,
		FileSize:         m.FileSize,
		FileType:         m.FileType,
	}
}

// ParseFrame splits one inbound frame into its event name and raw payload
// without decoding the payload. Unparsable frames yield
// services.ErrMalformedPayload.
func ParseFrame(raw []byte) (name string, data json.RawMessage, err error) {
	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", nil, services.ErrMalformedPayload
	}
	return f.Event, f.Data, nil
}

func newInbound(name string) Inbound {
	switch name {
	case EventJoinRoom:
		return &JoinRoom{}
	case EventLeaveRoom:
		return &LeaveRoom{}
	case EventSendMessage:
		return &SendMessage{}
	case EventTyping:
		return &Typing{}
	case EventMarkMessagesRead:
		return &MarkMessagesRead{}
	case EventEditMessage:
		return &EditMessage{}
	case EventDeleteMessage:
		return &DeleteMessage{}
	case EventGetUserRooms:
		return &GetUserRooms{}
	case EventCreateSupportRoom:
		return &CreateSupportRoom{}
	}
	return nil
}

// eventLabel bounds the event label of metrics and logs to known names.
func eventLabel(name string) string {
	if newInbound(name) == nil {
		return unknownEventTag
	}
	return name
}

// DecodeEvent decodes data as the payload of the named event. Missing or null
// data decodes to the zero payload.
func DecodeEvent(name string, data json.RawMessage) (Inbound, error) {
	in := newInbound(name)
	if in == nil {
		return nil, services.ErrUnknownEvent
	}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, in); err != nil {
			return nil, services.ErrMalformedPayload
		}
	}
	return in, nil
}
