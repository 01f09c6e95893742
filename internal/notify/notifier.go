// Package notify delivers out-of-band notifications (email, push) for chat
// events to recipients that are not connected to the room.
//
// The realtime dispatcher calls a Notifier only after the triggering write has
// committed. Implementations in this package either log the notification
// (LogNotifier), enqueue it on a Redis list for an external worker
// (RedisNotifier), or fan it out to several notifiers (Multi).
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// Notification kinds.
const (
	KindNewMessage     = "new_message"
	KindNewSupportRoom = "new_support_room"
)

const (
	previewRunes          = 100
	defaultEnqueueTimeout = 2 * time.Second
)

// Notifier is the out-of-band delivery channel.
type Notifier interface {
	// NotifyNewMessage tells recipients (user ids not subscribed to the room)
	// that msg was posted in room.
	NotifyNewMessage(ctx context.Context, room *domain.Room, msg *domain.Message, recipients []uint) error
	// NotifyStaffNewSupportRoom tells staff that a customer opened room.
	NotifyStaffNewSupportRoom(ctx context.Context, room *domain.Room) error
}

// Job is the serialized form of a notification handed to delivery workers.
type Job struct {
	Kind         string `json:"kind"`
	RoomID       uint   `json:"room_id"`
	MessageID    uint   `json:"message_id,omitempty"`
	SenderName   string `json:"sender_name,omitempty"`
	CustomerID   uint   `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	Preview      string `json:"preview,omitempty"`
	Recipients   []uint `json:"recipients,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// NewMessageJob builds the job for a new message.
func NewMessageJob(room *domain.Room, msg *domain.Message, recipients []uint) Job {
	j := Job{
		Kind:       KindNewMessage,
		RoomID:     room.ID,
		MessageID:  msg.ID,
		SenderName: "System",
		Preview:    clip(msg.Body, previewRunes),
		Recipients: recipients,
		CreatedAt:  domain.FormatTime(msg.CreatedAt),
	}
	if msg.Sender != nil {
		j.SenderName = msg.Sender.FullName()
	}
	return j
}

// NewSupportRoomJob builds the job for a newly opened support room.
func NewSupportRoomJob(room *domain.Room) Job {
	j := Job{
		Kind:       KindNewSupportRoom,
		RoomID:     room.ID,
		CustomerID: room.CustomerID,
		CreatedAt:  domain.FormatTime(room.CreatedAt),
	}
	if room.Customer != nil {
		j.CustomerName = room.Customer.FullName()
	}
	return j
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Multi calls every notifier in order and joins their errors.
type Multi []Notifier

func (m Multi) NotifyNewMessage(ctx context.Context, room *domain.Room, msg *domain.Message, recipients []uint) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyNewMessage(ctx, room, msg, recipients); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyStaffNewSupportRoom(ctx context.Context, room *domain.Room) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyStaffNewSupportRoom(ctx, room); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
