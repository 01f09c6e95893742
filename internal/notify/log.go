package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// LogNotifier writes notifications to a zerolog logger. It is the default
// when no queue is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) NotifyNewMessage(_ context.Context, room *domain.Room, msg *domain.Message, recipients []uint) error {
	j := NewMessageJob(room, msg, recipients)
	n.Log.Info().
		Str("kind", j.Kind).
		Uint("room_id", j.RoomID).
		Uint("message_id", j.MessageID).
		Str("sender", j.SenderName).
		Interface("recipients", j.Recipients).
		Msg("new message notification")
	return nil
}

func (n LogNotifier) NotifyStaffNewSupportRoom(_ context.Context, room *domain.Room) error {
	j := NewSupportRoomJob(room)
	n.Log.Info().
		Str("kind", j.Kind).
		Uint("room_id", j.RoomID).
		Uint("customer_id", j.CustomerID).
		Str("customer", j.CustomerName).
		Msg("new support room created")
	return nil
}
