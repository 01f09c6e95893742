package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// Export formats.
const (
	ExportJSON = "json"
	ExportText = "txt"
)

// RoomExport is the JSON export document.
type RoomExport struct {
	Room       domain.RoomView      `json:"room"`
	Messages   []domain.MessageView `json:"messages"`
	ExportedAt string               `json:"exported_at"`
}

// BuildExport renders room history as a RoomExport.
func BuildExport(room *domain.Room, msgs []domain.Message, now time.Time) RoomExport {
	return RoomExport{
		Room:       room.View(),
		Messages:   domain.Views(msgs, now),
		ExportedAt: domain.FormatTime(now),
	}
}

// RenderText renders room history as a plain-text transcript, one
// "[YYYY-MM-DD HH:MM:SS] name: message" line per message.
func RenderText(room *domain.Room, msgs []domain.Message, now time.Time) string {
	const stamp = "2006-01-02 15:04:05"

	title := room.TypeLabel() + " Chat"
	if room.Name != nil && *room.Name != "" {
		title = *room.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chat History - %s\n", title)
	fmt.Fprintf(&b, "Exported: %s\n", now.UTC().Format(stamp))
	fmt.Fprintf(&b, "Room ID: %d\n", room.ID)
	b.WriteString(strings.Repeat("-", 50))
	for i := range msgs {
		m := &msgs[i]
		name := "System"
		if m.Sender != nil {
			name = m.Sender.FullName()
		}
		fmt.Fprintf(&b, "\n[%s] %s: %s", m.CreatedAt.UTC().Format(stamp), name, m.Body)
	}
	return b.String()
}
