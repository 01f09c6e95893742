// Package services – ChatService
//
// This file implements ChatService, the application-level component that
// owns room and message lifecycles. Every mutating use-case loads fresh rows,
// asks Policy for a decision, and writes inside a single transaction; callers
// publish to subscribers only after the method returns successfully.
//
// Mutating methods detach from the caller's cancellation before opening the
// transaction, so a client that disconnects mid-request never aborts a commit
// that is already in flight.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry room, message and user identifiers where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	defaultSearchLimit  = 50
)

// ChatService coordinates rooms and messages on top of the repo package.
type ChatService struct {
	DB     *gorm.DB
	Policy Policy

	// HistoryLimit caps the messages returned when joining a room.
	HistoryLimit int
	// MaxBodyRunes rejects longer message bodies; zero disables the guard.
	MaxBodyRunes int

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	supportLocks utils.KeyedMutex[uint]
}

// NewChatService constructs a ChatService with the default edit window and
// history size.
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{
		DB:           db,
		Policy:       Policy{EditWindow: DefaultEditWindow},
		HistoryLimit: defaultHistoryLimit,
		MaxBodyRunes: 4000,
	}
}

func (s *ChatService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *ChatService) historyLimit() int {
	if s.HistoryLimit > 0 {
		return s.HistoryLimit
	}
	return defaultHistoryLimit
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/ChatService").Start(ctx, op, trace.WithAttributes(attrs...))
}

func roomAttr(id uint) attribute.KeyValue    { return attribute.Int64("room.id", int64(id)) }
func messageAttr(id uint) attribute.KeyValue { return attribute.Int64("message.id", int64(id)) }
func userAttr(id uint) attribute.KeyValue    { return attribute.Int64("user.id", int64(id)) }

// classify keeps service errors as they are and turns store errors into a
// "Failed to <action>" error of the matching kind.
func classify(span trace.Span, err error, action string) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return failed(action, err)
}

// SyncUser records the identity in the participant directory.
func (s *ChatService) SyncUser(ctx context.Context, id domain.Identity) error {
	ctx, span := startSpan(ctx, "SyncUser", userAttr(id.ID))
	defer span.End()

	if err := repo.UpsertUser(context.WithoutCancel(ctx), s.DB, id.User()); err != nil {
		return classify(span, err, "sync user")
	}
	return nil
}

// loadRoom fetches roomID and checks that actor may access it.
func (s *ChatService) loadRoom(ctx context.Context, db *gorm.DB, actor domain.Identity, roomID uint) (*domain.Room, error) {
	room, err := repo.GetRoom(ctx, db, roomID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.Policy.CanAccessRoom(actor, room); err != nil {
		return nil, err
	}
	return room, nil
}

// AuthorizeRoom returns the room if actor may join, read and post in it.
func (s *ChatService) AuthorizeRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, error) {
	ctx, span := startSpan(ctx, "AuthorizeRoom", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	if roomID == 0 {
		return nil, ErrRoomIDRequired
	}
	room, err := s.loadRoom(ctx, s.DB, actor, roomID)
	if err != nil {
		return nil, classify(span, err, "load room")
	}
	return room, nil
}

// JoinResult is what a successful join hands back to the joining client.
type JoinResult struct {
	Room       *domain.Room
	RoomName   string
	Messages   []domain.Message
	MarkedRead int64
}

// JoinRoom authorizes actor, marks the room's messages read on their behalf
// and loads the latest history, oldest first, in one transaction.
func (s *ChatService) JoinRoom(ctx context.Context, actor domain.Identity, roomID uint) (*JoinResult, error) {
	ctx, span := startSpan(ctx, "JoinRoom", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	if roomID == 0 {
		return nil, ErrRoomIDRequired
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var out JoinResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := s.loadRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		n, err := repo.MarkMessagesRead(ctx, tx, roomID, actor.ID, now)
		if err != nil {
			return err
		}
		msgs, err := repo.ListMessages(ctx, tx, roomID, repo.ListOptions{Limit: s.historyLimit()})
		if err != nil {
			return err
		}
		out = JoinResult{Room: room, RoomName: room.DisplayName(actor.Role), Messages: msgs, MarkedRead: n}
		return nil
	})
	if err != nil {
		return nil, classify(span, err, "join room")
	}
	return &out, nil
}

// MarkRead marks every message in roomID not sent by actor as read.
func (s *ChatService) MarkRead(ctx context.Context, actor domain.Identity, roomID uint) (int64, error) {
	ctx, span := startSpan(ctx, "MarkRead", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	if roomID == 0 {
		return 0, ErrRoomIDRequired
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var n int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadRoom(ctx, tx, actor, roomID); err != nil {
			return err
		}
		var err error
		n, err = repo.MarkMessagesRead(ctx, tx, roomID, actor.ID, now)
		return err
	})
	if err != nil {
		return 0, classify(span, err, "mark messages read")
	}
	return n, nil
}

// SendInput is a message submission.
type SendInput struct {
	RoomID           uint
	Body             string
	MessageType      string
	ReplyToMessageID *uint
	FileURL          *string
	FileName         *string
	FileSize         *int64
	FileType         *string
}

func (in *SendInput) normalize(maxRunes int) error {
	in.Body = strings.TrimSpace(in.Body)
	if in.RoomID == 0 || in.Body == "" {
		return ErrSendFieldsRequired
	}
	if maxRunes > 0 && utf8.RuneCountInString(in.Body) > maxRunes {
		return ErrMessageTooLong
	}
	switch in.MessageType {
	case "":
		in.MessageType = domain.MessageTypeText
	case domain.MessageTypeText, domain.MessageTypeImage, domain.MessageTypeFile:
	default:
		return ErrInvalidMessageType
	}
	att := domain.Message{FileURL: in.FileURL, FileName: in.FileName, FileSize: in.FileSize, FileType: in.FileType}
	if att.HasAttachment() && (in.FileURL == nil || *in.FileURL == "" || in.FileName == nil || *in.FileName == "") {
		return ErrInvalidAttachment
	}
	if in.ReplyToMessageID != nil && *in.ReplyToMessageID == 0 {
		in.ReplyToMessageID = nil
	}
	return nil
}

// SendMessage persists a message from actor and bumps the room's
// last_activity in the same transaction. The returned message has its sender
// and reply target loaded; the room has its participants loaded.
func (s *ChatService) SendMessage(ctx context.Context, actor domain.Identity, in SendInput) (*domain.Message, *domain.Room, error) {
	ctx, span := startSpan(ctx, "SendMessage", roomAttr(in.RoomID), userAttr(actor.ID))
	defer span.End()

	if err := in.normalize(s.MaxBodyRunes); err != nil {
		return nil, nil, err
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var (
		msg  *domain.Message
		room *domain.Room
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.loadRoom(ctx, tx, actor, in.RoomID)
		if err != nil {
			return err
		}
		if !r.IsActive() {
			return ErrRoomClosed
		}
		if in.ReplyToMessageID != nil {
			parent, err := repo.GetMessage(ctx, tx, *in.ReplyToMessageID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrReplyNotInRoom
			}
			if err != nil {
				return err
			}
			if parent.RoomID != r.ID {
				return ErrReplyNotInRoom
			}
		}

		senderID := actor.ID
		m := &domain.Message{
			RoomID:           r.ID,
			SenderID:         &senderID,
			Body:             in.Body,
			MessageType:      in.MessageType,
			FileURL:          in.FileURL,
			FileName:         in.FileName,
			FileSize:         in.FileSize,
			FileType:         in.FileType,
			ReplyToMessageID: in.ReplyToMessageID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := repo.CreateMessage(ctx, tx, m); err != nil {
			return err
		}
		if err := repo.TouchRoomActivity(ctx, tx, r.ID, now); err != nil {
			return err
		}
		r.Touch(now)

		loaded, err := repo.GetMessage(ctx, tx, m.ID)
		if err != nil {
			return err
		}
		msg, room = loaded, r
		return nil
	})
	if err != nil {
		return nil, nil, classify(span, err, "send message")
	}
	span.SetAttributes(messageAttr(msg.ID))
	return msg, room, nil
}

// EditMessage replaces the body of messageID. Only the sender may edit, and
// only within the policy's edit window.
func (s *ChatService) EditMessage(ctx context.Context, actor domain.Identity, messageID uint, body string) (*domain.Message, error) {
	ctx, span := startSpan(ctx, "EditMessage", messageAttr(messageID), userAttr(actor.ID))
	defer span.End()

	body = strings.TrimSpace(body)
	if messageID == 0 || body == "" {
		return nil, ErrEditFieldsRequired
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrMessageTooLong
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var out *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMessage(ctx, tx, messageID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		if err := s.Policy.CanEditMessage(actor, m, now); err != nil {
			return err
		}
		m.Edit(body, now)
		if err := repo.UpdateMessage(ctx, tx, m.ID, map[string]any{
			"message":    m.Body,
			"is_edited":  true,
			"updated_at": m.UpdatedAt,
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, classify(span, err, "edit message")
	}
	return out, nil
}

// MessageRoomID returns the room messageID belongs to.
func (s *ChatService) MessageRoomID(ctx context.Context, messageID uint) (uint, error) {
	ctx, span := startSpan(ctx, "MessageRoomID", messageAttr(messageID))
	defer span.End()

	if messageID == 0 {
		return 0, ErrMessageIDRequired
	}
	var roomID uint
	err := s.DB.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", messageID).
		Limit(1).
		Pluck("room_id", &roomID).Error
	if err != nil {
		return 0, classify(span, err, "load message")
	}
	if roomID == 0 {
		return 0, ErrMessageNotFound
	}
	return roomID, nil
}

// DeleteMessage soft deletes messageID. The sender or an admin may delete.
func (s *ChatService) DeleteMessage(ctx context.Context, actor domain.Identity, messageID uint) (*domain.Message, error) {
	ctx, span := startSpan(ctx, "DeleteMessage", messageAttr(messageID), userAttr(actor.ID))
	defer span.End()

	if messageID == 0 {
		return nil, ErrMessageIDRequired
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var out *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.GetMessage(ctx, tx, messageID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		if err := s.Policy.CanDeleteMessage(actor, m); err != nil {
			return err
		}
		m.SoftDelete(now)
		if err := repo.UpdateMessage(ctx, tx, m.ID, map[string]any{
			"message":    m.Body,
			"is_deleted": true,
			"updated_at": m.UpdatedAt,
		}); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, classify(span, err, "delete message")
	}
	return out, nil
}

// RoomSummary is one entry of a user's room list.
type RoomSummary struct {
	ID           uint                     `json:"id"`
	Name         string                   `json:"name"`
	RoomType     string                   `json:"room_type"`
	Status       string                   `json:"status"`
	LastMessage  *domain.MessageView      `json:"last_message"`
	UnreadCount  int64                    `json:"unread_count"`
	LastActivity string                   `json:"last_activity"`
	Participants []domain.ParticipantView `json:"participants"`
}

// UserRooms lists the active rooms visible to actor, most recently active
// first, with the last message and unread count of each.
func (s *ChatService) UserRooms(ctx context.Context, actor domain.Identity) ([]RoomSummary, error) {
	ctx, span := startSpan(ctx, "UserRooms", userAttr(actor.ID), attribute.String("user.role", string(actor.Role)))
	defer span.End()

	rooms, err := repo.RoomsForUser(ctx, s.DB, actor.ID, actor.Role)
	if err != nil {
		return nil, classify(span, err, "load rooms")
	}
	now := s.now()
	out := make([]RoomSummary, 0, len(rooms))
	for i := range rooms {
		r := &rooms[i]
		sum := RoomSummary{
			ID:           r.ID,
			Name:         r.DisplayName(actor.Role),
			RoomType:     r.RoomType,
			Status:       r.Status,
			LastActivity: domain.FormatTime(r.LastActivity),
			Participants: make([]domain.ParticipantView, 0, 2),
		}
		for _, p := range r.Participants() {
			sum.Participants = append(sum.Participants, p.View())
		}
		last, err := repo.LastMessage(ctx, s.DB, r.ID)
		switch {
		case err == nil:
			v := last.View(now)
			sum.LastMessage = &v
		case !errors.Is(err, repo.ErrNotFound):
			return nil, classify(span, err, "load rooms")
		}
		if sum.UnreadCount, err = repo.CountUnread(ctx, s.DB, r.ID, actor.ID); err != nil {
			return nil, classify(span, err, "load rooms")
		}
		out = append(out, sum)
	}
	return out, nil
}

// CreateSupportRoom returns the customer's active support room for
// serviceRequestID, creating it if none exists. created reports whether a
// new row was inserted. Concurrent calls for the same customer are
// serialized, and the partial unique index catches any that slip past.
func (s *ChatService) CreateSupportRoom(ctx context.Context, actor domain.Identity, serviceRequestID *uint) (room *domain.Room, created bool, err error) {
	ctx, span := startSpan(ctx, "CreateSupportRoom", userAttr(actor.ID))
	defer span.End()

	if err := s.Policy.CanCreateSupportRoom(actor); err != nil {
		return nil, false, err
	}
	if serviceRequestID != nil && *serviceRequestID == 0 {
		serviceRequestID = nil
	}
	ctx = context.WithoutCancel(ctx)

	unlock := s.supportLocks.Lock(actor.ID)
	defer unlock()

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.FindExistingSupportRoom(ctx, tx, actor.ID, serviceRequestID)
		if err == nil {
			room = existing
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		r := domain.NewSupportRoom(actor.ID, serviceRequestID, "Support Chat - "+actor.FullName(), now)
		if err := repo.CreateRoom(ctx, tx, r); err != nil {
			return err
		}
		room, created = r, true
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// Another process won the insert; return its row.
		room, err = repo.FindExistingSupportRoom(ctx, s.DB, actor.ID, serviceRequestID)
		created = false
	}
	if err != nil {
		return nil, false, classify(span, err, "create support room")
	}
	span.SetAttributes(roomAttr(room.ID), attribute.Bool("room.created", created))
	return room, created, nil
}

// postSystemMessage writes a system notice into roomID at now and bumps the
// room's activity.
func postSystemMessage(ctx context.Context, tx *gorm.DB, roomID uint, body string, now time.Time) (*domain.Message, error) {
	m := &domain.Message{
		RoomID:      roomID,
		Body:        body,
		MessageType: domain.MessageTypeSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.CreateMessage(ctx, tx, m); err != nil {
		return nil, err
	}
	if err := repo.TouchRoomActivity(ctx, tx, roomID, now); err != nil {
		return nil, err
	}
	return m, nil
}

// AssignStaff assigns staffID to an unassigned active room and posts a
// system notice. It returns the reloaded room and the notice.
func (s *ChatService) AssignStaff(ctx context.Context, actor domain.Identity, roomID, staffID uint) (*domain.Room, *domain.Message, error) {
	ctx, span := startSpan(ctx, "AssignStaff", roomAttr(roomID), userAttr(actor.ID), attribute.Int64("staff.id", int64(staffID)))
	defer span.End()

	if roomID == 0 {
		return nil, nil, ErrRoomIDRequired
	}
	if err := s.Policy.CanAssign(actor, staffID); err != nil {
		return nil, nil, err
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var (
		room   *domain.Room
		notice *domain.Message
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := repo.GetRoom(ctx, tx, roomID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		if !r.IsActive() {
			return ErrRoomClosed
		}
		if r.StaffID != nil {
			return ErrRoomAlreadyStaffed
		}
		staff, err := repo.GetUser(ctx, tx, staffID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && staff.Role != domain.RoleStaff) {
			return ErrInvalidStaff
		}
		if err != nil {
			return err
		}
		if err := repo.AssignStaff(ctx, tx, roomID, staffID, now); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrRoomAlreadyStaffed
			}
			return err
		}
		if notice, err = postSystemMessage(ctx, tx, roomID, staff.FullName()+" has joined the chat", now); err != nil {
			return err
		}
		room, err = repo.GetRoom(ctx, tx, roomID)
		return err
	})
	if err != nil {
		return nil, nil, classify(span, err, "assign staff")
	}
	return room, notice, nil
}

// CloseRoom closes an active room actor participates in and posts
// "Chat room closed by {name}". History is preserved.
func (s *ChatService) CloseRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, *domain.Message, error) {
	ctx, span := startSpan(ctx, "CloseRoom", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	if roomID == 0 {
		return nil, nil, ErrRoomIDRequired
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	var (
		room   *domain.Room
		notice *domain.Message
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.loadRoom(ctx, tx, actor, roomID)
		if err != nil {
			return err
		}
		if !r.IsActive() {
			return ErrRoomClosed
		}
		if err := repo.CloseRoom(ctx, tx, r, now); err != nil {
			return err
		}
		if notice, err = postSystemMessage(ctx, tx, roomID, "Chat room closed by "+actor.FullName(), now); err != nil {
			return err
		}
		r.Touch(now)
		room = r
		return nil
	})
	if err != nil {
		return nil, nil, classify(span, err, "close chat room")
	}
	return room, notice, nil
}

// DeleteRoom hard deletes roomID and its messages. Admins only.
func (s *ChatService) DeleteRoom(ctx context.Context, actor domain.Identity, roomID uint) error {
	ctx, span := startSpan(ctx, "DeleteRoom", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	if err := s.Policy.RequireAdmin(actor); err != nil {
		return err
	}
	if roomID == 0 {
		return ErrRoomIDRequired
	}
	err := repo.DeleteRoom(context.WithoutCancel(ctx), s.DB, roomID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRoomNotFound
	}
	return classify(span, err, "delete room")
}

// UnassignedRooms lists active support rooms waiting for staff, oldest first.
func (s *ChatService) UnassignedRooms(ctx context.Context, actor domain.Identity) ([]domain.Room, error) {
	ctx, span := startSpan(ctx, "UnassignedRooms", userAttr(actor.ID))
	defer span.End()

	if err := s.Policy.CanManageRooms(actor); err != nil {
		return nil, err
	}
	rooms, err := repo.ListUnassignedSupportRooms(ctx, s.DB)
	if err != nil {
		return nil, classify(span, err, "load rooms")
	}
	return rooms, nil
}

// History returns up to limit non-deleted messages older than beforeID
// (zero for the latest page), oldest first.
func (s *ChatService) History(ctx context.Context, actor domain.Identity, roomID, beforeID uint, limit int) ([]domain.Message, error) {
	ctx, span := startSpan(ctx, "History", roomAttr(roomID), userAttr(actor.ID), attribute.Int("limit", limit))
	defer span.End()

	if _, err := s.AuthorizeRoom(ctx, actor, roomID); err != nil {
		return nil, err
	}
	limit = utils.ClampLimit(limit, s.historyLimit(), maxHistoryLimit)
	msgs, err := repo.ListMessages(ctx, s.DB, roomID, repo.ListOptions{BeforeID: beforeID, Limit: limit})
	if err != nil {
		return nil, classify(span, err, "load messages")
	}
	return msgs, nil
}

// HistoryVersion returns the message count and newest updated_at of roomID,
// used to build conditional-request validators.
func (s *ChatService) HistoryVersion(ctx context.Context, roomID uint) (int64, *time.Time, error) {
	return repo.MessagesStats(ctx, s.DB, roomID)
}

// Search returns non-deleted messages in roomID containing query, newest
// first.
func (s *ChatService) Search(ctx context.Context, actor domain.Identity, roomID uint, query string, limit int) ([]domain.Message, error) {
	ctx, span := startSpan(ctx, "Search", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	if _, err := s.AuthorizeRoom(ctx, actor, roomID); err != nil {
		return nil, err
	}
	limit = utils.ClampLimit(limit, defaultSearchLimit, maxHistoryLimit)
	msgs, err := repo.SearchMessages(ctx, s.DB, roomID, query, limit)
	if err != nil {
		return nil, classify(span, err, "search messages")
	}
	return msgs, nil
}

// Export returns the room and all of its non-deleted messages, oldest first.
func (s *ChatService) Export(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, []domain.Message, error) {
	ctx, span := startSpan(ctx, "Export", roomAttr(roomID), userAttr(actor.ID))
	defer span.End()

	room, err := s.AuthorizeRoom(ctx, actor, roomID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, roomID, repo.ListOptions{})
	if err != nil {
		return nil, nil, classify(span, err, "export chat history")
	}
	return room, msgs, nil
}

// Statistics returns message and room counts. Admins only.
func (s *ChatService) Statistics(ctx context.Context, actor domain.Identity, f repo.StatsFilter) (repo.ChatStats, error) {
	ctx, span := startSpan(ctx, "Statistics", userAttr(actor.ID))
	defer span.End()

	if err := s.Policy.RequireAdmin(actor); err != nil {
		return repo.ChatStats{}, err
	}
	st, err := repo.ChatStatistics(ctx, s.DB, f)
	if err != nil {
		return repo.ChatStats{}, classify(span, err, "load statistics")
	}
	return st, nil
}
