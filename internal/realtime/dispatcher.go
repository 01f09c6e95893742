package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/notify"
	"github.com/tbourn/go-chat-realtime/internal/services"
	"github.com/tbourn/go-chat-realtime/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService is the durable chat API driven by the dispatcher. Mutating
// methods must commit or roll back atomically and must not be aborted by
// cancellation of ctx once the write has started.
type ChatService interface {
	SyncUser(ctx context.Context, id domain.Identity) error
	AuthorizeRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, error)
	JoinRoom(ctx context.Context, actor domain.Identity, roomID uint) (*services.JoinResult, error)
	MarkRead(ctx context.Context, actor domain.Identity, roomID uint) (int64, error)
	SendMessage(ctx context.Context, actor domain.Identity, in services.SendInput) (*domain.Message, *domain.Room, error)
	MessageRoomID(ctx context.Context, messageID uint) (uint, error)
	EditMessage(ctx context.Context, actor domain.Identity, messageID uint, body string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, actor domain.Identity, messageID uint) (*domain.Message, error)
	UserRooms(ctx context.Context, actor domain.Identity) ([]services.RoomSummary, error)
	CreateSupportRoom(ctx context.Context, actor domain.Identity, serviceRequestID *uint) (*domain.Room, bool, error)
	AssignStaff(ctx context.Context, actor domain.Identity, roomID, staffID uint) (*domain.Room, *domain.Message, error)
	CloseRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, *domain.Message, error)
	DeleteRoom(ctx context.Context, actor domain.Identity, roomID uint) error
}

// Dispatcher is the single entry point for inbound events. For each event it
// checks identity, decodes the payload, lets the ChatService authorize and
// commit, and only then fans out through the Registry. Failures go to the
// originating connection alone.
//
// Room-scoped mutations hold a per-room lock from before the commit until
// fan-out is done, so subscribers see a room's events in commit order.
type Dispatcher struct {
	Chat     ChatService
	Registry *Registry
	Sessions *Sessions
	// Notifier reaches participants without a subscribed connection; nil
	// disables it.
	Notifier notify.Notifier

	// RateLimit and RateBurst size each connection's event budget. A
	// non-positive RateLimit disables limiting.
	RateLimit rate.Limit
	RateBurst int

	// Now is the clock used for derived fields such as time_ago.
	Now func() time.Time

	roomLocks utils.KeyedMutex[uint]
}

// NewDispatcher returns a dispatcher with an empty registry and session table.
func NewDispatcher(chat ChatService, n notify.Notifier) *Dispatcher {
	return &Dispatcher{
		Chat:     chat,
		Registry: NewRegistry(),
		Sessions: NewSessions(),
		Notifier: n,
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func connLogger(c Conn, id *domain.Identity) zerolog.Logger {
	ctx := log.With().Str("conn_id", c.ID())
	if id != nil {
		ctx = ctx.Uint("user_id", id.ID).Str("role", string(id.Role))
	}
	return ctx.Logger()
}

// Connect registers a new connection. id is nil for anonymous connections.
// Authenticated identities are recorded in the user directory. The caller
// receives a status event either way.
func (d *Dispatcher) Connect(ctx context.Context, c Conn, id *domain.Identity) *Session {
	var limiter *rate.Limiter
	if d.RateLimit > 0 {
		burst := d.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(d.RateLimit, burst)
	}
	s := newSession(c, id, limiter)
	d.Sessions.add(s)
	wsConnections.Inc()

	lg := connLogger(c, id)
	if id == nil {
		lg.Debug().Msg("anonymous user connected")
		d.send(s, Event{Name: EventStatus, Data: StatusPayload{Msg: "Connected anonymously"}})
		return s
	}
	if err := d.Chat.SyncUser(ctx, *id); err != nil {
		lg.Error().Err(err).Msg("sync user failed")
	}
	lg.Info().Str("user", id.FullName()).Msg("user connected")
	d.send(s, Event{Name: EventStatus, Data: StatusPayload{Msg: id.FirstName + " has connected"}})
	return s
}

// Disconnect drops the connection's session, unsubscribes it from every room
// it joined and tells each of those rooms the user left. Calling it twice is
// harmless.
func (d *Dispatcher) Disconnect(c Conn) {
	s, ok := d.Sessions.remove(c.ID())
	if !ok {
		return
	}
	wsConnections.Dec()

	id, authed := s.Identity()
	for _, roomID := range s.close() {
		if !d.Registry.Unsubscribe(roomID, c) || !authed {
			continue
		}
		d.Registry.Publish(roomID, presence(EventUserLeft, id), c)
	}
	lg := connLogger(c, s.identity)
	lg.Debug().Msg("connection closed")
}

// Handle runs one raw frame from c. The identity check comes before the
// payload is decoded, so anonymous typing and leave_room frames are dropped
// whatever they carry.
func (d *Dispatcher) Handle(ctx context.Context, c Conn, raw []byte) {
	s, ok := d.Sessions.Get(c.ID())
	if !ok {
		return
	}
	name, data, err := ParseFrame(raw)
	if err != nil {
		d.fail(s, unknownEventTag, err)
		return
	}
	label := eventLabel(name)
	if !d.admit(s, label) {
		return
	}
	in, err := DecodeEvent(name, data)
	if err != nil {
		d.fail(s, label, err)
		return
	}
	d.run(ctx, s, in)
}

// admit applies the identity check and the connection's rate limit.
// Anonymous typing and leave_room are dropped without a reply; every other
// anonymous event is answered with ErrUnauthenticated.
func (d *Dispatcher) admit(s *Session, name string) bool {
	if _, authed := s.Identity(); !authed {
		switch name {
		case EventLeaveRoom, EventTyping:
			eventsTotal.WithLabelValues(name, outcomeDropped).Inc()
		default:
			d.fail(s, name, services.ErrUnauthenticated)
		}
		return false
	}
	if !s.Allow() {
		d.fail(s, name, services.ErrRateLimited)
		return false
	}
	return true
}

// run executes an admitted event.
func (d *Dispatcher) run(ctx context.Context, s *Session, in Inbound) {
	name := in.EventName()
	actor, _ := s.Identity()

	ctx, span := otel.Tracer("realtime/Dispatcher").Start(ctx, "ws."+name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.Int64("user.id", int64(actor.ID)), attribute.String("ws.conn", s.conn.ID())))
	defer span.End()

	var err error
	switch ev := in.(type) {
	case *JoinRoom:
		err = d.joinRoom(ctx, s, actor, ev.RoomID)
	case *LeaveRoom:
		d.leaveRoom(s, actor, ev.RoomID)
	case *SendMessage:
		err = d.sendMessage(ctx, actor, *ev)
	case *Typing:
		err = d.typing(ctx, s, actor, *ev)
	case *MarkMessagesRead:
		err = d.markRead(ctx, s, actor, ev.RoomID)
	case *EditMessage:
		err = d.editMessage(ctx, actor, *ev)
	case *DeleteMessage:
		err = d.deleteMessage(ctx, actor, ev.MessageID)
	case *GetUserRooms:
		err = d.userRooms(ctx, s, actor)
	case *CreateSupportRoom:
		var room *domain.Room
		if room, _, err = d.OpenSupportRoom(ctx, actor, ev.ServiceRequestID); err == nil {
			d.send(s, Event{Name: EventRoomCreated, Data: RoomPayload{RoomID: room.ID}})
		}
	default:
		err = services.ErrUnknownEvent
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, services.KindOf(err).String())
		d.fail(s, name, err)
		return
	}
	eventsTotal.WithLabelValues(name, outcomeOK).Inc()
}

// fail reports err to the originating connection only.
func (d *Dispatcher) fail(s *Session, name string, err error) {
	outcome := outcomeError
	if errors.Is(err, services.ErrRateLimited) {
		outcome = outcomeLimited
	}
	eventsTotal.WithLabelValues(name, outcome).Inc()

	lg := connLogger(s.conn, s.identity)
	kind := services.KindOf(err)
	switch kind {
	case services.KindTransient, services.KindInternal:
		lg.Error().Err(err).Str("event", name).Str("kind", kind.String()).Msg("event failed")
	default:
		lg.Warn().Err(err).Str("event", name).Str("kind", kind.String()).Msg("event rejected")
	}
	d.send(s, errorEvent(services.PublicMessage(err, "Something went wrong")))
}

// send delivers ev to s alone. A connection that went away drops it.
func (d *Dispatcher) send(s *Session, ev Event) {
	if err := s.conn.Send(ev); err != nil {
		lg := connLogger(s.conn, s.identity)
		lg.Debug().Err(err).Str("event", ev.Name).Msg("response dropped")
	}
}

func presence(name string, id domain.Identity) Event {
	return Event{Name: name, Data: PresencePayload{UserName: id.FullName(), UserRole: string(id.Role)}}
}

func (d *Dispatcher) joinRoom(ctx context.Context, s *Session, actor domain.Identity, roomID uint) error {
	unlock := d.roomLocks.Lock(roomID)
	defer unlock()

	res, err := d.Chat.JoinRoom(ctx, actor, roomID)
	if err != nil {
		return err
	}
	entered := s.Join(roomID)
	d.Registry.Subscribe(roomID, s.conn)

	d.send(s, Event{Name: EventJoinedRoom, Data: JoinedRoomPayload{
		RoomID:   roomID,
		RoomName: res.RoomName,
		Messages: domain.Views(res.Messages, d.now()),
	}})
	if entered {
		d.Registry.Publish(roomID, presence(EventUserJoined, actor), s.conn)
	}
	d.Registry.Publish(roomID, Event{Name: EventMessagesRead, Data: MessagesReadPayload{UserID: actor.ID, RoomID: roomID}}, s.conn)
	return nil
}

// leaveRoom is a no-op for rooms the session never joined.
func (d *Dispatcher) leaveRoom(s *Session, actor domain.Identity, roomID uint) {
	if roomID == 0 {
		return
	}
	left := s.Leave(roomID)
	d.Registry.Unsubscribe(roomID, s.conn)
	if !left {
		return
	}
	ev := presence(EventUserLeft, actor)
	d.Registry.Publish(roomID, ev, nil)
	d.send(s, ev)
}

func (d *Dispatcher) sendMessage(ctx context.Context, actor domain.Identity, ev SendMessage) error {
	unlock := d.roomLocks.Lock(ev.RoomID)
	msg, room, err := d.Chat.SendMessage(ctx, actor, ev.input())
	if err != nil {
		unlock()
		return err
	}
	d.Registry.Publish(room.ID, Event{Name: EventNewMessage, Data: msg.View(d.now())}, nil)
	offline := d.offlineParticipants(room, actor.ID)
	unlock()

	if len(offline) > 0 && d.Notifier != nil {
		if err := d.Notifier.NotifyNewMessage(context.WithoutCancel(ctx), room, msg, offline); err != nil {
			log.Warn().Err(err).Uint("room_id", room.ID).Uint("message_id", msg.ID).Msg("new message notification failed")
		}
	}
	return nil
}

// offlineParticipants returns the room's participants, other than senderID,
// with no subscribed connection.
func (d *Dispatcher) offlineParticipants(room *domain.Room, senderID uint) []uint {
	online := make(map[uint]bool)
	for _, c := range d.Registry.Subscribers(room.ID) {
		if s, ok := d.Sessions.Get(c.ID()); ok {
			if id, ok := s.Identity(); ok {
				online[id.ID] = true
			}
		}
	}
	var out []uint
	for _, uid := range room.ParticipantIDs() {
		if uid != senderID && !online[uid] {
			out = append(out, uid)
		}
	}
	return out
}

func (d *Dispatcher) typing(ctx context.Context, s *Session, actor domain.Identity, ev Typing) error {
	if ev.RoomID == 0 {
		return services.ErrRoomIDRequired
	}
	if _, err := d.Chat.AuthorizeRoom(ctx, actor, ev.RoomID); err != nil {
		return err
	}
	d.Registry.Publish(ev.RoomID, Event{Name: EventUserTyping, Data: TypingPayload{
		UserID:   actor.ID,
		UserName: actor.FullName(),
		IsTyping: ev.IsTyping,
	}}, s.conn)
	return nil
}

func (d *Dispatcher) markRead(ctx context.Context, s *Session, actor domain.Identity, roomID uint) error {
	if _, err := d.Chat.MarkRead(ctx, actor, roomID); err != nil {
		return err
	}
	d.Registry.Publish(roomID, Event{Name: EventMessagesRead, Data: MessagesReadPayload{UserID: actor.ID, RoomID: roomID}}, s.conn)
	return nil
}

// lockMessageRoom takes the room lock of messageID's room. A message id of
// zero locks nothing; the service call that follows rejects it.
func (d *Dispatcher) lockMessageRoom(ctx context.Context, messageID uint) (func(), error) {
	if messageID == 0 {
		return func() {}, nil
	}
	roomID, err := d.Chat.MessageRoomID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return d.roomLocks.Lock(roomID), nil
}

func (d *Dispatcher) editMessage(ctx context.Context, actor domain.Identity, ev EditMessage) error {
	unlock, err := d.lockMessageRoom(ctx, ev.MessageID)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := d.Chat.EditMessage(ctx, actor, ev.MessageID, ev.NewMessage)
	if err != nil {
		return err
	}
	d.Registry.Publish(m.RoomID, Event{Name: EventMessageEdited, Data: MessageEditedPayload{
		MessageID:  m.ID,
		NewMessage: m.Body,
		IsEdited:   true,
		UpdatedAt:  domain.FormatTime(m.UpdatedAt),
	}}, nil)
	return nil
}

func (d *Dispatcher) deleteMessage(ctx context.Context, actor domain.Identity, messageID uint) error {
	unlock, err := d.lockMessageRoom(ctx, messageID)
	if err != nil {
		return err
	}
	defer unlock()

	m, err := d.Chat.DeleteMessage(ctx, actor, messageID)
	if err != nil {
		return err
	}
	d.Registry.Publish(m.RoomID, Event{Name: EventMessageDeleted, Data: MessageDeletedPayload{
		MessageID: m.ID,
		DeletedBy: actor.FullName(),
	}}, nil)
	return nil
}

func (d *Dispatcher) userRooms(ctx context.Context, s *Session, actor domain.Identity) error {
	rooms, err := d.Chat.UserRooms(ctx, actor)
	if err != nil {
		return err
	}
	d.send(s, Event{Name: EventUserRooms, Data: UserRoomsPayload{Rooms: rooms}})
	return nil
}

//
// Actions shared with the REST surface
//

// OpenSupportRoom finds or creates actor's support room and notifies staff
// when a new room was created.
func (d *Dispatcher) OpenSupportRoom(ctx context.Context, actor domain.Identity, serviceRequestID *uint) (*domain.Room, bool, error) {
	room, created, err := d.Chat.CreateSupportRoom(ctx, actor, serviceRequestID)
	if err != nil {
		return nil, false, err
	}
	if created && d.Notifier != nil {
		notice := *room
		if notice.Customer == nil {
			notice.Customer = actor.User()
		}
		if err := d.Notifier.NotifyStaffNewSupportRoom(context.WithoutCancel(ctx), &notice); err != nil {
			log.Warn().Err(err).Uint("room_id", room.ID).Msg("support room notification failed")
		}
	}
	return room, created, nil
}

// AssignStaff assigns staffID to roomID and publishes the join notice.
func (d *Dispatcher) AssignStaff(ctx context.Context, actor domain.Identity, roomID, staffID uint) (*domain.Room, error) {
	unlock := d.roomLocks.Lock(roomID)
	defer unlock()

	room, notice, err := d.Chat.AssignStaff(ctx, actor, roomID, staffID)
	if err != nil {
		return nil, err
	}
	d.Registry.Publish(room.ID, Event{Name: EventNewMessage, Data: notice.View(d.now())}, nil)
	return room, nil
}

// CloseRoom closes roomID, publishes the closing notice and then room_closed.
func (d *Dispatcher) CloseRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, error) {
	unlock := d.roomLocks.Lock(roomID)
	defer unlock()

	room, notice, err := d.Chat.CloseRoom(ctx, actor, roomID)
	if err != nil {
		return nil, err
	}
	d.Registry.Publish(room.ID, Event{Name: EventNewMessage, Data: notice.View(d.now())}, nil)
	d.Registry.Publish(room.ID, Event{Name: EventRoomClosed, Data: RoomPayload{RoomID: room.ID}}, nil)
	return room, nil
}

// DeleteRoom deletes roomID, publishes room_closed to its subscribers and
// removes every subscription to it.
func (d *Dispatcher) DeleteRoom(ctx context.Context, actor domain.Identity, roomID uint) error {
	unlock := d.roomLocks.Lock(roomID)
	defer unlock()

	if err := d.Chat.DeleteRoom(ctx, actor, roomID); err != nil {
		return err
	}
	d.Registry.Publish(roomID, Event{Name: EventRoomClosed, Data: RoomPayload{RoomID: roomID}}, nil)
	for _, c := range d.Registry.Drop(roomID) {
		if s, ok := d.Sessions.Get(c.ID()); ok {
			s.Leave(roomID)
		}
	}
	return nil
}
