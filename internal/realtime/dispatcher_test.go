package realtime

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/services"
)

var (
	cora   = domain.Identity{ID: 7, Role: domain.RoleCustomer, FirstName: "Cora", LastName: "Customer"}
	ada    = domain.Identity{ID: 3, Role: domain.RoleStaff, FirstName: "Ada", LastName: "Lovelace"}
	root   = domain.Identity{ID: 1, Role: domain.RoleAdmin, FirstName: "Root", LastName: "Admin"}
	xavier = domain.Identity{ID: 99, Role: domain.RoleCustomer, FirstName: "Xavier", LastName: "Outsider"}
)

// ---------- harness ----------

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubNotifier struct {
	mu         sync.Mutex
	recipients [][]uint
	rooms      []uint
}

func (n *stubNotifier) NotifyNewMessage(_ context.Context, _ *domain.Room, _ *domain.Message, recipients []uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recipients = append(n.recipients, recipients)
	return nil
}

func (n *stubNotifier) NotifyStaffNewSupportRoom(_ context.Context, room *domain.Room) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, room.ID)
	return nil
}

type harness struct {
	d     *Dispatcher
	svc   *services.ChatService
	clk   *clock
	notes *stubNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "realtime.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := services.NewChatService(db)
	svc.Now = clk.Now
	for _, id := range []domain.Identity{cora, ada, root, xavier} {
		if err := svc.SyncUser(context.Background(), id); err != nil {
			t.Fatalf("SyncUser: %v", err)
		}
	}

	notes := &stubNotifier{}
	d := NewDispatcher(svc, notes)
	d.Now = clk.Now
	return &harness{d: d, svc: svc, clk: clk, notes: notes}
}

// seedRoom creates an active support room owned by customerID with staffID
// assigned. The room id doubles as the service request id so several rooms
// of one customer can coexist.
func (h *harness) seedRoom(t *testing.T, id, customerID, staffID uint) {
	t.Helper()
	sr := id
	r := domain.NewSupportRoom(customerID, &sr, "", h.clk.Now())
	r.ID = id
	r.StaffID = &staffID
	if err := repo.CreateRoom(context.Background(), h.svc.DB, r); err != nil {
		t.Fatalf("seed room %d: %v", id, err)
	}
}

func (h *harness) connect(id string, who *domain.Identity) *fakeConn {
	c := newFakeConn(id)
	h.d.Connect(context.Background(), c, who)
	return c
}

func (h *harness) emit(c *fakeConn, format string, args ...any) {
	h.d.Handle(context.Background(), c, []byte(fmt.Sprintf(format, args...)))
}

func lastError(t *testing.T, c *fakeConn) string {
	t.Helper()
	ev, ok := c.Last(EventError)
	if !ok {
		t.Fatalf("%s: no error event, got %v", c.ID(), c.Names())
	}
	return ev.Data.(ErrorPayload).Message
}

func lastMessage(t *testing.T, c *fakeConn) domain.MessageView {
	t.Helper()
	ev, ok := c.Last(EventNewMessage)
	if !ok {
		t.Fatalf("%s: no new_message, got %v", c.ID(), c.Names())
	}
	return ev.Data.(domain.MessageView)
}

// ---------- end-to-end scenarios ----------

func TestScenario_HappyPath(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)

	c := h.connect("c", &cora)
	s := h.connect("s", &ada)
	if st, ok := c.Last(EventStatus); !ok || st.Data.(StatusPayload).Msg != "Cora has connected" {
		t.Fatalf("status = %+v", st)
	}

	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	jr, ok := c.Last(EventJoinedRoom)
	if !ok {
		t.Fatalf("no joined_room: %v", c.Names())
	}
	if p := jr.Data.(JoinedRoomPayload); p.RoomID != 42 || p.RoomName != "Chat with Ada Lovelace" || len(p.Messages) != 0 {
		t.Fatalf("joined_room = %+v", p)
	}

	c.Reset()
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	uj, ok := c.Last(EventUserJoined)
	if !ok {
		t.Fatalf("customer did not see user_joined: %v", c.Names())
	}
	if p := uj.Data.(PresencePayload); p.UserName != "Ada Lovelace" || p.UserRole != "staff" {
		t.Fatalf("user_joined = %+v", p)
	}
	if s.Count(EventUserJoined) != 0 {
		t.Fatalf("joiner must not see its own user_joined")
	}

	c.Reset()
	s.Reset()
	h.emit(c, `{"event":"send_message","data":{"room_id":42,"message":"Hello"}}`)
	for _, fc := range []*fakeConn{c, s} {
		m := lastMessage(t, fc)
		if m.Message != "Hello" || m.SenderID == nil || *m.SenderID != 7 || m.IsRead {
			t.Fatalf("%s got %+v", fc.ID(), m)
		}
	}
	if len(h.notes.recipients) != 0 {
		t.Fatalf("everyone is online, notifier got %v", h.notes.recipients)
	}

	c.Reset()
	s.Reset()
	h.emit(s, `{"event":"mark_messages_read","data":{"room_id":42}}`)
	mr, ok := c.Last(EventMessagesRead)
	if !ok {
		t.Fatalf("no messages_read: %v", c.Names())
	}
	if p := mr.Data.(MessagesReadPayload); p.UserID != 3 || p.RoomID != 42 {
		t.Fatalf("messages_read = %+v", p)
	}
	if s.Count(EventMessagesRead) != 0 {
		t.Fatalf("reader must not receive its own messages_read")
	}
}

func TestScenario_EditAfterWindow(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(c, `{"event":"send_message","data":{"room_id":42,"message":"typo"}}`)
	id := lastMessage(t, c).ID

	h.clk.Advance(599 * time.Second)
	h.emit(c, `{"event":"edit_message","data":{"message_id":%d,"new_message":"fixed"}}`, id)
	ev, ok := c.Last(EventMessageEdited)
	if !ok {
		t.Fatalf("no message_edited: %v", c.Names())
	}
	if p := ev.Data.(MessageEditedPayload); p.MessageID != id || p.NewMessage != "fixed" || !p.IsEdited {
		t.Fatalf("message_edited = %+v", p)
	}

	h.clk.Advance(2 * time.Second)
	h.emit(c, `{"event":"edit_message","data":{"message_id":%d,"new_message":"again"}}`, id)
	if msg := lastError(t, c); msg != "Cannot edit messages older than 10 minutes" {
		t.Fatalf("error = %q", msg)
	}
	if c.Count(EventMessageEdited) != 1 {
		t.Fatalf("rejected edit was fanned out")
	}
}

func TestScenario_AccessDenied(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	s := h.connect("s", &ada)
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	s.Reset()

	x := h.connect("x", &xavier)
	h.emit(x, `{"event":"join_room","data":{"room_id":42}}`)
	if msg := lastError(t, x); msg != "Access denied" {
		t.Fatalf("error = %q", msg)
	}
	if subscribed(h.d.Registry, 42, x) {
		t.Fatalf("denied connection was subscribed")
	}
	if len(s.Events()) != 0 {
		t.Fatalf("room saw events: %v", s.Names())
	}
}

func TestScenario_DeleteByAdmin(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(c, `{"event":"send_message","data":{"room_id":42,"message":"oops"}}`)
	id := lastMessage(t, c).ID

	a := h.connect("a", &root)
	h.emit(a, `{"event":"delete_message","data":{"message_id":%d}}`, id)

	ev, ok := c.Last(EventMessageDeleted)
	if !ok {
		t.Fatalf("no message_deleted: %v", c.Names())
	}
	if p := ev.Data.(MessageDeletedPayload); p.MessageID != id || p.DeletedBy != "Root Admin" {
		t.Fatalf("message_deleted = %+v", p)
	}
	m, err := repo.GetMessage(context.Background(), h.svc.DB, id)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !m.IsDeleted || m.Body != domain.DeletedBody {
		t.Fatalf("stored = %+v", m)
	}
}

func TestScenario_DisconnectCleanup(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	h.seedRoom(t, 55, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	s := h.connect("s", &ada)
	for _, fc := range []*fakeConn{c, s} {
		h.emit(fc, `{"event":"join_room","data":{"room_id":42}}`)
		h.emit(fc, `{"event":"join_room","data":{"room_id":55}}`)
	}
	s.Reset()

	h.d.Disconnect(c)
	h.d.Disconnect(c)

	if got := s.Count(EventUserLeft); got != 2 {
		t.Fatalf("user_left count = %d; want 2 (%v)", got, s.Names())
	}
	ev, _ := s.Last(EventUserLeft)
	if p := ev.Data.(PresencePayload); p.UserName != "Cora Customer" || p.UserRole != "customer" {
		t.Fatalf("user_left = %+v", p)
	}
	for _, room := range []uint{42, 55} {
		if subscribed(h.d.Registry, room, c) {
			t.Fatalf("still subscribed to %d", room)
		}
	}
	if h.d.Sessions.Len() != 1 {
		t.Fatalf("sessions = %d; want 1", h.d.Sessions.Len())
	}
}

func TestScenario_SupportRoomDedup(t *testing.T) {
	h := newHarness(t)
	c1 := h.connect("c1", &cora)
	c2 := h.connect("c2", &cora)

	var wg sync.WaitGroup
	for _, fc := range []*fakeConn{c1, c2} {
		wg.Add(1)
		go func(fc *fakeConn) {
			defer wg.Done()
			h.emit(fc, `{"event":"create_support_room","data":{"service_request_id":9}}`)
		}(fc)
	}
	wg.Wait()

	var ids []uint
	for _, fc := range []*fakeConn{c1, c2} {
		ev, ok := fc.Last(EventRoomCreated)
		if !ok {
			t.Fatalf("%s: no room_created: %v", fc.ID(), fc.Names())
		}
		ids = append(ids, ev.Data.(RoomPayload).RoomID)
	}
	if ids[0] == 0 || ids[0] != ids[1] {
		t.Fatalf("room ids = %v", ids)
	}
	var rows int64
	h.svc.DB.Model(&domain.Room{}).Where("customer_id = ?", cora.ID).Count(&rows)
	if rows != 1 {
		t.Fatalf("rows = %d; want 1", rows)
	}
	if len(h.notes.rooms) != 1 {
		t.Fatalf("staff notified %d times; want 1", len(h.notes.rooms))
	}
}

// ---------- laws and edge cases ----------

func TestJoin_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	s := h.connect("s", &ada)
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	s.Reset()

	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)

	if got := c.Count(EventJoinedRoom); got != 2 {
		t.Fatalf("joined_room count = %d; want 2", got)
	}
	if got := s.Count(EventUserJoined); got != 1 {
		t.Fatalf("user_joined count = %d; want 1", got)
	}
	if got := s.Count(EventMessagesRead); got != 2 {
		t.Fatalf("messages_read count = %d; want 2 (re-join republishes)", got)
	}
	if got := len(h.d.Registry.Subscribers(42)); got != 2 {
		t.Fatalf("subscribers = %d; want 2", got)
	}
}

func TestJoin_LoadsHistoryMarkedRead(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	s := h.connect("s", &ada)
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(s, `{"event":"send_message","data":{"room_id":42,"message":"one"}}`)
	h.emit(s, `{"event":"send_message","data":{"room_id":42,"message":"two"}}`)

	c := h.connect("c", &cora)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	ev, _ := c.Last(EventJoinedRoom)
	msgs := ev.Data.(JoinedRoomPayload).Messages
	if len(msgs) != 2 || msgs[0].Message != "one" || !msgs[1].IsRead {
		t.Fatalf("history = %+v", msgs)
	}
}

func TestLeave_NeverJoinedIsSilent(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	c.Reset()
	h.emit(c, `{"event":"leave_room","data":{"room_id":42}}`)
	if len(c.Events()) != 0 {
		t.Fatalf("leave of unjoined room produced %v", c.Names())
	}
}

func TestLeave_ThenDisconnectEmitsOnce(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	s := h.connect("s", &ada)
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	c.Reset()
	s.Reset()

	h.emit(c, `{"event":"leave_room","data":{"room_id":42}}`)
	if c.Count(EventUserLeft) != 1 {
		t.Fatalf("caller should receive its own user_left: %v", c.Names())
	}
	h.d.Disconnect(c)
	if got := s.Count(EventUserLeft); got != 1 {
		t.Fatalf("user_left count = %d; want 1", got)
	}

	h.emit(s, `{"event":"send_message","data":{"room_id":42,"message":"still there?"}}`)
	if c.Count(EventNewMessage) != 0 {
		t.Fatalf("left connection received room events")
	}
}

func TestAnonymousEvents(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	anon := h.connect("anon", nil)
	if st, ok := anon.Last(EventStatus); !ok || st.Data.(StatusPayload).Msg != "Connected anonymously" {
		t.Fatalf("status = %+v", st)
	}
	anon.Reset()

	for _, raw := range []string{
		`{"event":"typing","data":{"room_id":42,"is_typing":true}}`,
		`{"event":"leave_room","data":{"room_id":42}}`,
		// Payloads are not looked at before the identity check.
		`{"event":"typing","data":{"room_id":"42","is_typing":true}}`,
		`{"event":"leave_room","data":{"room_id":-1}}`,
	} {
		h.emit(anon, raw)
		if len(anon.Events()) != 0 {
			t.Fatalf("%s must be dropped silently, got %v", raw, anon.Names())
		}
	}

	for _, raw := range []string{
		`{"event":"join_room","data":{"room_id":42}}`,
		`{"event":"send_message","data":{"room_id":42,"message":"hi"}}`,
		`{"event":"get_user_rooms"}`,
		`{"event":"create_support_room","data":{}}`,
		`{"event":"join_room","data":{"room_id":"not-a-number"}}`,
		`{"event":"shout","data":{}}`,
	} {
		anon.Reset()
		h.emit(anon, raw)
		if msg := lastError(t, anon); msg != "Authentication required" || len(anon.Events()) != 1 {
			t.Fatalf("%s -> %q (%v)", raw, msg, anon.Names())
		}
	}
}

func TestConcurrentSends_BothDelivered(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	s := h.connect("s", &ada)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	c.Reset()
	s.Reset()

	var wg sync.WaitGroup
	for _, fc := range []*fakeConn{c, s} {
		wg.Add(1)
		go func(fc *fakeConn) {
			defer wg.Done()
			h.emit(fc, `{"event":"send_message","data":{"room_id":42,"message":"from %s"}}`, fc.ID())
		}(fc)
	}
	wg.Wait()

	for _, fc := range []*fakeConn{c, s} {
		var ids []uint
		for _, ev := range fc.Events() {
			if ev.Name == EventNewMessage {
				ids = append(ids, ev.Data.(domain.MessageView).ID)
			}
		}
		if len(ids) != 2 || ids[0] >= ids[1] {
			t.Fatalf("%s new_message ids = %v; want two in commit order", fc.ID(), ids)
		}
	}
}

func TestSendMessage_NotifiesOfflineParticipants(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(c, `{"event":"send_message","data":{"room_id":42,"message":"anyone?"}}`)

	if len(h.notes.recipients) != 1 || len(h.notes.recipients[0]) != 1 || h.notes.recipients[0][0] != ada.ID {
		t.Fatalf("recipients = %v", h.notes.recipients)
	}
}

func TestSendMessage_ValidationErrors(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)

	cases := []struct {
		raw  string
		want string
	}{
		{`{"event":"send_message","data":{"room_id":42,"message":"   "}}`, "Room ID and message are required"},
		{`{"event":"send_message","data":{"message":"hi"}}`, "Room ID and message are required"},
		{`{"event":"send_message","data":{"room_id":404,"message":"hi"}}`, "Room not found"},
		{`{"event":"send_message","data":{"room_id":"x"}}`, "Invalid payload"},
		{`{"event":"dance"}`, "Unknown event"},
	}
	for _, tc := range cases {
		c.Reset()
		h.emit(c, "%s", tc.raw)
		if got := lastError(t, c); got != tc.want || len(c.Events()) != 1 {
			t.Fatalf("%s -> %q (%v); want %q", tc.raw, got, c.Names(), tc.want)
		}
	}
}

func TestTyping(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	s := h.connect("s", &ada)
	h.emit(s, `{"event":"join_room","data":{"room_id":42}}`)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	c.Reset()
	s.Reset()

	h.emit(c, `{"event":"typing","data":{"room_id":42,"is_typing":true}}`)
	ev, ok := s.Last(EventUserTyping)
	if !ok {
		t.Fatalf("no user_typing: %v", s.Names())
	}
	if p := ev.Data.(TypingPayload); p.UserID != 7 || p.UserName != "Cora Customer" || !p.IsTyping {
		t.Fatalf("user_typing = %+v", p)
	}
	if c.Count(EventUserTyping) != 0 {
		t.Fatalf("typist received own indicator")
	}

	x := h.connect("x", &xavier)
	h.emit(x, `{"event":"typing","data":{"room_id":42,"is_typing":true}}`)
	if lastError(t, x) != "Access denied" {
		t.Fatalf("outsider typing should be denied")
	}

	c.Reset()
	s.Reset()
	h.emit(c, `{"event":"typing","data":{"is_typing":true}}`)
	if msg := lastError(t, c); msg != "Room ID required" || len(c.Events()) != 1 {
		t.Fatalf("typing without room -> %q (%v)", msg, c.Names())
	}
	h.emit(c, `{"event":"typing","data":{"room_id":"42"}}`)
	if msg := lastError(t, c); msg != "Invalid payload" {
		t.Fatalf("typing with bad room id -> %q", msg)
	}
	if s.Count(EventUserTyping) != 0 {
		t.Fatalf("rejected typing must not fan out")
	}
}

func TestEditDelete_MissingMessage(t *testing.T) {
	h := newHarness(t)
	c := h.connect("c", &cora)

	h.emit(c, `{"event":"edit_message","data":{"message_id":404,"new_message":"x"}}`)
	if msg := lastError(t, c); msg != "Message not found" {
		t.Fatalf("edit missing -> %q", msg)
	}
	c.Reset()
	h.emit(c, `{"event":"delete_message","data":{"message_id":404}}`)
	if msg := lastError(t, c); msg != "Message not found" || len(c.Events()) != 1 {
		t.Fatalf("delete missing -> %q (%v)", msg, c.Names())
	}
}

func TestGetUserRooms(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"get_user_rooms","data":{}}`)
	ev, ok := c.Last(EventUserRooms)
	if !ok {
		t.Fatalf("no user_rooms: %v", c.Names())
	}
	rooms := ev.Data.(UserRoomsPayload).Rooms
	if len(rooms) != 1 || rooms[0].ID != 42 || rooms[0].Name != "Chat with Ada Lovelace" {
		t.Fatalf("rooms = %+v", rooms)
	}
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t)
	h.d.RateLimit = rate.Limit(0.0001)
	h.d.RateBurst = 1
	c := h.connect("c", &cora)

	h.emit(c, `{"event":"get_user_rooms"}`)
	h.emit(c, `{"event":"get_user_rooms"}`)
	if c.Count(EventUserRooms) != 1 || lastError(t, c) != "Too many requests" {
		t.Fatalf("events = %v", c.Names())
	}
}

func TestCloseRoom_FansOut(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	c.Reset()

	if _, err := h.d.CloseRoom(context.Background(), ada, 42); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}
	names := c.Names()
	if len(names) != 2 || names[0] != EventNewMessage || names[1] != EventRoomClosed {
		t.Fatalf("events = %v", names)
	}
	if m := lastMessage(t, c); m.Message != "Chat room closed by Ada Lovelace" || m.SenderID != nil {
		t.Fatalf("notice = %+v", m)
	}

	h.emit(c, `{"event":"send_message","data":{"room_id":42,"message":"hello?"}}`)
	if lastError(t, c) != "Room is closed" {
		t.Fatalf("send to closed room accepted")
	}
}

func TestAssignStaff_FansOut(t *testing.T) {
	h := newHarness(t)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"create_support_room","data":{}}`)
	ev, _ := c.Last(EventRoomCreated)
	roomID := ev.Data.(RoomPayload).RoomID
	h.emit(c, `{"event":"join_room","data":{"room_id":%d}}`, roomID)
	c.Reset()

	room, err := h.d.AssignStaff(context.Background(), root, roomID, ada.ID)
	if err != nil {
		t.Fatalf("AssignStaff: %v", err)
	}
	if room.StaffID == nil || *room.StaffID != ada.ID {
		t.Fatalf("room = %+v", room)
	}
	if m := lastMessage(t, c); m.Message != "Ada Lovelace has joined the chat" {
		t.Fatalf("notice = %+v", m)
	}
}

func TestDeleteRoom_DropsSubscriptions(t *testing.T) {
	h := newHarness(t)
	h.seedRoom(t, 42, cora.ID, ada.ID)
	c := h.connect("c", &cora)
	h.emit(c, `{"event":"join_room","data":{"room_id":42}}`)
	c.Reset()

	if err := h.d.DeleteRoom(context.Background(), ada, 42); err == nil {
		t.Fatalf("staff must not delete rooms")
	}
	if err := h.d.DeleteRoom(context.Background(), root, 42); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if c.Count(EventRoomClosed) != 1 {
		t.Fatalf("events = %v", c.Names())
	}
	if subscribed(h.d.Registry, 42, c) {
		t.Fatalf("subscription survived room deletion")
	}
	sess, _ := h.d.Sessions.Get("c")
	if inRoom(sess, 42) {
		t.Fatalf("session still lists deleted room")
	}
}
