package realtime

import (
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// Session is the server-side state of one connection: who is behind it and
// which rooms it joined. The joined set is the source of truth for cleanup on
// disconnect; the Registry is its inverse index.
type Session struct {
	conn     Conn
	identity *domain.Identity
	limiter  *rate.Limiter

	mu     sync.Mutex
	rooms  map[uint]struct{}
	closed bool
}

func newSession(c Conn, id *domain.Identity, limiter *rate.Limiter) *Session {
	return &Session{conn: c, identity: id, limiter: limiter, rooms: make(map[uint]struct{})}
}

// Conn returns the session's connection.
func (s *Session) Conn() Conn { return s.conn }

// Identity returns the authenticated identity, if any.
func (s *Session) Identity() (domain.Identity, bool) {
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Allow consumes one token from the connection's event budget.
func (s *Session) Allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// Join records roomID as joined and reports whether it is a new membership.
// A closed session joins nothing.
func (s *Session) Join(roomID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

// Leave forgets roomID and reports whether it was joined.
func (s *Session) Leave(roomID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return false
	}
	delete(s.rooms, roomID)
	return true
}

// close marks the session closed and hands back the rooms it was in. Only
// the first call returns rooms.
func (s *Session) close() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	out := sortedRooms(s.rooms)
	s.rooms = make(map[uint]struct{})
	return out
}

func sortedRooms(m map[uint]struct{}) []uint {
	out := make([]uint, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sessions is the table of live sessions keyed by connection id.
type Sessions struct {
	mu     sync.RWMutex
	byConn map[string]*Session
}

// NewSessions returns an empty table.
func NewSessions() *Sessions {
	return &Sessions{byConn: make(map[string]*Session)}
}

func (t *Sessions) add(s *Session) {
	t.mu.Lock()
	t.byConn[s.conn.ID()] = s
	t.mu.Unlock()
}

// Get returns the session of connection id.
func (t *Sessions) Get(connID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byConn[connID]
	return s, ok
}

func (t *Sessions) remove(connID string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byConn[connID]
	if ok {
		delete(t.byConn, connID)
	}
	return s, ok
}

// Len returns the number of live sessions.
func (t *Sessions) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byConn)
}
