package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrSendBufferFull is returned by Conn.Send when the connection cannot take
// more outbound frames.
var ErrSendBufferFull = errors.New("send buffer full")

// ErrConnClosed is returned by Conn.Send after the connection is closed.
var ErrConnClosed = errors.New("connection closed")

// Conn is the outbound side of one client connection. Send must not block on
// network I/O; implementations queue the frame and report failure instead.
type Conn interface {
	ID() string
	Send(Event) error
}

const registryShards = 32

type registryShard struct {
	mu    sync.RWMutex
	rooms map[uint]map[string]Conn
}

// Registry maps room ids to their subscribed connections. Rooms are spread
// over independently locked shards; a room's set is never locked while
// frames are being sent.
type Registry struct {
	shards [registryShards]registryShard
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].rooms = make(map[uint]map[string]Conn)
	}
	return r
}

func (r *Registry) shard(roomID uint) *registryShard {
	return &r.shards[roomID%registryShards]
}

// Subscribe adds c to roomID and reports whether it was not subscribed yet.
func (r *Registry) Subscribe(roomID uint, c Conn) bool {
	sh := r.shard(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.rooms[roomID]
	if !ok {
		set = make(map[string]Conn)
		sh.rooms[roomID] = set
	}
	if _, ok := set[c.ID()]; ok {
		return false
	}
	set[c.ID()] = c
	return true
}

// Unsubscribe removes c from roomID and reports whether it was subscribed.
// Empty rooms are dropped.
func (r *Registry) Unsubscribe(roomID uint, c Conn) bool {
	sh := r.shard(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := set[c.ID()]; !ok {
		return false
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(sh.rooms, roomID)
	}
	return true
}

// Drop removes roomID entirely and returns the connections it held.
func (r *Registry) Drop(roomID uint) []Conn {
	sh := r.shard(roomID)
	sh.mu.Lock()
	set := sh.rooms[roomID]
	delete(sh.rooms, roomID)
	sh.mu.Unlock()

	return sortedConns(set)
}

// Subscribers returns a snapshot of roomID's connections ordered by id.
func (r *Registry) Subscribers(roomID uint) []Conn {
	sh := r.shard(roomID)
	sh.mu.RLock()
	out := sortedConns(sh.rooms[roomID])
	sh.mu.RUnlock()
	return out
}

// Rooms returns the number of rooms with at least one subscriber.
func (r *Registry) Rooms() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}

// Publish sends ev to every subscriber of roomID except exclude (which may be
// nil) and returns how many accepted it. A failed send is logged and does not
// stop delivery to the others.
func (r *Registry) Publish(roomID uint, ev Event, exclude Conn) int {
	delivered := 0
	for _, c := range r.Subscribers(roomID) {
		if exclude != nil && c.ID() == exclude.ID() {
			continue
		}
		if err := c.Send(ev); err != nil {
			fanoutFailures.Inc()
			log.Warn().
				Err(err).
				Str("conn_id", c.ID()).
				Uint("room_id", roomID).
				Str("event", ev.Name).
				Msg("fan-out delivery failed")
			continue
		}
		delivered++
	}
	fanoutTotal.WithLabelValues(ev.Name).Add(float64(delivered))
	return delivered
}

func sortedConns(set map[string]Conn) []Conn {
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
