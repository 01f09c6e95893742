package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
)

// Hub is the realtime side of a websocket connection. *realtime.Dispatcher
// satisfies it.
type Hub interface {
	Connect(ctx context.Context, c realtime.Conn, id *domain.Identity) *realtime.Session
	Handle(ctx context.Context, c realtime.Conn, raw []byte)
	Disconnect(c realtime.Conn)
}

// WSOptions tunes the websocket transport.
type WSOptions struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	SendBuffer      int
	MaxMessageBytes int64

	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string
}

// WSHandler upgrades HTTP requests to websocket connections and pumps frames
// between the socket and a Hub.
type WSHandler struct {
	hub      Hub
	opts     WSOptions
	upgrader websocket.Upgrader
}

// NewWSHandler returns a handler serving hub with opts.
func NewWSHandler(hub Hub, opts WSOptions) *WSHandler {
	if opts.SendBuffer < 1 {
		opts.SendBuffer = 1
	}
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Serve godoc
// @Summary      Open a realtime connection
// @Description  Upgrades to a websocket. A valid token (Authorization header or ?token=) identifies the user; without one the connection is anonymous.
// @Tags         realtime
// @Param        token  query  string  false  "JWT for browser clients"
// @Success      101
// @Failure      403  {string}  string  "origin not allowed"
// @Router       /ws [get]
func (h *WSHandler) Serve(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	var ident *domain.Identity
	if id, authed := middleware.IdentityFrom(c); authed {
		ident = &id
	}

	// Recorded for logs and metrics; the hijacked writer never reports it.
	c.Status(http.StatusSwitchingProtocols)
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		lg.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newWSConn(ws, h.opts, *lg)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go conn.writePump()
	h.hub.Connect(ctx, conn, ident)
	conn.readPump(ctx, h.hub)
	h.hub.Disconnect(conn)
	conn.close()
}

// wsConn is a realtime.Conn over a gorilla websocket. Outbound events are
// queued on a bounded channel and written by a single writer goroutine.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	opts WSOptions
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	out    chan realtime.Event

	overflow     func()
	overflowOnce sync.Once
}

func newWSConn(ws *websocket.Conn, opts WSOptions, lg zerolog.Logger) *wsConn {
	c := &wsConn{
		id:   uuid.NewString(),
		ws:   ws,
		opts: opts,
		out:  make(chan realtime.Event, opts.SendBuffer),
	}
	c.log = lg.With().Str("conn_id", c.id).Logger()
	// A client that cannot keep up is cut off; it rejoins and reloads history.
	c.overflow = func() { _ = ws.Close() }
	return c
}

func (c *wsConn) ID() string { return c.id }

// Send queues ev without blocking.
func (c *wsConn) Send(ev realtime.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return realtime.ErrConnClosed
	}
	select {
	case c.out <- ev:
		return nil
	default:
		c.overflowOnce.Do(func() {
			c.log.Warn().Int("buffer", cap(c.out)).Msg("send buffer full, dropping connection")
			if c.overflow != nil {
				c.overflow()
			}
		})
		return realtime.ErrSendBufferFull
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *wsConn) readPump(ctx context.Context, hub Hub) {
	if c.opts.MaxMessageBytes > 0 {
		c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		hub.Handle(ctx, c, raw)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case ev, ok := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.log.Error().Err(err).Str("event", ev.Name).Msg("encode event")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
