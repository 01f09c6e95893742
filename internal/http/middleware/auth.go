package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/auth"
	"github.com/tbourn/go-chat-realtime/internal/domain"
)

const (
	// identityKey holds the authenticated domain.Identity.
	identityKey = "identity"
	// userIDKey holds the authenticated user id as a decimal string.
	userIDKey = "userID"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (domain.Identity, error)
}

// UserSyncer mirrors a verified identity into the local user table.
type UserSyncer interface {
	SyncUser(ctx context.Context, id domain.Identity) error
}

// Auth requires a valid token (Authorization: Bearer, or ?token=) and stores
// the identity on the context. Users are synced on every request so rooms
// can reference them before their first websocket connection.
func Auth(p TokenParser, users UserSyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := p.Parse(auth.TokenFromRequest(c.Request))
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "unauthorized",
				"message":    "Authentication required",
			})
			return
		}
		if users != nil {
			if err := users.SyncUser(c.Request.Context(), id); err != nil {
				LoggerFrom(c).Error().Err(err).Uint("user_id", id.ID).Msg("user sync failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"request_id": RequestIDFrom(c),
					"code":       "unavailable",
					"message":    "Failed to load user",
				})
				return
			}
		}
		SetIdentity(c, id)
		c.Next()
	}
}

// OptionalIdentity resolves a token when one is present and leaves the
// request anonymous otherwise. The websocket handshake uses it: anonymous
// clients may connect but are refused any chat event.
func OptionalIdentity(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := auth.TokenFromRequest(c.Request)
		if tok == "" {
			c.Next()
			return
		}
		id, err := p.Parse(tok)
		if err != nil {
			LoggerFrom(c).Info().Err(err).Msg("websocket token rejected; continuing anonymously")
			c.Next()
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}

// SetIdentity stores id on the context.
func SetIdentity(c *gin.Context, id domain.Identity) {
	c.Set(identityKey, id)
	c.Set(userIDKey, strconv.FormatUint(uint64(id.ID), 10))
}

// IdentityFrom returns the identity stored by Auth or OptionalIdentity.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}
