package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
)

// ErrorResponse is the error envelope of every REST endpoint. RequestID
// echoes X-Request-ID so a client report can be matched to server logs.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"Room not found"`
}

// retryAfterSeconds is advertised on 503s; store hiccups clear quickly.
const retryAfterSeconds = "2"

// fail aborts the request with an ErrorResponse. Server errors are logged at
// error level with the last cause recorded on the context; client errors only
// at debug.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	if status >= http.StatusInternalServerError {
		ev := lg.Error()
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Int("status", status).Str("code", code).Msg("api error")
	} else {
		lg.Debug().Int("status", status).Str("code", code).Str("message", msg).Msg("request rejected")
	}

	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// attachment sends body as a download named filename. An empty contentType
// means body is rendered as JSON.
func attachment(c *gin.Context, filename, contentType string, body any) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if contentType == "" {
		c.JSON(http.StatusOK, body)
		return
	}
	switch b := body.(type) {
	case []byte:
		c.Data(http.StatusOK, contentType, b)
	case string:
		c.Data(http.StatusOK, contentType, []byte(b))
	default:
		c.JSON(http.StatusOK, body)
	}
}
