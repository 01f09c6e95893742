package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/utils"
)

// parseBound accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseBound(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// Statistics godoc
// @ID          chatStatistics
// @Summary     Chat statistics
// @Description Message and room counts, optionally restricted to a creation window and a sender. Admins only.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       from     query  string  false  "Lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param       to       query  string  false  "Upper bound (RFC 3339 or YYYY-MM-DD)"
// @Param       user_id  query  int     false  "Count only messages sent by this user"
// @Success     200  {object}  repo.ChatStats
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse "Admin access required"
// @Router      /stats [get]
func (h *Handlers) Statistics(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	var f repo.StatsFilter
	var valid bool
	if f.From, valid = parseBound(c.Query("from")); !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from must be RFC 3339 or YYYY-MM-DD")
		return
	}
	if f.To, valid = parseBound(c.Query("to")); !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to must be RFC 3339 or YYYY-MM-DD")
		return
	}
	if raw := c.Query("user_id"); raw != "" {
		if f.SenderID, valid = utils.ParseID(raw); !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be a positive integer")
			return
		}
	}

	st, err := h.chat.Statistics(c.Request.Context(), me, f)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}
