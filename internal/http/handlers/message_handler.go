// Message HTTP handlers.
//
// This file exposes read-only REST endpoints over a room's history:
//   - GET /rooms/{id}/messages          (cursor paging, weak ETag)
//   - GET /rooms/{id}/messages/search   (substring search)
//   - GET /rooms/{id}/export            (json or txt transcript)
//
// Access is authorized exactly like joining the room.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/services"
	"github.com/tbourn/go-chat-realtime/internal/utils"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

//
// DTOs
//

// ListMessagesResponse is a page of history, oldest first. NextBefore is the
// cursor for the previous page when HasMore is set.
type ListMessagesResponse struct {
	RoomID     uint                 `json:"room_id"`
	Messages   []domain.MessageView `json:"messages"`
	HasMore    bool                 `json:"has_more"`
	NextBefore uint                 `json:"next_before,omitempty"`
}

// SearchMessagesResponse lists matches, newest first.
type SearchMessagesResponse struct {
	RoomID   uint                 `json:"room_id"`
	Query    string               `json:"query"`
	Messages []domain.MessageView `json:"messages"`
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Page through room history
// @Description Returns up to limit non-deleted messages older than before (latest page when omitted), oldest first. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    int     true   "Room ID"
// @Param       before         query   int     false  "Return messages with id < before"
// @Param       limit          query   int     false  "Page size"  minimum(1) maximum(200) default(50)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for the page"
// @Success     304  {string}  string  "Not Modified"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /rooms/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rid, valid := roomID(c)
	if !valid {
		return
	}
	var before uint
	if raw := c.Query("before"); raw != "" {
		if before, valid = utils.ParseID(raw); !valid {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "before must be a positive integer")
			return
		}
	}
	limit := utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), defaultPageLimit), defaultPageLimit, maxPageLimit)

	ctx := c.Request.Context()
	if _, err := h.chat.AuthorizeRoom(ctx, me, rid); err != nil {
		failErr(c, err)
		return
	}

	// ETag pre-check (best effort): message count and newest edit of the room.
	if count, maxTS, err := h.chat.HistoryVersion(ctx, rid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"room:%d:%d:%d:%d:%d"`, rid, count, ts, before, limit)
		c.Header("ETag", etag)
		// Revalidate on every read instead of the router-wide no-store.
		c.Header("Cache-Control", "private, no-cache")
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	msgs, err := h.chat.History(ctx, me, rid, before, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	resp := ListMessagesResponse{
		RoomID:   rid,
		Messages: domain.Views(msgs, h.now()),
		HasMore:  len(msgs) == limit,
	}
	if resp.HasMore {
		resp.NextBefore = msgs[0].ID
	}
	ok(c, http.StatusOK, resp)
}

// SearchMessages godoc
// @ID          searchMessages
// @Summary     Search room history
// @Description Case-sensitive substring match on non-deleted messages, newest first. No ranking.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
// @Param       id     path   int     true   "Room ID"
// @Param       q      query  string  true   "Text to find"
// @Param       limit  query  int     false  "Maximum matches"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  handlers.SearchMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse "Search query required"
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /rooms/{id}/messages/search [get]
func (h *Handlers) SearchMessages(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rid, valid := roomID(c)
	if !valid {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	limit := utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), defaultPageLimit), defaultPageLimit, maxPageLimit)

	msgs, err := h.chat.Search(c.Request.Context(), me, rid, q, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SearchMessagesResponse{RoomID: rid, Query: q, Messages: domain.Views(msgs, h.now())})
}

// ExportRoom godoc
// @ID          exportRoom
// @Summary     Export room history
// @Description Downloads the full non-deleted history as a JSON document or a plain-text transcript.
// @Tags        Messages
// @Produce     json
// @Produce     plain
// @Security    BearerAuth
// @Param       id      path   int     true   "Room ID"
// @Param       format  query  string  false  "json or txt"  Enums(json, txt) default(json)
// @Success     200  {object}  services.RoomExport
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /rooms/{id}/export [get]
func (h *Handlers) ExportRoom(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rid, valid := roomID(c)
	if !valid {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", services.ExportJSON))
	if format != services.ExportJSON && format != services.ExportText {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "format must be json or txt")
		return
	}

	room, msgs, err := h.chat.Export(c.Request.Context(), me, rid)
	if err != nil {
		failErr(c, err)
		return
	}
	now := h.now()
	name := fmt.Sprintf("chat_room_%d.%s", rid, format)
	if format == services.ExportText {
		attachment(c, name, "text/plain; charset=utf-8", services.RenderText(room, msgs, now))
		return
	}
	attachment(c, name, "", services.BuildExport(room, msgs, now))
}
