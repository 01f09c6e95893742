// Room HTTP handlers.
//
// This file exposes REST endpoints for rooms:
//   - GET    /rooms                 (caller's rooms, same shape as user_rooms)
//   - POST   /rooms/support         (customer opens or reuses a support room)
//   - GET    /rooms/unassigned      (staff queue)
//   - POST   /rooms/{id}/assign     (assign a staff member)
//   - POST   /rooms/{id}/close      (close the room)
//   - DELETE /rooms/{id}            (admin hard delete)
//
// Mutations go through the realtime dispatcher so websocket subscribers see
// the same events as when the action arrives over the socket.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/services"
	"github.com/tbourn/go-chat-realtime/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService is the read side consumed by the REST handlers.
type ChatService interface {
	AuthorizeRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, error)
	UserRooms(ctx context.Context, actor domain.Identity) ([]services.RoomSummary, error)
	UnassignedRooms(ctx context.Context, actor domain.Identity) ([]domain.Room, error)
	History(ctx context.Context, actor domain.Identity, roomID, beforeID uint, limit int) ([]domain.Message, error)
	HistoryVersion(ctx context.Context, roomID uint) (int64, *time.Time, error)
	Search(ctx context.Context, actor domain.Identity, roomID uint, query string, limit int) ([]domain.Message, error)
	Export(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, []domain.Message, error)
	Statistics(ctx context.Context, actor domain.Identity, f repo.StatsFilter) (repo.ChatStats, error)
}

// RoomAdmin performs room mutations and fans the resulting events out to
// connected clients.
type RoomAdmin interface {
	OpenSupportRoom(ctx context.Context, actor domain.Identity, serviceRequestID *uint) (*domain.Room, bool, error)
	AssignStaff(ctx context.Context, actor domain.Identity, roomID, staffID uint) (*domain.Room, error)
	CloseRoom(ctx context.Context, actor domain.Identity, roomID uint) (*domain.Room, error)
	DeleteRoom(ctx context.Context, actor domain.Identity, roomID uint) error
}

//
// Handler wiring
//

// Handlers groups the REST endpoints.
type Handlers struct {
	chat  ChatService
	rooms RoomAdmin

	// Now stamps views and exports; nil means time.Now.
	Now func() time.Time
}

// New constructs Handlers bound to the given services.
func New(chat ChatService, rooms RoomAdmin) *Handlers {
	return &Handlers{chat: chat, rooms: rooms}
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// actor returns the identity set by middleware.Auth. Routes are mounted
// behind Auth, so a missing identity is answered as unauthenticated.
func actor(c *gin.Context) (domain.Identity, bool) {
	id, found := middleware.IdentityFrom(c)
	if !found {
		failErr(c, services.ErrUnauthenticated)
	}
	return id, found
}

// roomID parses the :id path parameter.
func roomID(c *gin.Context) (uint, bool) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "room id must be a positive integer")
	}
	return id, valid
}

//
// DTOs
//

// ListRoomsResponse wraps the caller's room summaries.
type ListRoomsResponse struct {
	Rooms []services.RoomSummary `json:"rooms"`
}

// OpenSupportRoomRequest is the optional payload of POST /rooms/support.
type OpenSupportRoomRequest struct {
	ServiceRequestID *uint `json:"service_request_id" example:"1001"`
}

// RoomResponse wraps a single room.
type RoomResponse struct {
	Room    domain.RoomView `json:"room"`
	Created bool            `json:"created,omitempty"`
}

// UnassignedRoomsResponse lists support rooms waiting for staff.
type UnassignedRoomsResponse struct {
	Rooms []domain.RoomView `json:"rooms"`
}

// AssignStaffRequest is the payload of POST /rooms/{id}/assign.
type AssignStaffRequest struct {
	StaffID uint `json:"staff_id" binding:"required" example:"3"`
}

func roomViews(rooms []domain.Room) []domain.RoomView {
	out := make([]domain.RoomView, 0, len(rooms))
	for i := range rooms {
		out = append(out, rooms[i].View())
	}
	return out
}

//
// Handlers
//

// ListRooms godoc
// @ID          listRooms
// @Summary     List the caller's rooms
// @Description Active rooms the caller participates in, most recent activity first, with unread counts.
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ListRoomsResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /rooms [get]
func (h *Handlers) ListRooms(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rooms, err := h.chat.UserRooms(c.Request.Context(), me)
	if err != nil {
		failErr(c, err)
		return
	}
	if rooms == nil {
		rooms = []services.RoomSummary{}
	}
	ok(c, http.StatusOK, ListRoomsResponse{Rooms: rooms})
}

// OpenSupportRoom godoc
// @ID          openSupportRoom
// @Summary     Open a support room
// @Description Returns the customer's active support room for the service request, creating it when none exists.
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.OpenSupportRoomRequest  false  "Optional service request"
// @Success     201  {object}  handlers.RoomResponse  "Created"
// @Success     200  {object}  handlers.RoomResponse  "Existing room"
// @Failure     403  {object}  handlers.ErrorResponse "Only customers can create support rooms"
// @Router      /rooms/support [post]
func (h *Handlers) OpenSupportRoom(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	var req OpenSupportRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	room, created, err := h.rooms.OpenSupportRoom(c.Request.Context(), me, req.ServiceRequestID)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, RoomResponse{Room: room.View(), Created: created})
}

// UnassignedRooms godoc
// @ID          unassignedRooms
// @Summary     List unassigned support rooms
// @Description Active support rooms without a staff member, oldest first. Staff and admins only.
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UnassignedRoomsResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /rooms/unassigned [get]
func (h *Handlers) UnassignedRooms(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rooms, err := h.chat.UnassignedRooms(c.Request.Context(), me)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, UnassignedRoomsResponse{Rooms: roomViews(rooms)})
}

// AssignStaff godoc
// @ID          assignStaff
// @Summary     Assign a staff member to a room
// @Tags        Rooms
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  int                          true  "Room ID"
// @Param       body  body  handlers.AssignStaffRequest  true  "Staff member"
// @Success     200  {object}  handlers.RoomResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse "Room already has a staff member"
// @Router      /rooms/{id}/assign [post]
func (h *Handlers) AssignStaff(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rid, valid := roomID(c)
	if !valid {
		return
	}
	var req AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "staff_id is required")
		return
	}
	room, err := h.rooms.AssignStaff(c.Request.Context(), me, rid, req.StaffID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RoomResponse{Room: room.View()})
}

// CloseRoom godoc
// @ID          closeRoom
// @Summary     Close a room
// @Description Marks the room closed, posts a system notice and emits room_closed to subscribers.
// @Tags        Rooms
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  int  true  "Room ID"
// @Success     200  {object}  handlers.RoomResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /rooms/{id}/close [post]
func (h *Handlers) CloseRoom(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rid, valid := roomID(c)
	if !valid {
		return
	}
	room, err := h.rooms.CloseRoom(c.Request.Context(), me, rid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, RoomResponse{Room: room.View()})
}

// DeleteRoom godoc
// @ID          deleteRoom
// @Summary     Delete a room
// @Description Hard-deletes the room and its messages. Admins only.
// @Tags        Rooms
// @Security    BearerAuth
// @Param       id  path  int  true  "Room ID"
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /rooms/{id} [delete]
func (h *Handlers) DeleteRoom(c *gin.Context) {
	me, authed := actor(c)
	if !authed {
		return
	}
	rid, valid := roomID(c)
	if !valid {
		return
	}
	if err := h.rooms.DeleteRoom(c.Request.Context(), me, rid); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
