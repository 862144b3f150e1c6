package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linkchat/linkchat-server/internal/chat"
	"github.com/linkchat/linkchat-server/internal/store"
)

// ErrorResponse is the JSON body for failed API requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomHandlers provides HTTP handlers for room endpoints. Creating a
// room and resolving a shared room link live here; messaging goes over
// the websocket.
type RoomHandlers struct {
	svc *chat.Service
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(svc *chat.Service, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		svc: svc,
		log: logger,
	}
}

// CreateRoomRequest represents the create room request body.
// Name is optional; a blank name gets the server default.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"max=64"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.svc.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetRoom resolves a shareable room token, as carried in a ?room= link.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	roomID := c.Param("id")

	room, err := h.svc.JoinRoom(c.Request.Context(), roomID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, RoomResponse{
			ID:        room.ID,
			Name:      room.Name,
			CreatedAt: room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed room id"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
	default:
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to resolve room")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable"})
	}
}
