package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/service"
	"go.uber.org/zap"
)

// ChatHandler serves the chat room registry.
type ChatHandler struct {
	chats  *service.ChatService
	logger *zap.Logger
}

func NewChatHandler(chats *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

// openChatRequest names the other participant. RideID is the ride the
// conversation started from and is optional.
type openChatRequest struct {
	OtherUserID uuid.UUID  `json:"other_user_id"`
	RideID      *uuid.UUID `json:"ride_id"`
}

// List handles GET /v1/chats
func (h *ChatHandler) List(c *gin.Context) {
	rooms, err := h.chats.ListRoomsForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// Open handles POST /v1/chats. It answers 201 when this call created the
// room and 200 when the pair already had one.
func (h *ChatHandler) Open(c *gin.Context) {
	var req openChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}
	if req.OtherUserID == uuid.Nil {
		badRequest(c, "other_user_required", "other_user_id is required")
		return
	}

	room, created, err := h.chats.GetOrCreateRoom(c.Request.Context(), middleware.GetUserID(c), req.OtherUserID, req.RideID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, room)
}
