package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/relay"
	"github.com/lalith-99/campusride/internal/service"
	"go.uber.org/zap"
)

// MessageHandler reads history and posts messages over plain HTTP. Posts
// go through the relay so live subscribers see them too.
type MessageHandler struct {
	chats  *service.ChatService
	relay  *relay.Relay
	logger *zap.Logger
}

func NewMessageHandler(chats *service.ChatService, rl *relay.Relay, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{chats: chats, relay: rl, logger: logger}
}

type createMessageRequest struct {
	Content string `json:"content"`
}

// Create handles POST /v1/chats/:id/messages
func (h *MessageHandler) Create(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	msg, err := h.relay.Send(c.Request.Context(), middleware.GetUserID(c), roomID, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/chats/:id/messages, oldest first.
func (h *MessageHandler) List(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	messages, err := h.chats.FetchHistory(c.Request.Context(), roomID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
