package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/campusride/internal/middleware"
	"github.com/lalith-99/campusride/internal/relay"
	"go.uber.org/zap"
)

type WSHandler struct {
	relay  *relay.Relay
	logger *zap.Logger
}

func NewWSHandler(rl *relay.Relay, logger *zap.Logger) *WSHandler {
	return &WSHandler{relay: rl, logger: logger}
}

// Serve handles GET /v1/ws. The connection belongs to the authenticated
// user for its whole life.
func (h *WSHandler) Serve(c *gin.Context) {
	if err := h.relay.ServeWS(c.Writer, c.Request, middleware.GetUserID(c)); err != nil {
		middleware.LoggerFrom(c, h.logger).Warn("websocket handshake failed", zap.Error(err))
	}
}
