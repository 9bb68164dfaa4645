package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client is one websocket connection. A user with two tabs open has two
// clients, each subscribed independently.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	logger  *zap.Logger

	// Guarded by Hub.mu.
	rooms  map[uuid.UUID]struct{}
	closed bool
}

func newClient(userID uuid.UUID, conn *websocket.Conn, limiter *rate.Limiter, logger *zap.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:      id,
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		logger:  logger.With(zap.String("conn_id", id.String()), zap.String("user_id", userID.String())),
		rooms:   make(map[uuid.UUID]struct{}),
	}
}

// reply queues a frame for this client only. It must only be called from
// the read pump, which is the goroutine that later unregisters the client.
func (c *Client) reply(out Outbound) {
	payload, err := json.Marshal(out)
	if err != nil {
		c.logger.Error("marshal frame", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("reply dropped, send queue full", zap.String("type", out.Type))
	}
}

// readPump decodes frames and hands them to handle until the socket
// fails or the peer stops answering pings.
func (c *Client) readPump(handle func(*Client, Inbound), done func(*Client)) {
	defer func() {
		done(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.reply(Outbound{Type: FrameError, Error: "malformed frame", Code: "bad_frame"})
			continue
		}
		handle(c, in)
	}
}

// writePump is the only goroutine that writes to the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
