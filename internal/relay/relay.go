package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/observ"
	"github.com/lalith-99/campusride/internal/service"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rooms is the part of the chat registry the relay needs. *service.ChatService
// satisfies it.
type Rooms interface {
	Room(ctx context.Context, roomID, userID uuid.UUID) (*models.ChatRoom, error)
	PostMessage(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error)
}

type Options struct {
	// AllowedOrigins for the websocket handshake; empty or "*" allows any.
	AllowedOrigins []string
	// SendRate and SendBurst bound "send" frames per connection.
	SendRate  rate.Limit
	SendBurst int
	// OpTimeout bounds each store call made on behalf of a frame.
	OpTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		SendRate:  rate.Limit(5),
		SendBurst: 10,
		OpTimeout: 5 * time.Second,
	}
}

// Relay accepts websocket connections, subscribes them to rooms and
// broadcasts persisted messages through the broker.
type Relay struct {
	rooms    Rooms
	hub      *Hub
	broker   Broker
	metrics  *observ.Metrics
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
}

func New(rooms Rooms, hub *Hub, broker Broker, metrics *observ.Metrics, logger *zap.Logger, opts Options) *Relay {
	r := &Relay{
		rooms:   rooms,
		hub:     hub,
		broker:  broker,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return r
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades an authenticated request and starts the connection's
// pumps. It returns once the pumps are running.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request, userID uuid.UUID) error {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := newClient(userID, conn, rate.NewLimiter(r.opts.SendRate, r.opts.SendBurst), r.logger)
	r.hub.Register(c)
	c.logger.Debug("websocket connected")

	go c.writePump()
	go c.readPump(r.handle, r.disconnect)
	return nil
}

func (r *Relay) disconnect(c *Client) {
	r.hub.Unregister(c)
	c.logger.Debug("websocket disconnected")
}

func (r *Relay) handle(c *Client, in Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.OpTimeout)
	defer cancel()

	roomID := in.RoomID
	switch in.Type {
	case FrameJoin:
		if err := r.JoinRoom(ctx, c, roomID); err != nil {
			c.reply(errorFrame(&roomID, err))
			return
		}
		c.reply(Outbound{Type: FrameJoined, RoomID: &roomID})

	case FrameLeave:
		r.hub.Leave(roomID, c)
		c.reply(Outbound{Type: FrameLeft, RoomID: &roomID})

	case FrameSend:
		if !c.limiter.Allow() {
			c.reply(Outbound{Type: FrameError, RoomID: &roomID, Error: "slow down", Code: "rate_limited"})
			return
		}
		if _, err := r.Send(ctx, c.UserID, roomID, in.Content); err != nil {
			c.reply(errorFrame(&roomID, err))
		}

	default:
		c.reply(Outbound{Type: FrameError, Error: "unknown frame type", Code: "bad_frame"})
	}
}

// JoinRoom subscribes c to a room its user participates in.
func (r *Relay) JoinRoom(ctx context.Context, c *Client, roomID uuid.UUID) error {
	if _, err := r.rooms.Room(ctx, roomID, c.UserID); err != nil {
		return err
	}
	r.hub.Join(roomID, c)
	return nil
}

// Send persists a message and then broadcasts it to the room. A message
// that fails to persist is never broadcast. A broadcast failure after a
// successful insert is logged and counted but not returned: the message
// exists and will appear in history.
func (r *Relay) Send(ctx context.Context, senderID, roomID uuid.UUID, content string) (*models.Message, error) {
	msg, err := r.rooms.PostMessage(ctx, roomID, senderID, content)
	if err != nil {
		return nil, err
	}
	r.metrics.MessagesOut.Inc()

	payload, err := json.Marshal(Outbound{Type: FrameMessage, RoomID: &roomID, Data: msg})
	if err != nil {
		r.logger.Error("marshal message frame", zap.Error(err))
		return msg, nil
	}
	if err := r.broker.Publish(ctx, roomID, payload); err != nil {
		r.metrics.RelayPublishErrs.Inc()
		r.logger.Error("broadcast failed",
			zap.String("room_id", roomID.String()),
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}
	return msg, nil
}

// Shutdown closes every live connection.
func (r *Relay) Shutdown() {
	r.hub.CloseAll()
}

func errorFrame(roomID *uuid.UUID, err error) Outbound {
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindInternal && se.Kind != service.KindUpstream {
		return Outbound{Type: FrameError, RoomID: roomID, Error: se.Message, Code: se.Code}
	}
	return Outbound{Type: FrameError, RoomID: roomID, Error: "internal error", Code: "internal"}
}
