package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/campusride/internal/models"
	"github.com/lalith-99/campusride/internal/observ"
	"github.com/lalith-99/campusride/internal/repository/memory"
	"github.com/lalith-99/campusride/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type env struct {
	relay   *Relay
	hub     *Hub
	chats   *service.ChatService
	users   *memory.UserStore
	metrics *observ.Metrics
	server  *httptest.Server
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()

	db := memory.New()
	users := memory.NewUserStore(db)
	chats := service.NewChatService(memory.NewChatStore(db), memory.NewMessageStore(db), users, memory.NewRideStore(db), zap.NewNop())

	m := observ.NewMetrics()
	hub := NewHub(m)
	rl := New(chats, hub, NewLocalBroker(hub), m, zap.NewNop(), opts)

	// Identity normally comes from the auth middleware; here the test
	// passes it in the query string.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = rl.ServeWS(w, r, uuid.MustParse(r.URL.Query().Get("user")))
	}))
	t.Cleanup(func() {
		rl.Shutdown()
		srv.Close()
	})

	return &env{relay: rl, hub: hub, chats: chats, users: users, metrics: m, server: srv}
}

func (e *env) user(t *testing.T, name string) uuid.UUID {
	t.Helper()
	u, err := e.users.Create(context.Background(), name+"@campus.edu", name, "hash")
	require.NoError(t, err)
	return u.ID
}

func (e *env) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "?user=" + userID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, in Inbound) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(in))
}

// expect reads frames until one of the wanted type arrives.
func expect(t *testing.T, conn *websocket.Conn, frameType string) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var out Outbound
		require.NoError(t, conn.ReadJSON(&out), "waiting for %q", frameType)
		if out.Type == frameType {
			return out
		}
	}
}

func TestRelay_EndToEnd(t *testing.T) {
	e := newEnv(t, DefaultOptions())
	ctx := context.Background()
	alex, jordan := e.user(t, "Alex"), e.user(t, "Jordan")

	room, _, err := e.chats.GetOrCreateRoom(ctx, alex, jordan, nil)
	require.NoError(t, err)

	alexConn := e.dial(t, alex)
	jordanConn := e.dial(t, jordan)

	send(t, alexConn, Inbound{Type: FrameJoin, RoomID: room.ID})
	expect(t, alexConn, FrameJoined)
	send(t, jordanConn, Inbound{Type: FrameJoin, RoomID: room.ID})
	joined := expect(t, jordanConn, FrameJoined)
	require.NotNil(t, joined.RoomID)
	assert.Equal(t, room.ID, *joined.RoomID)

	send(t, alexConn, Inbound{Type: FrameSend, RoomID: room.ID, Content: "See you at 5"})

	got := expect(t, jordanConn, FrameMessage)
	require.NotNil(t, got.Data)
	assert.Equal(t, "See you at 5", got.Data.Content)
	assert.Equal(t, alex, got.Data.SenderID)
	assert.Equal(t, "Alex", got.Data.SenderName)

	echo := expect(t, alexConn, FrameMessage)
	assert.Equal(t, got.Data.ID, echo.Data.ID, "sender's own connection receives the message too")

	history, err := e.chats.FetchHistory(ctx, room.ID, jordan)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "See you at 5", history[0].Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.MessagesOut))
}

func TestRelay_JoinRequiresParticipation(t *testing.T) {
	e := newEnv(t, DefaultOptions())
	alex, jordan, stranger := e.user(t, "alex"), e.user(t, "jordan"), e.user(t, "stranger")

	room, _, err := e.chats.GetOrCreateRoom(context.Background(), alex, jordan, nil)
	require.NoError(t, err)

	conn := e.dial(t, stranger)
	send(t, conn, Inbound{Type: FrameJoin, RoomID: room.ID})
	out := expect(t, conn, FrameError)
	assert.Equal(t, "not_room_participant", out.Code)

	send(t, conn, Inbound{Type: FrameJoin, RoomID: uuid.New()})
	out = expect(t, conn, FrameError)
	assert.Equal(t, "room_not_found", out.Code)

	send(t, conn, Inbound{Type: FrameSend, RoomID: room.ID, Content: "let me in"})
	out = expect(t, conn, FrameError)
	assert.Equal(t, "not_room_participant", out.Code)

	assert.Equal(t, 0, e.hub.RoomSize(room.ID))
}

func TestRelay_BadFramesAndLeave(t *testing.T) {
	e := newEnv(t, DefaultOptions())
	alex, jordan := e.user(t, "alex"), e.user(t, "jordan")
	room, _, err := e.chats.GetOrCreateRoom(context.Background(), alex, jordan, nil)
	require.NoError(t, err)

	conn := e.dial(t, alex)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "bad_frame", expect(t, conn, FrameError).Code)

	send(t, conn, Inbound{Type: "dance", RoomID: room.ID})
	assert.Equal(t, "bad_frame", expect(t, conn, FrameError).Code)

	send(t, conn, Inbound{Type: FrameSend, RoomID: room.ID, Content: "   "})
	assert.Equal(t, "content_required", expect(t, conn, FrameError).Code)

	send(t, conn, Inbound{Type: FrameJoin, RoomID: room.ID})
	expect(t, conn, FrameJoined)
	assert.Equal(t, 1, e.hub.RoomSize(room.ID))

	send(t, conn, Inbound{Type: FrameLeave, RoomID: room.ID})
	expect(t, conn, FrameLeft)
	assert.Equal(t, 0, e.hub.RoomSize(room.ID))
}

func TestRelay_DisconnectCleansUp(t *testing.T) {
	e := newEnv(t, DefaultOptions())
	alex, jordan := e.user(t, "alex"), e.user(t, "jordan")
	room, _, err := e.chats.GetOrCreateRoom(context.Background(), alex, jordan, nil)
	require.NoError(t, err)

	conn := e.dial(t, alex)
	send(t, conn, Inbound{Type: FrameJoin, RoomID: room.ID})
	expect(t, conn, FrameJoined)
	require.Equal(t, 1, e.hub.Connections())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return e.hub.Connections() == 0 && e.hub.Rooms() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRelay_SendRateLimited(t *testing.T) {
	opts := DefaultOptions()
	opts.SendRate = rate.Every(time.Hour)
	opts.SendBurst = 1
	e := newEnv(t, opts)
	alex, jordan := e.user(t, "alex"), e.user(t, "jordan")
	room, _, err := e.chats.GetOrCreateRoom(context.Background(), alex, jordan, nil)
	require.NoError(t, err)

	conn := e.dial(t, alex)
	send(t, conn, Inbound{Type: FrameJoin, RoomID: room.ID})
	expect(t, conn, FrameJoined)

	send(t, conn, Inbound{Type: FrameSend, RoomID: room.ID, Content: "one"})
	expect(t, conn, FrameMessage)
	send(t, conn, Inbound{Type: FrameSend, RoomID: room.ID, Content: "two"})
	assert.Equal(t, "rate_limited", expect(t, conn, FrameError).Code)

	history, err := e.chats.FetchHistory(context.Background(), room.ID, alex)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

type failingRooms struct{}

func (failingRooms) Room(context.Context, uuid.UUID, uuid.UUID) (*models.ChatRoom, error) {
	return &models.ChatRoom{}, nil
}

func (failingRooms) PostMessage(context.Context, uuid.UUID, uuid.UUID, string) (*models.Message, error) {
	return nil, errors.New("database is down")
}

type failingBroker struct{}

func (failingBroker) Publish(context.Context, uuid.UUID, []byte) error {
	return errors.New("redis is down")
}

func TestRelay_Send_PersistFailureIsNotBroadcast(t *testing.T) {
	m := observ.NewMetrics()
	hub := NewHub(m)
	room := uuid.New()
	listener := testClient(uuid.New())
	hub.Register(listener)
	hub.Join(room, listener)

	rl := New(failingRooms{}, hub, NewLocalBroker(hub), m, zap.NewNop(), DefaultOptions())

	_, err := rl.Send(context.Background(), uuid.New(), room, "hello")
	require.Error(t, err)
	assert.Empty(t, listener.send)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MessagesOut))
}

func TestRelay_Send_BroadcastFailureKeepsMessage(t *testing.T) {
	e := newEnv(t, DefaultOptions())
	alex, jordan := e.user(t, "alex"), e.user(t, "jordan")
	room, _, err := e.chats.GetOrCreateRoom(context.Background(), alex, jordan, nil)
	require.NoError(t, err)

	rl := New(e.chats, e.hub, failingBroker{}, e.metrics, zap.NewNop(), DefaultOptions())
	msg, err := rl.Send(context.Background(), alex, room.ID, "persisted anyway")
	require.NoError(t, err)
	assert.Equal(t, "persisted anyway", msg.Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.RelayPublishErrs))

	history, err := e.chats.FetchHistory(context.Background(), room.ID, jordan)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	anyOrigin := originChecker([]string{"*"})
	assert.True(t, anyOrigin(req("https://evil.example")))

	strict := originChecker([]string{"https://campusride.app"})
	assert.True(t, strict(req("https://campusride.app")))
	assert.True(t, strict(req("")), "non-browser clients send no origin")
	assert.False(t, strict(req("https://evil.example")))
}
