package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/observ"
	"github.com/lalith-99/campusride/internal/relay"
	"github.com/lalith-99/campusride/internal/repository/memory"
	"github.com/lalith-99/campusride/internal/service"
	"github.com/lalith-99/campusride/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "api-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router    *gin.Engine
	metrics   *observ.Metrics
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	avatars, err := storage.NewLocalStore(dir, "http://localhost:8081")
	require.NoError(t, err)
	return newTestServerWith(t, memory.New(), avatars, dir)
}

// newTestServerWith builds the router over db and avatars. uploadDir is
// served at /uploads when set.
func newTestServerWith(t *testing.T, db *memory.DB, avatars storage.Store, uploadDir string) *testServer {
	t.Helper()
	logger := zap.NewNop()

	users := memory.NewUserStore(db)
	rides := memory.NewRideStore(db)
	rideSvc := service.NewRideService(rides, memory.NewPassengerStore(db), memory.NewRatingStore(db), users, logger)
	chatSvc := service.NewChatService(memory.NewChatStore(db), memory.NewMessageStore(db), users, rides, logger)

	accounts := service.NewAccountService(users, avatars, logger)

	metrics := observ.NewMetrics()
	hub := relay.NewHub(metrics)
	rl := relay.New(chatSvc, hub, relay.NewLocalBroker(hub), metrics, logger, relay.DefaultOptions())

	router := NewRouter(RouterConfig{
		JWTSecret:      testSecret,
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"*"},
		UploadDir:      uploadDir,
	}, Handlers{
		Auth:     NewAuthHandler(accounts, testSecret, time.Hour, logger),
		Rides:    NewRideHandler(rideSvc, metrics, logger),
		Users:    NewUserHandler(accounts, rideSvc, 1024, logger),
		Chats:    NewChatHandler(chatSvc, logger),
		Messages: NewMessageHandler(chatSvc, rl, logger),
		WS:       NewWSHandler(rl, logger),
	}, metrics, logger)

	return &testServer{router: router, metrics: metrics, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type account struct {
	ID    uuid.UUID
	Token string
}

// signup registers name@campus.edu and returns its id and token.
func (s *testServer) signup(t *testing.T, name string) account {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":        name + "@campus.edu",
		"password":     "correct-horse",
		"display_name": name,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[authResponse](t, w)
	return account{ID: resp.User.ID, Token: resp.Token}
}

func (s *testServer) postRide(t *testing.T, driver account, seats int) uuid.UUID {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/rides", driver.Token, map[string]any{
		"starting_location": "Main Gate",
		"destination":       "SFO",
		"scheduled_at":      time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"category":          "Airport",
		"seats":             seats,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct {
		ID uuid.UUID `json:"id"`
	}](t, w).ID
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, w).Code
}
