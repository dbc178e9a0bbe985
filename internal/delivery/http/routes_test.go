package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"notifyhub/infrastructure/cache"
	"notifyhub/infrastructure/ws"
	"notifyhub/internal/entity"
	"notifyhub/internal/repository"
	"notifyhub/internal/usecase"
	"notifyhub/pkg/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu     sync.Mutex
	frames []string
	closed bool
}

func (t *recordingTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, string(data))
	return nil
}

func (t *recordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *recordingTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

type memNotifications struct {
	mu    sync.Mutex
	items []entity.Notification
}

func (m *memNotifications) Create(_ context.Context, n entity.Notification) (entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.Id = "n" + string(rune('0'+len(m.items)))
	m.items = append(m.items, n)
	return n, nil
}

func (m *memNotifications) ListRecent(_ context.Context, userId string, limit int) ([]entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entity.Notification{}
	for _, n := range m.items {
		if n.UserId == userId && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, n := range m.items {
		if n.UserId == userId && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) MarkAsRead(_ context.Context, userId, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Id == id && m.items[i].UserId == userId {
			m.items[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (m *memNotifications) MarkAllAsRead(_ context.Context, userId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for i := range m.items {
		if m.items[i].UserId == userId && !m.items[i].IsRead {
			m.items[i].IsRead = true
			c++
		}
	}
	return c, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]entity.User
}

func (m *memUsers) FindByID(_ context.Context, userId string) (entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userId]
	if !ok {
		return entity.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) UpdateRole(_ context.Context, userId string, role entity.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userId]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	m.users[userId] = u
	return nil
}

type testServer struct {
	router http.Handler
	hub    *ws.Hub
	store  *memNotifications
	jwt    *jwt.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.Nop()
	hub := ws.NewHub(ws.Config{HeartbeatInterval: time.Hour}, logger)
	t.Cleanup(hub.Shutdown)

	jwtManager := jwt.NewJWTManager("test-secret", time.Minute)
	authUc := usecase.NewAuthUsecase(jwtManager)
	roleCache := cache.NewTTLCache[entity.Role](0)
	t.Cleanup(roleCache.Close)
	users := &memUsers{users: map[string]entity.User{
		"root": {Id: "root", Role: entity.RoleAdmin},
		"u1":   {Id: "u1", Role: entity.RoleUser},
	}}
	userUc := usecase.NewUserUsecase(users, roleCache, time.Minute, logger)
	store := &memNotifications{}
	notificationUc := usecase.NewNotificationUsecase(store, hub.Dispatcher, logger)
	jobUc := usecase.NewJobUsecase(hub.Dispatcher)

	router := chi.NewRouter()
	router.Use(CORS("http://localhost:3000"))
	MapHttpRoutes(router,
		NewHttpHandler(notificationUc, logger),
		NewAdminHandler(hub.Admin, hub.Dispatcher, notificationUc, jobUc, userUc, logger),
		http.NotFoundHandler(),
		NewAuthMiddleware(authUc, userUc),
	)

	return &testServer{router: router, hub: hub, store: store, jwt: jwtManager}
}

func (s *testServer) token(t *testing.T, userId string) string {
	t.Helper()
	tok, err := s.jwt.GenerateAccessToken(userId, "")
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, userId, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userId != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userId))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (s *testServer) connect(t *testing.T, userId string, role entity.Role) *recordingTransport {
	t.Helper()
	tr := &recordingTransport{}
	c := s.hub.NewConnection(tr)
	c.Authenticate(userId, role)
	require.NoError(t, s.hub.Registry.Register(c))
	return tr
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, resp := s.do(t, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp.Message)
}

func TestAuthenticate(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/notifications", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authorization header required", resp.Message)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotifications_ListAndRead(t *testing.T) {
	s := newTestServer(t)
	s.store.items = []entity.Notification{
		{Id: "a", UserId: "u1", Title: "one"},
		{Id: "b", UserId: "u1", Title: "two"},
		{Id: "c", UserId: "u2", Title: "other"},
	}
	tr := s.connect(t, "u1", entity.RoleUser)

	rec, resp := s.do(t, http.MethodGet, "/notifications?limit=1", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, _ = s.do(t, http.MethodGet, "/notifications?limit=abc", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/notifications/unread-count", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, resp.Data.(map[string]any)["unreadCount"])

	rec, _ = s.do(t, http.MethodPost, "/notifications/a/read", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, tr.frames, 1)
	assert.Contains(t, tr.frames[0], `"unreadCount":1`)

	rec, _ = s.do(t, http.MethodPost, "/notifications/c/read", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "cannot read another user's notification")

	rec, resp = s.do(t, http.MethodPost, "/notifications/read-all", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]any)["updated"])
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/admin/ws/stats", "u1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/admin/ws/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_StatsAndDisconnects(t *testing.T) {
	s := newTestServer(t)
	a1 := s.connect(t, "alice", entity.RoleUser)
	a2 := s.connect(t, "alice", entity.RoleUser)
	b := s.connect(t, "bob", entity.RoleUser)

	rec, resp := s.do(t, http.MethodGet, "/admin/ws/stats", "root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := resp.Data.(map[string]any)
	assert.EqualValues(t, 3, stats["totalConnections"])
	assert.EqualValues(t, 2, stats["activeUsers"])
	assert.Equal(t, []any{"alice", "bob"}, stats["userIds"])

	rec, resp = s.do(t, http.MethodGet, "/admin/ws/connections", "root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 3)

	conns := s.hub.Registry.UserConnections("bob")
	require.Len(t, conns, 1)
	rec, _ = s.do(t, http.MethodDelete, "/admin/ws/users/bob/connections/"+conns[0].ID(), "root", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, b.IsOpen())

	rec, _ = s.do(t, http.MethodDelete, "/admin/ws/users/bob/connections/"+conns[0].ID(), "root", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = s.do(t, http.MethodDelete, "/admin/ws/users/alice", "root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, resp.Data.(map[string]any)["disconnected"])
	assert.False(t, a1.IsOpen())
	assert.False(t, a2.IsOpen())

	s.connect(t, "carol", entity.RoleUser)
	rec, resp = s.do(t, http.MethodDelete, "/admin/ws/connections", "root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]any)["disconnected"])
	assert.Equal(t, 0, s.hub.Registry.Count())
}

func TestAdmin_SetUserRole(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/admin/ws/stats", "u1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	live := s.connect(t, "u1", entity.RoleUser)

	rec, resp := s.do(t, http.MethodPut, "/admin/users/u1/role", "root", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]any)["disconnected"])
	assert.False(t, live.IsOpen())

	rec, _ = s.do(t, http.MethodGet, "/admin/ws/stats", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/admin/users/u1/role", "root", `{"role":"superuser"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPut, "/admin/users/ghost/role", "root", `{"role":"admin"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_CreateNotificationPushes(t *testing.T) {
	s := newTestServer(t)
	tr := s.connect(t, "u1", entity.RoleUser)

	rec, resp := s.do(t, http.MethodPost, "/admin/notifications", "root", `{"userId":"u1","title":"Deploy finished"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", resp.Data.(map[string]any)["userId"])

	require.Len(t, tr.frames, 1)
	assert.Contains(t, tr.frames[0], `"type":"new_notification"`)
	assert.Contains(t, tr.frames[0], `"title":"Deploy finished"`)

	rec, _ = s.do(t, http.MethodPost, "/admin/notifications", "root", `{"userId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/admin/notifications", "root", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Broadcast(t *testing.T) {
	s := newTestServer(t)
	u := s.connect(t, "u1", entity.RoleUser)
	a := s.connect(t, "root", entity.RoleAdmin)

	rec, _ := s.do(t, http.MethodPost, "/admin/broadcast", "root", `{"type":"maintenance","message":"down at 5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, u.frames, 1)
	assert.Len(t, a.frames, 1)

	rec, _ = s.do(t, http.MethodPost, "/admin/broadcast", "root", `{"message":"no type"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_JobEventsReachOnlyAdmins(t *testing.T) {
	s := newTestServer(t)
	u := s.connect(t, "u1", entity.RoleUser)
	a := s.connect(t, "root", entity.RoleAdmin)

	rec, _ := s.do(t, http.MethodPost, "/admin/jobs/update", "root", `{"id":"j1","name":"sync","status":"completed"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/admin/jobs/stats", "root", `{"pending":1,"running":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, a.frames, 2)
	assert.Contains(t, a.frames[0], `"type":"job_update"`)
	assert.Contains(t, a.frames[0], `"id":"j1"`)
	assert.Contains(t, a.frames[1], `"type":"job_stats_update"`)
	assert.Empty(t, u.frames)

	rec, _ = s.do(t, http.MethodPost, "/admin/jobs/update", "root", `{"name":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/notifications", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &line))
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/healthz", line["path"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
}
