package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/catalog"
	"github.com/hireline/hireline/internal/identity"
	"github.com/hireline/hireline/internal/observability"
	"github.com/hireline/hireline/internal/shared"
	_ "github.com/hireline/hireline/testing"
)

type stubUsers map[int64]*authz.Actor

func (s stubUsers) UserByID(_ context.Context, id int64) (*authz.Actor, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, catalog.ErrNotFound
}

func (s stubUsers) CredentialsByEmail(context.Context, string) (*catalog.Credentials, error) {
	return nil, catalog.ErrNotFound
}

type testApp struct {
	handler  http.Handler
	sessions *shared.SessionManager
}

func newTestApp(t *testing.T, health map[string]Pinger) *testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "hl_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := stubUsers{7: {ID: 7, Code: "U-7", Level: "recruiter"}}

	legacy, err := authz.NewLegacyProvider(authz.DefaultLegacyTable)
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	engine := authz.NewEngine(authz.Options{Legacy: legacy, Logger: logger, Recorder: metrics})
	authzMW := authz.Middleware{Engine: engine, Identity: identity.NewSessionIdentity(users, logger), Logger: logger}

	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, RateLimitPerMinute: 1000}
	h := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		AuthzMiddleware:    authzMW,
		SessionHandler:     identity.NewHandler(logger, identity.NewService(users), sessions, csrf),
		PermissionsHandler: authz.NewPermissionsHandler(logger, nil, authzMW),
		Metrics:            metrics,
		Health:             health,
	})
	return &testApp{handler: h, sessions: sessions}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) loginCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	sess, err := a.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser(userID)
	rec := httptest.NewRecorder()
	require.NoError(t, a.sessions.Commit(context.Background(), rec, sess))
	return rec.Result().Cookies()[0]
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	rec := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","postgres":"ok"}`, rec.Body.String())

	app = newTestApp(t, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec = app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t, nil)
	rec := app.do(httptest.NewRequest(http.MethodGet, "/api/session/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Set-Cookie"))
}

func TestCSRFRequiredOnUnsafeMethods(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(httptest.NewRequest(http.MethodPost, "/api/session/", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/api/session/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/api/session/", bytes.NewBufferString(`{"email":"x"}`))
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, body.CSRFToken)
	rec = app.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "passes csrf, fails validation")
}

func TestPermissionsEndpointUsesSessionActor(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/api/me/permissions/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me/permissions/?module=jobs", nil)
	req.AddCookie(app.loginCookie(t, "7"))
	rec = app.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"actor_id":7,"module":"jobs","admin":false,"codes":["jobs.view.all"]}`, rec.Body.String())

	metrics := app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `hireline_http_requests_total{code="200",route="/api/me/permissions`)
}
