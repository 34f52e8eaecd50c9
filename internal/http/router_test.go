package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-notes-api/internal/auth"
	"github.com/redmonkez12/go-notes-api/internal/config"
	"github.com/redmonkez12/go-notes-api/internal/database/dbtest"
	"github.com/redmonkez12/go-notes-api/internal/logging"
	"github.com/redmonkez12/go-notes-api/internal/note"
	"github.com/redmonkez12/go-notes-api/internal/ratelimit"
	"github.com/redmonkez12/go-notes-api/internal/user"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error {
	return errors.New("connection refused")
}

func testConfig(env string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Env: env, TrustedOrigins: []string{"http://localhost:3000"}},
		Auth:   config.AuthConfig{SecretKey: testSecret, TokenFormat: config.TokenFormatJWT, AccessTokenTTL: time.Hour},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, pinger Pinger) http.Handler {
	t.Helper()
	return newTestRouterWithLimiter(t, cfg, pinger, ratelimit.Noop{})
}

func newTestRouterWithLimiter(t *testing.T, cfg *config.Config, pinger Pinger, limiter auth.RateLimiter) http.Handler {
	t.Helper()

	db := dbtest.New(t)
	logger := logging.NewNopLogger()

	tokens, err := auth.NewTokenService(cfg.Auth)
	require.NoError(t, err)
	hasher := auth.NewArgon2Hasher(auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, 2)
	authService := auth.NewService(user.NewRepository(db), hasher, tokens, logger, cfg.Auth.AccessTokenTTL)

	if pinger == nil {
		pinger = db
	}

	return NewRouter(cfg, Handlers{
		Auth:           auth.NewHandler(authService, limiter),
		AuthMiddleware: auth.NewMiddleware(authService),
		Notes:          note.NewHandler(note.NewService(note.NewRepository(db))),
		DB:             pinger,
	}, logger)
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) do(method, path, body string) *httptest.ResponseRecorder {
	c.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func (c *client) signUp(name, email, password string) {
	c.t.Helper()

	body, err := json.Marshal(map[string]string{"name": name, "email": email, "password": password})
	require.NoError(c.t, err)
	rec := c.do(http.MethodPost, "/api/auth/register", string(body))
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	body, err = json.Marshal(map[string]string{"email": email, "password": password})
	require.NoError(c.t, err)
	rec = c.do(http.MethodPost, "/api/auth/login", string(body))
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var token auth.AuthToken
	require.NoError(c.t, json.NewDecoder(rec.Body).Decode(&token))
	c.token = token.AccessToken
}

func TestRouter_AdaJourney(t *testing.T) {
	router := newTestRouter(t, testConfig("dev"), nil)
	ada := &client{t: t, router: router}

	ada.signUp("Ada", "ada@x.com", "secret123")

	rec := ada.do(http.MethodGet, "/api/auth/user", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me auth.UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, "ada@x.com", me.Email)
	assert.Equal(t, "Ada", me.Name)

	rec = ada.do(http.MethodPost, "/api/notes", `{"title":"analytical engine","content":"notes on Menabrea"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created note.Note
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, me.ID, created.UserID)

	rec = ada.do(http.MethodPost, "/api/auth/login", `{"email":"ada@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_NotesAreIsolatedPerUser(t *testing.T) {
	router := newTestRouter(t, testConfig("dev"), nil)
	ada := &client{t: t, router: router}
	grace := &client{t: t, router: router}

	ada.signUp("Ada", "ada@x.com", "secret123")
	grace.signUp("Grace", "grace@x.com", "hopper1906")

	rec := ada.do(http.MethodPost, "/api/notes", `{"title":"private","content":"ada only"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var n note.Note
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))

	rec = grace.do(http.MethodGet, "/api/notes/"+n.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = grace.do(http.MethodDelete, "/api/notes/"+n.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = grace.do(http.MethodGet, "/api/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ada.do(http.MethodGet, "/api/notes/"+n.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, testConfig("dev"), nil)
	anon := &client{t: t, router: router}
	forged := &client{t: t, router: router, token: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0.c2ln"}

	for _, path := range []string{"/api/auth/user", "/api/notes"} {
		for _, c := range []*client{anon, forged} {
			rec := c.do(http.MethodGet, path, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
			assert.Contains(t, rec.Body.String(), "could not validate credentials")
		}
	}
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, testConfig("dev"), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	newTestRouter(t, testConfig("dev"), failingPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRouter_RootAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, testConfig("prod"), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, apiContentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, testConfig("dev"), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_SwaggerOnlyInDevelopment(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t, testConfig("dev"), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestRouter(t, testConfig("prod"), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingLimiter struct {
	keys []string
}

func (l *recordingLimiter) Allow(_ context.Context, _, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return true, nil
}

func TestRouter_RateLimitKeyHonoursProxyTrust(t *testing.T) {
	tests := []struct {
		name  string
		trust bool
		want  string
	}{
		{name: "untrusted headers ignored", trust: false, want: "192.0.2.1"},
		{name: "trusted proxy header used", trust: true, want: "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("dev")
			cfg.Server.TrustProxyHeaders = tt.trust
			limiter := &recordingLimiter{}
			router := newTestRouterWithLimiter(t, cfg, nil, limiter)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nobody@x.com","password":"secret123"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			router.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, []string{tt.want}, limiter.keys)
		})
	}
}
