package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
	_ "github.com/fabline/fabline/testing"
)

func newTestAuth(t *testing.T) (*auth.Handler, *auth.TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := auth.NewTokenStore(client, "secret", time.Hour)

	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	repo := users.NewMemoryRepository(
		users.User{ID: "cust-1", Name: "Buyer", Email: "buyer@example.com", Role: users.RoleCustomer, PasswordHash: hash, Active: true},
		users.User{ID: "gone-1", Name: "Former", Email: "former@example.com", Role: users.RoleAdmin, PasswordHash: hash, Active: false},
	)
	directory := users.NewService(repo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := auth.Middleware{Tokens: tokens, Logger: logger}
	return auth.NewHandler(logger, auth.NewService(directory, tokens), directory, mw), tokens, mr
}

func mount(h *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}

func TestLoginIssuesTokenAndMeResolvesIt(t *testing.T) {
	h, _, _ := newTestAuth(t)
	router := mount(h)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"buyer@example.com","password":"correct-horse"}`))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var sess auth.Session
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &sess))
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, users.RoleCustomer, sess.Principal.Role)

	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+sess.Token)
	res = httptest.NewRecorder()
	router.ServeHTTP(res, me)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"id":"cust-1"`)
	assert.NotContains(t, res.Body.String(), "passwordHash")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, _, _ := newTestAuth(t)
	router := mount(h)

	for _, body := range []string{
		`{"email":"buyer@example.com","password":"wrong-horse"}`,
		`{"email":"nobody@example.com","password":"correct-horse"}`,
		`{"email":"former@example.com","password":"correct-horse"}`,
	} {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, res.Code, body)
	}

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"bad","password":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h, tokens, _ := newTestAuth(t)
	router := mount(h)
	token, _, err := tokens.Issue(context.Background(), auth.Principal{UserID: "cust-1", Role: users.RoleCustomer})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)

	_, err = tokens.Lookup(context.Background(), token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestTokenExpires(t *testing.T) {
	_, tokens, mr := newTestAuth(t)
	token, _, err := tokens.Issue(context.Background(), auth.Principal{UserID: "cust-1", Role: users.RoleCustomer})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = tokens.Lookup(context.Background(), token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestAuthenticateRequiresToken(t *testing.T) {
	h, _, _ := newTestAuth(t)
	router := mount(h)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestBearerTokenFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/stream?access_token=abc", nil)
	assert.Equal(t, "abc", auth.BearerToken(req))
}
