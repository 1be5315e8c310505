package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/DaylightLtd/minidex/pkg/auth"
	"github.com/DaylightLtd/minidex/pkg/cache"
	"github.com/DaylightLtd/minidex/pkg/middleware"
)

type testEnv struct {
	storage *auth.MemStorage
	handler http.Handler
	mr      *miniredis.Miniredis
}

// newTestEnv wires the full stack: in-memory storage, in-process Redis,
// real services and the production router.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	storage := auth.NewMemStorage()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := cache.NewRedisCacheFromClient(client)

	registry := auth.NewRegistry()
	require.NoError(t, registry.Register("hobbyist", 1))
	require.NoError(t, registry.Register("cataloguer", 2))

	credentials := auth.NewCredentialStore(storage, bcrypt.MinCost, nil)
	issuer := auth.NewTokenIssuer(storage, c, nil, time.Hour, nil, nil)
	validator := auth.NewTokenValidator(storage, c, time.Minute, nil, nil)
	authenticator := auth.NewAuthenticator(credentials, validator, nil)

	server := NewServer(ServerConfig{Addr: "127.0.0.1:0"}, nil)
	authMW := middleware.NewAuthMiddleware(authenticator, false)
	handlers := NewAuthHandlers(credentials, issuer, authenticator, registry, nil, nil)
	handlers.RegisterRoutes(server.Router(), authMW)

	return &testEnv{storage: storage, handler: server.Handler(), mr: mr}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, username, password string) {
	t.Helper()
	rec := e.do(t, "POST", "/api/auth/register", map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": password,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) login(t *testing.T, username, password string) loginResponse {
	t.Helper()
	rec := e.do(t, "POST", "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// TestRegisterRoutes verifies all auth routes are registered
func TestRegisterRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/api/auth/register"},
		{"POST", "/api/auth/login"},
		{"GET", "/api/auth/me"},
		{"POST", "/api/auth/logout"},
		{"POST", "/api/auth/logout-all"},
		{"POST", "/api/auth/users/" + uuid.NewString() + "/logout-all"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, nil, "")
			assert.NotEqual(t, http.StatusNotFound, rec.Code)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

// TestRegisterValidation verifies request validation on registration
func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name          string
		body          map[string]string
		expectedError string
	}{
		{
			name:          "username too short",
			body:          map[string]string{"username": "ab", "password": "long-enough", "confirm_password": "long-enough"},
			expectedError: "username is too short",
		},
		{
			name:          "password too short",
			body:          map[string]string{"username": "brock", "password": "short", "confirm_password": "short"},
			expectedError: "password is too short",
		},
		{
			name:          "password mismatch",
			body:          map[string]string{"username": "brock", "password": "rock-solid-1", "confirm_password": "rock-solid-2"},
			expectedError: "passwords don't match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/auth/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedError)
		})
	}
}

// TestRegisterDuplicate verifies duplicate registration is indistinguishable from success
func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "brock", "rock-solid-password")

	rec := env.do(t, "POST", "/api/auth/register", map[string]string{
		"username":         "brock",
		"password":         "different-password",
		"confirm_password": "different-password",
	}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Only the original credential works.
	env.login(t, "brock", "rock-solid-password")
	rec = env.do(t, "POST", "/api/auth/login", map[string]string{
		"username": "brock",
		"password": "different-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestLogin verifies a successful login returns a usable token
func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")

	resp := env.login(t, "brock", "rock-solid-password")

	assert.NotEqual(t, uuid.Nil, resp.UserID)
	assert.NotEmpty(t, resp.AccessToken)
	assert.InDelta(t, int(time.Hour.Seconds()), resp.ExpiresIn, 5)
	assert.Empty(t, resp.Roles)
}

// TestLoginRejections verifies bad credentials get one generic 401
func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")

	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "wrong password", body: map[string]string{"username": "brock", "password": "wrong"}},
		{name: "unknown user", body: map[string]string{"username": "ghost", "password": "whatever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/auth/login", tt.body, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "unauthenticated")
		})
	}
}

// TestMe verifies the identity endpoint reflects the resolved principal
func TestMe(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")
	resp := env.login(t, "brock", "rock-solid-password")

	rec := env.do(t, "GET", "/api/auth/me", nil, resp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var me principalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, resp.UserID, me.UserID)
	assert.True(t, me.IsActive)
	assert.NotNil(t, me.TokenID)
}

// TestMeWithRoles verifies role names are decoded in responses
func TestMeWithRoles(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")
	resp := env.login(t, "brock", "rock-solid-password")
	env.storage.SetUserRoles(resp.UserID, auth.RoleAdmin|1<<2)

	// Fresh login so the principal reflects the new roles.
	resp = env.login(t, "brock", "rock-solid-password")
	assert.ElementsMatch(t, []string{"admin", "cataloguer"}, resp.Roles)
}

// TestMeUnauthenticated verifies the identity endpoint requires a token
func TestMeUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "GET", "/api/auth/me", nil, "bogus-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestLogout verifies logout revokes the presenting token immediately
func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")
	resp := env.login(t, "brock", "rock-solid-password")

	// Warm the cache so the revocation has an entry to evict.
	rec := env.do(t, "GET", "/api/auth/me", nil, resp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.mr.Exists("token:"+resp.AccessToken))

	rec = env.do(t, "POST", "/api/auth/logout", nil, resp.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.mr.Exists("token:"+resp.AccessToken))

	// The token is dead from this point on, cache or no cache.
	rec = env.do(t, "GET", "/api/auth/me", nil, resp.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestLogoutAll verifies every session of the user is ended
func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")

	first := env.login(t, "brock", "rock-solid-password")
	second := env.login(t, "brock", "rock-solid-password")
	require.NotEqual(t, first.AccessToken, second.AccessToken)

	rec := env.do(t, "POST", "/api/auth/logout-all", nil, first.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		rec := env.do(t, "GET", "/api/auth/me", nil, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

// TestAdminLogoutAllForUser verifies the administrative bulk revocation
func TestAdminLogoutAllForUser(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")
	env.register(t, "misty", "water-types-rule")

	target := env.login(t, "misty", "water-types-rule")

	adminLogin := env.login(t, "brock", "rock-solid-password")
	env.storage.SetUserRoles(adminLogin.UserID, auth.RoleAdmin)
	adminLogin = env.login(t, "brock", "rock-solid-password")

	rec := env.do(t, "POST", "/api/auth/users/"+target.UserID.String()+"/logout-all", nil, adminLogin.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/auth/me", nil, target.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The admin's own session is unaffected.
	rec = env.do(t, "GET", "/api/auth/me", nil, adminLogin.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestAdminLogoutAllForbidden verifies non-admins cannot revoke others
func TestAdminLogoutAllForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")
	env.register(t, "misty", "water-types-rule")

	target := env.login(t, "misty", "water-types-rule")
	plain := env.login(t, "brock", "rock-solid-password")

	rec := env.do(t, "POST", "/api/auth/users/"+target.UserID.String()+"/logout-all", nil, plain.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The target session survives.
	rec = env.do(t, "GET", "/api/auth/me", nil, target.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestAdminLogoutAllBadID verifies a malformed user ID is a 400
func TestAdminLogoutAllBadID(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")

	login := env.login(t, "brock", "rock-solid-password")
	env.storage.SetUserRoles(login.UserID, auth.RoleAdmin)
	login = env.login(t, "brock", "rock-solid-password")

	rec := env.do(t, "POST", "/api/auth/users/not-a-uuid/logout-all", nil, login.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestValidationCacheFastPath verifies repeated requests are served from the cache
func TestValidationCacheFastPath(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "brock", "rock-solid-password")
	resp := env.login(t, "brock", "rock-solid-password")

	rec := env.do(t, "GET", "/api/auth/me", nil, resp.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.mr.Exists("token:"+resp.AccessToken))

	// Revoke behind the cache's back. The cached principal still resolves
	// until the entry expires; after that the store's verdict wins.
	require.NoError(t, env.storage.MarkAllTokensRevoked(context.Background(), resp.UserID))
	rec = env.do(t, "GET", "/api/auth/me", nil, resp.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.mr.FastForward(2 * time.Minute)
	rec = env.do(t, "GET", "/api/auth/me", nil, resp.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
