// Package api exposes the auth operations over HTTP. Routing is thin: all
// semantics live in pkg/auth, handlers translate JSON and status codes.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/DaylightLtd/minidex/pkg/auth"
	"github.com/DaylightLtd/minidex/pkg/contextkeys"
	"github.com/DaylightLtd/minidex/pkg/httputil"
	"github.com/DaylightLtd/minidex/pkg/middleware"
	"github.com/DaylightLtd/minidex/pkg/observability"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// AuthHandlers handles authentication-related HTTP requests.
type AuthHandlers struct {
	credentials   *auth.CredentialStore
	issuer        *auth.TokenIssuer
	authenticator *auth.Authenticator
	registry      *auth.Registry
	log           *observability.Logger
	metrics       *observability.Metrics
}

// NewAuthHandlers creates a new auth handlers instance. metrics may be nil.
func NewAuthHandlers(
	credentials *auth.CredentialStore,
	issuer *auth.TokenIssuer,
	authenticator *auth.Authenticator,
	registry *auth.Registry,
	log *observability.Logger,
	metrics *observability.Metrics,
) *AuthHandlers {
	if log == nil {
		log = observability.NewNopLogger()
	}
	if registry == nil {
		registry = auth.NewRegistry()
	}
	return &AuthHandlers{
		credentials:   credentials,
		issuer:        issuer,
		authenticator: authenticator,
		registry:      registry,
		log:           log,
		metrics:       metrics,
	}
}

// RegisterRoutes registers authentication routes. Protected routes are
// wrapped with the given auth middleware.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, authMW *middleware.AuthMiddleware) {
	router.HandleFunc("/api/auth/register", h.register).Methods("POST")
	router.HandleFunc("/api/auth/login", h.login).Methods("POST")

	protected := router.PathPrefix("/api/auth").Subrouter()
	protected.Use(authMW.Handler)
	protected.HandleFunc("/me", h.me).Methods("GET")
	protected.HandleFunc("/logout", h.logout).Methods("POST")
	protected.HandleFunc("/logout-all", h.logoutAll).Methods("POST")

	admin := router.PathPrefix("/api/auth/users").Subrouter()
	admin.Use(authMW.Handler, middleware.RequireRoles(auth.RoleAdmin))
	admin.HandleFunc("/{id}/logout-all", h.logoutAllForUser).Methods("POST")
}

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name,omitempty"`
}

// register handles POST /api/auth/register. Registering an identifier that
// already exists returns the same 201 as a fresh registration.
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if len(req.Username) < minUsernameLength {
		httputil.WriteBadRequest(w, "username is too short")
		return
	}
	if len(req.Password) < minPasswordLength {
		httputil.WriteBadRequest(w, "password is too short")
		return
	}
	if req.Password != req.ConfirmPassword {
		httputil.WriteBadRequest(w, "passwords don't match")
		return
	}

	if err := h.credentials.Register(r.Context(), req.Username, req.Password, req.DisplayName); err != nil {
		h.log.WithError(err).Error("registration failed")
		h.countRegistration("error")
		httputil.WriteInternalError(w, errors.New("registration failed"))
		return
	}

	h.countRegistration("created")
	httputil.WriteCreated(w, map[string]string{"status": "created"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	Roles       []string  `json:"roles"`
	AccessToken string    `json:"access_token"`
	ExpiresIn   int       `json:"expires_in"`
}

// login handles POST /api/auth/login.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	principal, err := h.authenticator.ResolveBasic(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrUnauthenticated) {
		h.countLogin("rejected")
		httputil.WriteUnauthorized(w, "unauthenticated")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("credential verification failed")
		h.countLogin("error")
		httputil.WriteInternalError(w, errors.New("login failed"))
		return
	}

	token, err := h.issuer.Issue(r.Context(), principal.UserID)
	if err != nil {
		h.log.WithError(err).Error("token issuance failed")
		h.countLogin("error")
		httputil.WriteInternalError(w, errors.New("login failed"))
		return
	}

	h.countLogin("success")
	httputil.WriteSuccess(w, loginResponse{
		UserID:      principal.UserID,
		Roles:       h.registry.Decode(principal.Roles),
		AccessToken: token.Value,
		ExpiresIn:   int(time.Until(token.ExpiresAt).Seconds()),
	})
}

type principalResponse struct {
	UserID   uuid.UUID  `json:"user_id"`
	Roles    []string   `json:"roles"`
	IsActive bool       `json:"is_active"`
	TokenID  *uuid.UUID `json:"token_id,omitempty"`
}

// me handles GET /api/auth/me.
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "unauthenticated")
		return
	}

	httputil.WriteSuccess(w, principalResponse{
		UserID:   principal.UserID,
		Roles:    h.registry.Decode(principal.Roles),
		IsActive: principal.IsActive,
		TokenID:  principal.TokenID,
	})
}

// logout handles POST /api/auth/logout, revoking the presenting token.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	value := contextkeys.GetBearerToken(r.Context())
	if value == "" {
		httputil.WriteUnauthorized(w, "unauthenticated")
		return
	}

	err := h.issuer.RevokeByValue(r.Context(), value)
	if err != nil && !errors.Is(err, auth.ErrUnauthenticated) {
		h.log.WithError(err).Error("logout failed")
		httputil.WriteInternalError(w, errors.New("logout failed"))
		return
	}
	// A token that disappeared between middleware and here is already as
	// logged out as it gets.
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// logoutAll handles POST /api/auth/logout-all for the current user.
func (h *AuthHandlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "unauthenticated")
		return
	}

	if err := h.issuer.RevokeAll(r.Context(), principal.UserID); err != nil {
		h.log.WithError(err).Error("logout-all failed")
		httputil.WriteInternalError(w, errors.New("logout failed"))
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// logoutAllForUser handles POST /api/auth/users/{id}/logout-all. Admin only.
func (h *AuthHandlers) logoutAllForUser(w http.ResponseWriter, r *http.Request) {
	idStr, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	userID, err := uuid.Parse(idStr)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid user id")
		return
	}

	if err := h.issuer.RevokeAll(r.Context(), userID); err != nil {
		h.log.WithField("target_user_id", userID.String()).WithError(err).Error("admin logout-all failed")
		httputil.WriteInternalError(w, errors.New("logout failed"))
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

func (h *AuthHandlers) countLogin(status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func (h *AuthHandlers) countRegistration(status string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}
