// Package middleware provides HTTP middleware turning bearer tokens into
// request-scoped principals and enforcing role requirements.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/DaylightLtd/minidex/pkg/auth"
	"github.com/DaylightLtd/minidex/pkg/contextkeys"
	"github.com/DaylightLtd/minidex/pkg/httputil"
)

// AuthMiddleware resolves the Authorization header into a Principal.
type AuthMiddleware struct {
	authenticator *auth.Authenticator
	optional      bool // if true, requests without a header pass through anonymously
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator *auth.Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
	}
}

// Handler wraps an HTTP handler with bearer authentication. Every
// authentication failure produces the same generic 401 body; the specific
// cause stays in the server logs.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "unauthenticated")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "unauthenticated")
			return
		}
		value := parts[1]

		principal, err := m.authenticator.ResolveBearer(r.Context(), value)
		if errors.Is(err, auth.ErrUnauthenticated) {
			httputil.WriteUnauthorized(w, "unauthenticated")
			return
		}
		if err != nil {
			httputil.WriteInternalError(w, errors.New("authentication backend unavailable"))
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithBearerToken(ctx, value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the resolved principal from the request, or nil.
func GetPrincipal(r *http.Request) *auth.Principal {
	value := r.Context().Value(contextkeys.PrincipalKey)
	if value == nil {
		return nil
	}
	principal, ok := value.(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}

// RequireRoles creates middleware requiring every role in roles. Must run
// inside AuthMiddleware.Handler.
func RequireRoles(roles auth.Roles) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)
			if principal == nil {
				httputil.WriteUnauthorized(w, "unauthenticated")
				return
			}
			if !principal.Roles.Has(roles) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActive creates middleware rejecting principals whose user account
// has been deactivated.
func RequireActive() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r)
			if principal == nil {
				httputil.WriteUnauthorized(w, "unauthenticated")
				return
			}
			if !principal.IsActive {
				httputil.WriteForbidden(w, "account deactivated")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
