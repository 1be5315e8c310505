// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all protected API endpoints
	PrincipalKey Key = "principal"

	// BearerTokenKey contains the raw presented bearer token value
	// Set by: middleware.AuthMiddleware
	// Used by: logout, which revokes the presenting token
	BearerTokenKey Key = "bearer_token"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logging
	RequestIDKey Key = "request_id"
)

// WithPrincipal adds the resolved principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithBearerToken adds the raw bearer token value to the context
func WithBearerToken(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, BearerTokenKey, value)
}

// GetBearerToken retrieves the raw bearer token value from the context
func GetBearerToken(ctx context.Context) string {
	if value, ok := ctx.Value(BearerTokenKey).(string); ok {
		return value
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
