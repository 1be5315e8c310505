package auth

import (
	"context"
	"errors"

	"github.com/DaylightLtd/minidex/pkg/observability"
)

// Authenticator is the single principal-resolution entry point. It is
// stateless per request: Basic credentials are used only at login, Bearer
// tokens on every protected request, and no session affinity exists.
type Authenticator struct {
	credentials *CredentialStore
	validator   *TokenValidator
	log         *observability.Logger
}

// NewAuthenticator creates an authenticator over the two flows.
func NewAuthenticator(credentials *CredentialStore, validator *TokenValidator, log *observability.Logger) *Authenticator {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &Authenticator{credentials: credentials, validator: validator, log: log}
}

// ResolveBasic resolves an identifier/secret pair. Every authentication
// failure comes back as ErrUnauthenticated; the specific cause is logged
// here and goes no further.
func (a *Authenticator) ResolveBasic(ctx context.Context, identifier, secret string) (*Principal, error) {
	principal, err := a.credentials.Verify(ctx, identifier, secret)
	if err != nil {
		return nil, a.fold(err, "basic")
	}
	return principal, nil
}

// ResolveBearer resolves a presented opaque token value.
func (a *Authenticator) ResolveBearer(ctx context.Context, value string) (*Principal, error) {
	principal, err := a.validator.Validate(ctx, value)
	if err != nil {
		return nil, a.fold(err, "bearer")
	}
	return principal, nil
}

// fold collapses auth-state failures into the generic unauthenticated
// outcome, keeping the internal distinction in the logs only. Infrastructure
// errors pass through untouched.
func (a *Authenticator) fold(err error, flow string) error {
	if errors.Is(err, ErrUnauthenticated) {
		a.log.WithFields(map[string]interface{}{
			"flow":   flow,
			"reason": err.Error(),
		}).Debug("authentication rejected")
		return ErrUnauthenticated
	}
	return err
}
