package auth

import "errors"

// ErrUnauthenticated is the single outcome surfaced to external callers for
// every authentication failure. The specific sentinels below all match it
// via errors.Is, so handlers cannot accidentally leak which case occurred.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Internal failure distinctions. Logged, never returned across the API
// boundary.
var (
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// secret. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = &authError{"auth: invalid credentials"}
	// ErrTokenAbsent means the presented token value was never issued.
	ErrTokenAbsent = &authError{"auth: token not found"}
	// ErrTokenExpired means the token exists but its lifetime has passed.
	ErrTokenExpired = &authError{"auth: token expired"}
	// ErrTokenRevoked means the token was explicitly revoked.
	ErrTokenRevoked = &authError{"auth: token revoked"}
)

// Storage contract sentinels. Implementations of Storage map their
// backend-specific errors onto these.
var (
	// ErrNotFound is returned by Storage lookups when no row matches.
	ErrNotFound = errors.New("auth: not found")
	// ErrDuplicate is returned by Storage writes that violate a uniqueness
	// constraint (token value, credential identifier).
	ErrDuplicate = errors.New("auth: duplicate")
)

type authError struct {
	msg string
}

func (e *authError) Error() string { return e.msg }

// Is folds every authentication failure into ErrUnauthenticated.
func (e *authError) Is(target error) bool { return target == ErrUnauthenticated }
