// Package auth implements credential verification, opaque bearer token
// issuance and validation, and role-based access control for the MiniDex
// catalog service.
//
// # Components
//
//   - Registry: role name <-> bitmask codec
//   - CredentialStore: password hashing/verification and registration
//   - TokenIssuer: opaque token generation, persistence, and revocation
//   - TokenValidator: cache-first token validation with revocation-driven
//     invalidation
//   - Authenticator: single entry point resolving Basic credentials or
//     Bearer tokens into a Principal
//
// # Validation fast path
//
// Validated tokens are cached under two keys: a principal entry keyed by the
// raw token value, and a reverse-index entry keyed by the SHA-256 of the
// value. Both share TTL = min(configured cache TTL, remaining token
// lifetime), so a cache entry can never outlive the token it represents.
// Revocation deletes both entries synchronously before returning.
//
// Cache failures are never fatal: reads fall through to the persistent
// store, writes and deletes are logged and ignored.
//
// # Error model
//
// Invalid credentials, absent, expired, and revoked tokens are distinct
// sentinel errors internally, but all of them match ErrUnauthenticated via
// errors.Is. Callers facing external clients should surface only the
// generic unauthenticated outcome.
package auth
