package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DaylightLtd/minidex/pkg/cache"
	"github.com/DaylightLtd/minidex/pkg/observability"
)

// maxIssueAttempts bounds regeneration on store-detected token value
// collisions. With 256-bit values, exhausting this indicates a broken
// entropy source rather than bad luck.
const maxIssueAttempts = 3

// TokenIssuer mints and revokes opaque access tokens.
type TokenIssuer struct {
	storage Storage
	cache   cache.Cache
	gen     *TokenGenerator
	ttl     time.Duration
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewTokenIssuer creates an issuer producing tokens that expire ttl after
// issuance. metrics may be nil.
func NewTokenIssuer(storage Storage, c cache.Cache, gen *TokenGenerator, ttl time.Duration, log *observability.Logger, metrics *observability.Metrics) *TokenIssuer {
	if gen == nil {
		gen = NewTokenGenerator(DefaultTokenLength)
	}
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &TokenIssuer{
		storage: storage,
		cache:   c,
		gen:     gen,
		ttl:     ttl,
		log:     log,
		metrics: metrics,
	}
}

// TTL returns the configured token lifetime.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue generates and persists a new access token for the user. A
// uniqueness violation on the token value triggers regeneration, bounded by
// maxIssueAttempts.
func (i *TokenIssuer) Issue(ctx context.Context, userID uuid.UUID) (*Token, error) {
	for attempt := 1; ; attempt++ {
		value, err := i.gen.Generate()
		if err != nil {
			return nil, err
		}

		now := time.Now()
		token := &Token{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      TokenAccess,
			Value:     value,
			ExpiresAt: now.Add(i.ttl),
			CreatedAt: now,
		}

		err = i.storage.CreateToken(ctx, token)
		if errors.Is(err, ErrDuplicate) {
			if attempt >= maxIssueAttempts {
				return nil, fmt.Errorf("token value collided %d times, entropy source suspect", attempt)
			}
			i.log.Warnf("token value collision on attempt %d, regenerating", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("persist token: %w", err)
		}

		if i.metrics != nil {
			i.metrics.TokensIssuedTotal.Inc()
		}
		i.log.WithFields(map[string]interface{}{
			"user_id":  userID.String(),
			"token_id": token.ID.String(),
		}).Debug("issued access token")
		return token, nil
	}
}

// Revoke marks the token revoked in the store, then synchronously evicts
// its cache entries before returning. Revocation exists to close the access
// window, so the eviction is awaited; a failed eviction is logged and the
// TTL bound caps the residual staleness.
func (i *TokenIssuer) Revoke(ctx context.Context, token *Token) error {
	if err := i.storage.MarkTokenRevoked(ctx, token.ID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	token.IsRevoked = true

	invalidateToken(ctx, i.cache, HashToken(token.Value), i.log, i.metrics)

	if i.metrics != nil {
		i.metrics.TokensRevokedTotal.WithLabelValues("single").Inc()
	}
	i.log.WithField("token_id", token.ID.String()).Debug("revoked token")
	return nil
}

// RevokeByValue looks up a presented token value and revokes it. Unknown
// values return ErrTokenAbsent.
func (i *TokenIssuer) RevokeByValue(ctx context.Context, value string) error {
	token, _, err := i.storage.TokenByValue(ctx, value)
	if errors.Is(err, ErrNotFound) {
		return ErrTokenAbsent
	}
	if err != nil {
		return fmt.Errorf("token lookup: %w", err)
	}
	return i.Revoke(ctx, token)
}

// RevokeAll revokes every active token of the user. The bulk store update
// is the authoritative step; the per-token cache evictions afterwards are
// best effort, since each cached entry expires within the TTL bound anyway.
func (i *TokenIssuer) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	tokens, err := i.storage.ActiveTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}

	if err := i.storage.MarkAllTokensRevoked(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	for idx := range tokens {
		invalidateToken(ctx, i.cache, HashToken(tokens[idx].Value), i.log, i.metrics)
	}

	if i.metrics != nil {
		i.metrics.TokensRevokedTotal.WithLabelValues("all").Inc()
	}
	i.log.WithField("user_id", userID.String()).Debugf("revoked all active tokens (%d)", len(tokens))
	return nil
}
