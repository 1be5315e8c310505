package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DaylightLtd/minidex/pkg/cache"
	"github.com/DaylightLtd/minidex/pkg/observability"
)

// Cache key layout. The principal entry holds the serialized Principal
// keyed by the raw token value; the reverse-index entry holds the raw value
// keyed by its SHA-256, so revocation can find the principal entry without
// any other reverse mapping. Both always share one TTL.
func principalKey(value string) string { return "token:" + value }
func reverseKey(hashed string) string  { return "token_hash:" + hashed }

// TokenValidator resolves presented opaque token values into Principals,
// cache-first with store fallback.
type TokenValidator struct {
	storage  Storage
	cache    cache.Cache
	cacheTTL time.Duration
	log      *observability.Logger
	metrics  *observability.Metrics

	// now is stubbed in tests.
	now func() time.Time
}

// NewTokenValidator creates a validator whose cache entries live at most
// cacheTTL (and never longer than the token they represent). metrics may be
// nil.
func NewTokenValidator(storage Storage, c cache.Cache, cacheTTL time.Duration, log *observability.Logger, metrics *observability.Metrics) *TokenValidator {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &TokenValidator{
		storage:  storage,
		cache:    c,
		cacheTTL: cacheTTL,
		log:      log,
		metrics:  metrics,
	}
}

// Validate resolves a presented token value.
//
//  1. Cache hit on the principal entry returns immediately, no store access.
//  2. On miss the store is queried; no row is ErrTokenAbsent.
//  3. A revoked or expired token is rejected and never cached, so no new
//     cache state can mask a later correction.
//  4. A valid token's Principal is cached under both entries with
//     TTL = min(cacheTTL, remaining lifetime).
//
// Cache read failures are treated as misses: the validator fails open to
// the authoritative store, never to stale cached validity.
func (v *TokenValidator) Validate(ctx context.Context, value string) (*Principal, error) {
	if v.cache == nil {
		return v.validateAgainstStore(ctx, value)
	}
	if data, err := v.cache.Get(ctx, principalKey(value)); err == nil {
		var principal Principal
		if err := json.Unmarshal(data, &principal); err == nil {
			if v.metrics != nil {
				v.metrics.CacheHitsTotal.Inc()
				v.metrics.ValidationsTotal.WithLabelValues("valid").Inc()
			}
			return &principal, nil
		}
		// Corrupt entry; drop it and fall through to the store.
		v.log.Warn("dropping corrupt principal cache entry")
		v.deleteKey(ctx, principalKey(value))
	} else if !errors.Is(err, cache.ErrMiss) {
		v.log.WithError(err).Error("principal cache lookup failed")
		if v.metrics != nil {
			v.metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		}
	} else if v.metrics != nil {
		v.metrics.CacheMissesTotal.Inc()
	}

	return v.validateAgainstStore(ctx, value)
}

// validateAgainstStore is the authoritative slow path: look the token up,
// apply the revocation and expiry checks, cache the outcome if positive.
func (v *TokenValidator) validateAgainstStore(ctx context.Context, value string) (*Principal, error) {
	token, user, err := v.storage.TokenByValue(ctx, value)
	if errors.Is(err, ErrNotFound) {
		v.countValidation("absent")
		return nil, ErrTokenAbsent
	}
	if err != nil {
		v.countValidation("error")
		return nil, fmt.Errorf("token lookup: %w", err)
	}

	now := v.clock()
	if token.IsRevoked {
		v.countValidation("revoked")
		return nil, ErrTokenRevoked
	}
	if !token.ExpiresAt.After(now) {
		v.countValidation("expired")
		return nil, ErrTokenExpired
	}

	tokenID := token.ID
	principal := &Principal{
		UserID:   user.ID,
		Roles:    user.Roles,
		IsActive: user.IsActive,
		TokenID:  &tokenID,
	}
	v.cachePrincipal(ctx, value, principal, token.ExpiresAt.Sub(now))
	v.countValidation("valid")
	return principal, nil
}

// Invalidate evicts the cache entries for the token with the given hashed
// value (as produced by HashToken). A missing reverse-index entry means the
// principal entry has expired too, since they share a TTL; nothing to do.
// Cache failures are recovered locally, the TTL bound caps any staleness.
func (v *TokenValidator) Invalidate(ctx context.Context, hashedValue string) {
	invalidateToken(ctx, v.cache, hashedValue, v.log, v.metrics)
}

// cachePrincipal writes the principal and reverse-index entries. Best
// effort: a failed write only forgoes the fast path.
func (v *TokenValidator) cachePrincipal(ctx context.Context, value string, principal *Principal, remaining time.Duration) {
	if v.cache == nil {
		return
	}
	ttl := min(v.cacheTTL, remaining)
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(principal)
	if err != nil {
		v.log.WithError(err).Error("marshal principal for cache")
		return
	}

	if err := v.cache.SetWithTTL(ctx, principalKey(value), data, ttl); err != nil {
		v.log.WithError(err).Error("principal cache write failed")
		if v.metrics != nil {
			v.metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		}
		return
	}
	if err := v.cache.SetWithTTL(ctx, reverseKey(HashToken(value)), []byte(value), ttl); err != nil {
		v.log.WithError(err).Error("reverse-index cache write failed")
		if v.metrics != nil {
			v.metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		}
	}
}

func (v *TokenValidator) deleteKey(ctx context.Context, key string) {
	if err := v.cache.Delete(ctx, key); err != nil {
		v.log.WithError(err).Error("cache delete failed")
		if v.metrics != nil {
			v.metrics.CacheErrorsTotal.WithLabelValues("delete").Inc()
		}
	}
}

func (v *TokenValidator) countValidation(outcome string) {
	if v.metrics != nil {
		v.metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (v *TokenValidator) clock() time.Time {
	if v.now != nil {
		return v.now()
	}
	return time.Now()
}

// invalidateToken is shared by revocation (issuer) and the validator: look
// up the reverse-index entry to recover the raw token value, then delete
// both entries.
func invalidateToken(ctx context.Context, c cache.Cache, hashedValue string, log *observability.Logger, metrics *observability.Metrics) {
	if c == nil {
		return
	}
	value, err := c.Get(ctx, reverseKey(hashedValue))
	if errors.Is(err, cache.ErrMiss) {
		return
	}
	if err != nil {
		log.WithError(err).Error("reverse-index cache lookup failed")
		if metrics != nil {
			metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		}
		return
	}

	for _, key := range []string{principalKey(string(value)), reverseKey(hashedValue)} {
		if err := c.Delete(ctx, key); err != nil {
			log.WithError(err).Error("cache invalidation failed")
			if metrics != nil {
				metrics.CacheErrorsTotal.WithLabelValues("delete").Inc()
			}
		}
	}
}
