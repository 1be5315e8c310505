// Package cache provides the TTL key-value cache capability consumed by the
// auth fast path. The production implementation is Redis; everything behind
// the Cache interface has network-call semantics and may fail without
// affecting correctness.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a TTL key-value store. Implementations must be safe for
// concurrent use and must honor context cancellation; no call may block
// indefinitely.
type Cache interface {
	// Get returns the value for key, or ErrMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value under key, expiring after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
