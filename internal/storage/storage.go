package storage

import (
	"context"
	"time"
)

// IdempotencyStore tracks which delivery IDs have been handled so that
// platform redeliveries are acknowledged without re-running the handler.
//
// Claim is an atomic check-and-mark: of N concurrent calls with the same
// deliveryID, exactly one returns true. The claim persists for the
// retention window; Release undoes it so a failed handler leaves the
// delivery reprocessable by the sender's retry.
type IdempotencyStore interface {
	Claim(ctx context.Context, deliveryID string) (bool, error)
	Release(ctx context.Context, deliveryID string) error
}

type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter counts requests per shop within a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, shop string) (RateLimitResult, error)
}

// Backend bundles the pipeline's shared mutable state. In a multi-instance
// deployment this must be the Redis backend; the in-memory backend degrades
// to per-process dedup the moment a second instance starts.
type Backend interface {
	IdempotencyStore
	RateLimiter

	Close() error

	Ping(ctx context.Context) error
}
