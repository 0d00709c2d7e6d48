package storage

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Backend = (*RedisBackend)(nil)

//go:embed ratelimit.lua
var rateLimitLua string

var rateLimitScript = redis.NewScript(rateLimitLua)

const (
	deliveryKeyPrefix  = "webhook:seen:"
	rateLimitKeyPrefix = "webhook:rate:"
)

type RedisConfig struct {
	Client *redis.Client

	RateLimit  int
	RateWindow time.Duration
	Retention  time.Duration
}

// RedisBackend shares idempotency and rate-limit state across instances.
// Claim relies on SET NX and the rate window on a single Lua script, so
// both are atomic on the Redis side.
type RedisBackend struct {
	client     *redis.Client
	rateLimit  int
	rateWindow time.Duration
	retention  time.Duration
}

func NewRedisBackend(cfg RedisConfig) *RedisBackend {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &RedisBackend{
		client:     cfg.Client,
		rateLimit:  cfg.RateLimit,
		rateWindow: cfg.RateWindow,
		retention:  cfg.Retention,
	}
}

func (r *RedisBackend) Claim(ctx context.Context, deliveryID string) (bool, error) {
	claimed, err := r.client.SetNX(ctx, deliveryKeyPrefix+deliveryID, 1, r.retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	return claimed, nil
}

func (r *RedisBackend) Release(ctx context.Context, deliveryID string) error {
	if err := r.client.Del(ctx, deliveryKeyPrefix+deliveryID).Err(); err != nil {
		return fmt.Errorf("failed to release delivery: %w", err)
	}
	return nil
}

func (r *RedisBackend) Allow(ctx context.Context, shop string) (RateLimitResult, error) {
	result, err := rateLimitScript.Run(ctx, r.client,
		[]string{rateLimitKeyPrefix + shop},
		r.rateLimit,
		r.rateWindow.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(result) != 2 {
		return RateLimitResult{}, fmt.Errorf("unexpected rate limit script result: %v", result)
	}

	return RateLimitResult{
		Allowed:    result[0] == 1,
		RetryAfter: time.Duration(result[1]) * time.Millisecond,
	}, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
