package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/scry-practice/internal/config"
)

// Counter is the subset of Redis the fixed window limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RedisClient adapts a go-redis client to Counter.
type RedisClient struct {
	cli *redis.Client
}

var _ Counter = (*RedisClient)(nil)

// NewRedisClient connects to the Redis instance at cfg.URL and pings it.
// Password and DB override the values in the URL when set.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisClient{cli: c}, nil
}

func (c *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return c.cli.Incr(ctx, key).Result()
}

func (c *RedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.cli.Expire(ctx, key, expiration).Err()
}

// Ping checks the connection.
func (c *RedisClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

// Close releases the connection pool.
func (c *RedisClient) Close() error { return c.cli.Close() }

// RedisLimiter is a fixed window counter shared by every instance using the
// same Redis. The first request of a window sets its expiry.
type RedisLimiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(counter Counter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{counter: counter, limit: limit, window: window}
}

// Allow implements Limiter.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.counter.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.counter.Expire(ctx, key, r.window); err != nil {
			return false, err
		}
	}

	return count <= int64(r.limit), nil
}
