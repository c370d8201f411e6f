package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts chat requests per client in fixed windows.
type RedisLimiter struct {
	client *redis.Client
	limit  int // Max requests per window
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (r *RedisLimiter) CheckLimit(ctx context.Context, clientID string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	val, err := r.client.Get(ctx, limiterKey(clientID)).Result()
	if err == redis.Nil {
		return true, nil // No usage yet
	}
	if err != nil {
		return false, fmt.Errorf("reading usage: %w", err)
	}
	usage, _ := strconv.Atoi(val)
	return usage < r.limit, nil
}

func (r *RedisLimiter) Increment(ctx context.Context, clientID string) error {
	key := limiterKey(clientID)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return r.client.Expire(ctx, key, r.window).Err()
	}
	return nil
}

func limiterKey(clientID string) string {
	return "usage:" + clientID
}
