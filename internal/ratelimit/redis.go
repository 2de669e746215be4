package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

// Redis is a fixed-window limiter shared across instances: one INCR per
// request on a per-key window counter. The first increment of a window sets
// its TTL.
type Redis struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedis allows perWindow requests per key within each window.
func NewRedis(client *redis.Client, perWindow int, window time.Duration) *Redis {
	return &Redis{client: client, limit: perWindow, window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(r.window.Seconds()))
	n, err := r.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, core.NewError(core.CodeStorage, "rate limit counter", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, bucket, r.window).Err(); err != nil {
			return false, core.NewError(core.CodeStorage, "rate limit expiry", err)
		}
	}
	return n <= int64(r.limit), nil
}
