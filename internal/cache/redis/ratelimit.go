package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predexlabs/oppengine/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a fixed-window counter:
// INCR the key and set the window TTL on first increment. Good enough for
// protecting the gateway; precision of a sliding window is not needed here.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

// Allow increments the counter for key and reports whether the count is
// within limit for the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit incr %s: %w", key, err)
	}
	// First hit in the window starts the clock.
	if n == 1 {
		if err := rl.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("redis: rate limit expire %s: %w", key, err)
		}
	}
	return n <= int64(limit), nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
