// Package ratelimit throttles sign-in attempts per account key.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ecotrack:ratelimit:"

// Limiter is a fixed-window counter: at most limit hits per window.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

func New(client redis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: int64(limit), window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
// The window starts at the first hit. A counter found without an expiry
// gets one, so a lost EXPIRE never locks the key out for good.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + strings.ToLower(strings.TrimSpace(key))

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ratelimit: %w", err)
	}
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expire: %w", err)
		}
	}
	return incr.Val() <= l.limit, nil
}
