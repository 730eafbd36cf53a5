package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streakvault/streakvault/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowSrc string

// RateLimiter counts requests in a sliding window kept in a sorted set. The
// count-and-record step runs as one Lua script so concurrent callers cannot
// both slip under the limit.
type RateLimiter struct {
	rdb    *redis.Client
	window *redis.Script
}

// Retry cadence for Wait.
const waitRetryEvery = 50 * time.Millisecond

// NewRateLimiter returns a limiter sharing the client's pool.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.rdb,
		window: redis.NewScript(slidingWindowSrc),
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// Allow reports whether key may make another request under limit-per-window,
// counting the request when it may.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	res, err := l.window.Run(ctx, l.rdb,
		[]string{"ratelimit:" + key},
		time.Now().UnixMicro(),
		window.Microseconds(),
		limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 2 {
		return false, fmt.Errorf("redis: rate limit %s: short script reply (%d values)", key, len(res))
	}
	return res[0] == 1, nil
}

// Wait blocks until key is allowed one request at a 1/s budget, or the
// context ends. Callers with other budgets should loop on Allow themselves.
func (l *RateLimiter) Wait(ctx context.Context, key string) error {
	tick := time.NewTicker(waitRetryEvery)
	defer tick.Stop()

	for {
		ok, err := l.Allow(ctx, key, 1, time.Second)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-tick.C:
		}
	}
}
