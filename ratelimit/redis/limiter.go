// Package redislimiter is a fixed-window rate limiter shared across processes through Redis.
package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit allows Limit events per fixed Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

const DefaultBucket = "default"

// Limiter counts events with INCR; the first hit in a window sets its expiry.
type Limiter struct {
	rdb     redis.UniversalClient
	limits  map[string]Limit
	prefix  string
	timeout time.Duration
}

func New(rdb redis.UniversalClient, limits map[string]Limit) *Limiter {
	return &Limiter{rdb: rdb, limits: limits, prefix: "rl:", timeout: 500 * time.Millisecond}
}

// AllowNamed reports whether one more event for key fits in bucket's limit.
// Redis errors are returned; callers decide whether to fail open.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil || key == "" {
		return true, nil
	}
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits[DefaultBucket]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return true, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	k := l.prefix + key
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, lim.Window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return n <= int64(lim.Limit), nil
}
