// Package memorylimiter is a single-process token bucket rate limiter keyed by bucket and client.
package memorylimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit allows Limit events per Window, refilled continuously, with a burst of Limit.
type Limit struct {
	Limit  int
	Window time.Duration
}

// DefaultBucket is used for bucket names with no explicit limit.
const DefaultBucket = "default"

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter applies a token bucket per key and periodically evicts idle entries.
type Limiter struct {
	limits  map[string]Limit
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIdleTTL sets how long an untouched key is kept before eviction.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

func New(limits map[string]Limit, opts ...Option) *Limiter {
	l := &Limiter{
		limits:  limits,
		idleTTL: 30 * time.Minute,
		now:     time.Now,
		byKey:   make(map[string]*entry),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// AllowNamed reports whether one more event for key fits in bucket's limit.
// Buckets without a configured (or default) limit are unlimited.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits[DefaultBucket]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return true, nil
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	k := bucket + "|" + key
	e, ok := l.byKey[k]
	if !ok {
		every := lim.Window / time.Duration(lim.Limit)
		e = &entry{limiter: rate.NewLimiter(rate.Every(every), lim.Limit)}
		l.byKey[k] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed, nil
}
