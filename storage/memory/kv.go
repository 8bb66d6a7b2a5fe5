package memorystore

import (
	"context"
	"sync"
	"time"
)

type kvItem struct {
	value   []byte
	expires time.Time
}

// KV is a simple in-memory key-value store with TTL support.
// It is only safe for single-process deployments.
//
// Expired entries are never returned. They are removed lazily on Get, by Sweep,
// or periodically once StartJanitor has been called.
type KV struct {
	mu    sync.Mutex
	items map[string]kvItem
	now   func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type Option func(*KV)

// WithClock overrides time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(k *KV) {
		if now != nil {
			k.now = now
		}
	}
}

func NewKV(opts ...Option) *KV {
	k := &KV{items: make(map[string]kvItem), now: time.Now}
	for _, o := range opts {
		o(k)
	}
	return k
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	it, ok := k.items[key]
	if !ok {
		return nil, false, nil
	}
	if k.expired(it) {
		delete(k.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = k.now().Add(ttl)
	}
	k.items[key] = kvItem{value: append([]byte(nil), value...), expires: exp}
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	_ = ctx
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.items, key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (k *KV) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.items)
}

// Sweep removes expired entries and returns how many were dropped.
func (k *KV) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key, it := range k.items {
		if k.expired(it) {
			delete(k.items, key)
			n++
		}
	}
	return n
}

// StartJanitor sweeps expired entries every interval until Close is called.
// Calling it more than once has no effect.
func (k *KV) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	k.mu.Lock()
	if k.stop != nil {
		k.mu.Unlock()
		return
	}
	k.stop = make(chan struct{})
	k.done = make(chan struct{})
	stop, done := k.stop, k.done
	k.mu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				k.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Close stops the janitor, if running, and waits for it to exit.
func (k *KV) Close() error {
	k.mu.Lock()
	stop, done := k.stop, k.done
	k.mu.Unlock()
	if stop == nil {
		return nil
	}
	k.stopOnce.Do(func() { close(stop) })
	<-done
	return nil
}

func (k *KV) expired(it kvItem) bool {
	return !it.expires.IsZero() && !k.now().Before(it.expires)
}
