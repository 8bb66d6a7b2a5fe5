package core

import (
	"fmt"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
)

// Config is the high-level configuration accepted by NewFromConfig.
type Config struct {
	// NonceTTL bounds how long an issued challenge can be answered. Defaults to 300s.
	NonceTTL time.Duration
	// Clock overrides time.Now; timestamps embedded in challenges come from it.
	Clock func() time.Time
}

// Options are the resolved settings a Service runs with.
type Options struct {
	NonceTTL time.Duration
}

func (o Options) nonceTTL() time.Duration {
	if o.NonceTTL <= 0 {
		return walletsig.DefaultNonceTTL
	}
	return o.NonceTTL
}

// NewFromConfig validates cfg and builds a Service. Stores, accounts and sinks are
// attached afterwards with the With* builders.
func NewFromConfig(cfg Config) (*Service, error) {
	ttl := cfg.NonceTTL
	if ttl == 0 {
		ttl = walletsig.DefaultNonceTTL
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("walletauth: NonceTTL must be at least 1s, got %s", ttl)
	}
	s := NewService(Options{NonceTTL: ttl})
	if cfg.Clock != nil {
		s.WithClock(cfg.Clock)
	}
	return s, nil
}
