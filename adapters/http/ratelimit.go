package authhttp

// RateLimiter is a minimal interface used by adapters.
// memorylimiter.Limiter and redislimiter.Limiter implement it.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}
