package authhttp

import (
	"context"
	"net/http"
	"strings"
	"time"

	core "github.com/PaulFidika/walletauth/core"
	memorylimiter "github.com/PaulFidika/walletauth/ratelimit/memory"
	memorystore "github.com/PaulFidika/walletauth/storage/memory"
	pgstore "github.com/PaulFidika/walletauth/storage/postgres"
	redisstore "github.com/PaulFidika/walletauth/storage/redis"
	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service wraps core.Service with net/http mounting helpers.
type Service struct {
	svc      *core.Service
	rl       RateLimiter
	clientIP ClientIPFunc
	log      logrus.FieldLogger
	mem      *memorystore.KV
}

// memoryJanitorInterval is how often the default in-memory nonce store drops
// abandoned challenges.
var memoryJanitorInterval = time.Minute

func (s *Service) allow(r *http.Request, bucket string) bool {
	if s == nil || s.rl == nil {
		return true
	}
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	ip := ipFn(r)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	key := "auth:" + bucket + ":ip:" + ip
	ok, err := s.rl.AllowNamed(bucket, key)
	if err != nil {
		s.logger().WithError(err).WithField("bucket", bucket).Warn("walletauth: rate limiter unavailable, allowing request")
		return true
	}
	return ok
}

// requestContext annotates the request context with the caller's IP and user agent
// so audit events can carry them.
func (s *Service) requestContext(r *http.Request) context.Context {
	ipFn := s.clientIP
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	ip := ipFn(r)
	if ip == "" {
		ip = remoteIP(r)
	}
	return core.WithRequestMeta(r.Context(), ip, r.UserAgent())
}

func (s *Service) logger() logrus.FieldLogger {
	if s.log == nil {
		return logrus.StandardLogger()
	}
	return s.log
}

// NewService constructs a core.Service and wraps it for net/http mounting.
// It starts with an in-memory nonce store and account repository for
// dev/single-instance use; production deployments replace both.
func NewService(cfg core.Config) (*Service, error) {
	coreSvc, err := core.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	kv := memorystore.NewKV(memorystore.WithClock(cfg.Clock))
	kv.StartJanitor(memoryJanitorInterval)
	coreSvc = coreSvc.
		WithEphemeralStore(kv, core.EphemeralMemory).
		WithAccounts(core.NewMemoryAccounts())
	s := Wrap(coreSvc)
	s.mem = kv
	return s, nil
}

// Close stops the sweeper of the in-memory nonce store created by NewService.
func (s *Service) Close() error {
	if s.mem == nil {
		return nil
	}
	err := s.mem.Close()
	s.mem = nil
	return err
}

// Wrap mounts an already configured core.Service.
func Wrap(svc *core.Service) *Service {
	return &Service{
		svc:      svc,
		rl:       memorylimiter.New(ToMemoryLimits(DefaultRateLimits())),
		clientIP: DefaultClientIP(),
		log:      logrus.StandardLogger(),
	}
}

// WithPostgres stores accounts in Postgres.
func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	s.svc = s.svc.WithAccounts(pgstore.NewAccounts(pg))
	return s
}

// WithRedis keeps nonces in Redis.
func (s *Service) WithRedis(rd *redis.Client) *Service {
	if rd != nil {
		_ = s.Close()
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd), core.EphemeralRedis)
	}
	return s
}

// WithNonceStore installs a non key-value nonce backend such as pgstore.NonceStore.
func (s *Service) WithNonceStore(ns walletsig.NonceStore, mode core.EphemeralMode) *Service {
	_ = s.Close()
	s.svc = s.svc.WithNonceStore(ns, mode)
	return s
}
func (s *Service) WithAccounts(repo core.AccountRepository) *Service {
	s.svc = s.svc.WithAccounts(repo)
	return s
}
func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service            { s.rl = nil; return s }
func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
		return s
	}
	s.clientIP = fn
	return s
}
func (s *Service) WithAuthLogger(l core.AuthEventLogger) *Service {
	s.svc = s.svc.WithAuthLogger(l)
	return s
}
func (s *Service) WithMetrics(m core.MetricsRecorder) *Service {
	s.svc = s.svc.WithMetrics(m)
	return s
}
func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l != nil {
		s.log = l
		s.svc = s.svc.WithLogger(l)
	}
	return s
}

func (s *Service) Core() *core.Service { return s.svc }
