package authgin

import (
	"time"

	"github.com/PaulFidika/walletauth/adapters/gin/handlers"
	"github.com/PaulFidika/walletauth/adapters/ginutil"
	core "github.com/PaulFidika/walletauth/core"
	memorylimiter "github.com/PaulFidika/walletauth/ratelimit/memory"
	redisl "github.com/PaulFidika/walletauth/ratelimit/redis"
	memorystore "github.com/PaulFidika/walletauth/storage/memory"
	pgstore "github.com/PaulFidika/walletauth/storage/postgres"
	redisstore "github.com/PaulFidika/walletauth/storage/redis"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Service wraps core.Service with Gin mounting helpers.
type Service struct {
	svc      *core.Service
	rd       *redis.Client
	rl       ginutil.RateLimiter
	clientIP ginutil.ClientIPFunc
	mem      *memorystore.KV
}

var memoryJanitorInterval = time.Minute

// NewService constructs a core.Service backed by in-memory nonces and accounts
// and wraps it for Gin mounting. Close stops the nonce sweeper.
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
	return &Service{svc: coreSvc, mem: kv}, nil
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
func Wrap(svc *core.Service) *Service { return &Service{svc: svc} }

func (s *Service) WithPostgres(pg *pgxpool.Pool) *Service {
	s.svc = s.svc.WithAccounts(pgstore.NewAccounts(pg))
	return s
}

// WithRedis keeps nonces in Redis and shares rate limits across nodes.
func (s *Service) WithRedis(rd *redis.Client) *Service {
	if rd != nil {
		_ = s.Close()
		s.rd = rd
		s.svc = s.svc.WithEphemeralStore(redisstore.NewKV(rd), core.EphemeralRedis)
	}
	return s
}
func (s *Service) WithRateLimiter(rl ginutil.RateLimiter) *Service { s.rl = rl; return s }

// WithClientIPFunc picks the address rate limits are keyed on. The default,
// ginutil.RemoteIP, ignores X-Forwarded-For; pass ginutil.ForwardedClientIP
// behind a proxy once the engine's SetTrustedProxies is configured.
func (s *Service) WithClientIPFunc(fn ginutil.ClientIPFunc) *Service {
	s.clientIP = fn
	return s
}

// WithAuthLogger wires a custom authentication event sink (e.g. a Watermill publisher).
func (s *Service) WithAuthLogger(l core.AuthEventLogger) *Service {
	s.svc = s.svc.WithAuthLogger(l)
	return s
}
func (s *Service) WithMetrics(m core.MetricsRecorder) *Service {
	s.svc = s.svc.WithMetrics(m)
	return s
}

// GinRegisterAPI mounts the wallet auth JSON endpoints under the given router/group
// (e.g. r.Group("/api/auth")).
func (s *Service) GinRegisterAPI(api gin.IRouter) *Service {
	if !core.IsDevEnvironment() && s.svc.EphemeralMode() == core.EphemeralMemory {
		panic("walletauth: a shared nonce store (redis or postgres) is required in production")
	}
	rl := s.ensureLimiter()

	api.POST("/challenge", handlers.HandleWalletChallengePOST(s.svc, rl, s.clientIP))
	api.POST("/verify", handlers.HandleWalletVerifyPOST(s.svc, rl, s.clientIP))
	return s
}

func (s *Service) Core() *core.Service { return s.svc }

func (s *Service) ensureLimiter() ginutil.RateLimiter {
	if s.rl != nil {
		return s.rl
	}
	if s.rd != nil {
		s.rl = redisl.New(s.rd, defaultLimits())
		return s.rl
	}
	log.Info("walletauth: Redis client not configured; using in-memory rate limiter (single-node only)")
	s.rl = memorylimiter.New(defaultMemoryLimits())
	return s.rl
}

// defaultLimits provides default rate limits for the wallet endpoints.
func defaultLimits() map[string]redisl.Limit {
	return map[string]redisl.Limit{
		"default":                 {Limit: 120, Window: time.Minute},
		ginutil.RLWalletChallenge: {Limit: 30, Window: 10 * time.Minute},
		ginutil.RLWalletVerify:    {Limit: 20, Window: 10 * time.Minute},
	}
}

// defaultMemoryLimits mirrors defaultLimits but for the in-memory limiter type.
func defaultMemoryLimits() map[string]memorylimiter.Limit {
	return map[string]memorylimiter.Limit{
		"default":                 {Limit: 120, Window: time.Minute},
		ginutil.RLWalletChallenge: {Limit: 30, Window: 10 * time.Minute},
		ginutil.RLWalletVerify:    {Limit: 20, Window: 10 * time.Minute},
	}
}
