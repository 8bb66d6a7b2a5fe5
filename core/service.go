package core

import (
	"os"
	"strings"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
	"github.com/sirupsen/logrus"
)

// Service is the wallet authentication service used by HTTP adapters.
type Service struct {
	opts          Options
	nonces        walletsig.NonceStore
	ephemeralMode EphemeralMode
	accounts      AccountRepository
	authlog       AuthEventLogger
	metrics       MetricsRecorder
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewService(opts Options) *Service {
	return &Service{
		opts:          opts,
		ephemeralMode: EphemeralMemory,
		log:           logrus.StandardLogger(),
		now:           time.Now,
	}
}

// Options returns the resolved options.
func (s *Service) Options() Options { return s.opts }

// WithNonceStore sets the nonce store directly, for backends that are not plain
// key-value stores (e.g. Postgres).
func (s *Service) WithNonceStore(ns walletsig.NonceStore, mode EphemeralMode) *Service {
	if mode == "" {
		mode = EphemeralMemory
	}
	s.nonces = ns
	s.ephemeralMode = mode
	return s
}

// WithAccounts sets the account repository.
func (s *Service) WithAccounts(repo AccountRepository) *Service { s.accounts = repo; return s }

// WithAuthLogger sets an optional audit sink.
func (s *Service) WithAuthLogger(l AuthEventLogger) *Service { s.authlog = l; return s }

// WithMetrics sets an optional metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service { s.metrics = m; return s }

func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

// WithClock overrides the time source. Tests use it to step past the nonce TTL.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// IsDevEnvironment reports whether the current ENV/APP_ENV/ENVIRONMENT is non-production.
func IsDevEnvironment() bool {
	return isDevEnvironment(getEnvironment())
}

// getEnvironment reads the environment from ENV, APP_ENV, or ENVIRONMENT variables
func getEnvironment() string {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	return env
}

// isDevEnvironment returns true unless the environment is explicitly set to prod/production
func isDevEnvironment(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e != "prod" && e != "production"
}
