package main

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PaulFidika/walletauth/walletsig"
	"gopkg.in/yaml.v3"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

type config struct {
	ListenAddr     string        `yaml:"listenAddr"`
	MountPrefix    string        `yaml:"mountPrefix"`
	DBURL          string        `yaml:"dbURL"`
	RedisURL       string        `yaml:"redisURL"`
	RedisKeyPrefix string        `yaml:"redisKeyPrefix"`
	NonceBackend   string        `yaml:"nonceBackend"`
	NonceTTL       time.Duration `yaml:"nonceTTL"`
	SweepCron      string        `yaml:"sweepCron"`
	EventsStream   string        `yaml:"eventsStream"`
	TrustedProxies []string      `yaml:"trustedProxies"`
	MigrateOnStart *bool         `yaml:"migrateOnStart"`
	LogLevel       string        `yaml:"logLevel"`
	LogFormat      string        `yaml:"logFormat"`
}

func defaultConfig() config {
	migrate := true
	return config{
		ListenAddr:     ":8080",
		MountPrefix:    "/api/auth",
		NonceTTL:       walletsig.DefaultNonceTTL,
		EventsStream:   "walletauth.events",
		MigrateOnStart: &migrate,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// loadConfig reads the optional YAML file at path, then applies environment overrides.
func loadConfig(path string, getenv func(string) string) (config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var parsed config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		merge(&cfg, parsed)
	}
	if err := applyEnvOverrides(&cfg, getenv); err != nil {
		return config{}, err
	}
	if cfg.NonceBackend == "" {
		switch {
		case cfg.RedisURL != "":
			cfg.NonceBackend = backendRedis
		case cfg.DBURL != "":
			cfg.NonceBackend = backendPostgres
		default:
			cfg.NonceBackend = backendMemory
		}
	}
	return cfg, cfg.validate(getenv)
}

func merge(dst *config, src config) {
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.MountPrefix != "" {
		dst.MountPrefix = src.MountPrefix
	}
	if src.DBURL != "" {
		dst.DBURL = src.DBURL
	}
	if src.RedisURL != "" {
		dst.RedisURL = src.RedisURL
	}
	if src.RedisKeyPrefix != "" {
		dst.RedisKeyPrefix = src.RedisKeyPrefix
	}
	if src.NonceBackend != "" {
		dst.NonceBackend = src.NonceBackend
	}
	if src.NonceTTL != 0 {
		dst.NonceTTL = src.NonceTTL
	}
	if src.SweepCron != "" {
		dst.SweepCron = src.SweepCron
	}
	if src.EventsStream != "" {
		dst.EventsStream = src.EventsStream
	}
	if src.TrustedProxies != nil {
		dst.TrustedProxies = src.TrustedProxies
	}
	if src.MigrateOnStart != nil {
		dst.MigrateOnStart = src.MigrateOnStart
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

func applyEnvOverrides(cfg *config, getenv func(string) string) error {
	env := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}
	if v := env("WALLETAUTH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := env("WALLETAUTH_MOUNT_PREFIX"); v != "" {
		cfg.MountPrefix = v
	}
	if v := env("DB_URL", "DATABASE_URL"); v != "" {
		cfg.DBURL = v
	}
	if v := env("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := env("WALLETAUTH_REDIS_KEY_PREFIX"); v != "" {
		cfg.RedisKeyPrefix = v
	}
	if v := env("WALLETAUTH_NONCE_BACKEND"); v != "" {
		cfg.NonceBackend = strings.ToLower(v)
	}
	if v := env("WALLETAUTH_NONCE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WALLETAUTH_NONCE_TTL: %w", err)
		}
		cfg.NonceTTL = d
	}
	if v := env("WALLETAUTH_SWEEP_CRON"); v != "" {
		cfg.SweepCron = v
	}
	if v := env("WALLETAUTH_EVENTS_STREAM"); v != "" {
		cfg.EventsStream = v
	}
	if v := env("WALLETAUTH_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = strings.Split(v, ",")
	}
	if v := env("WALLETAUTH_MIGRATE_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("WALLETAUTH_MIGRATE_ON_START: %w", err)
		}
		cfg.MigrateOnStart = &b
	}
	if v := env("WALLETAUTH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("WALLETAUTH_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	return nil
}

func (c config) validate(getenv func(string) string) error {
	switch c.NonceBackend {
	case backendMemory, backendRedis, backendPostgres:
	default:
		return fmt.Errorf("unknown nonce backend %q (supported: memory, redis, postgres)", c.NonceBackend)
	}
	if c.NonceBackend == backendRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the redis nonce backend")
	}
	if c.NonceBackend == backendPostgres && c.DBURL == "" {
		return fmt.Errorf("DB_URL (or DATABASE_URL) is required for the postgres nonce backend")
	}
	if production(getenv) {
		if c.NonceBackend == backendMemory {
			return fmt.Errorf("the memory nonce backend is not allowed in production")
		}
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL (or DATABASE_URL) is required in production")
		}
	}
	if c.NonceTTL < time.Second {
		return fmt.Errorf("nonce ttl must be at least 1s, got %s", c.NonceTTL)
	}
	if _, err := c.trustedPrefixes(); err != nil {
		return err
	}
	if c.MountPrefix != "" && !strings.HasPrefix(c.MountPrefix, "/") {
		return fmt.Errorf("mount prefix %q must start with /", c.MountPrefix)
	}
	return nil
}

func (c config) trustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			a, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func production(getenv func(string) string) bool {
	for _, k := range []string{"ENV", "APP_ENV", "ENVIRONMENT"} {
		if v := strings.ToLower(strings.TrimSpace(getenv(k))); v != "" {
			return v == "prod" || v == "production"
		}
	}
	return false
}
