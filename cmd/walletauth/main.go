// Command walletauth serves the wallet challenge/verify API.
//
//	walletauth serve     run the HTTP server (default)
//	walletauth migrate   apply the account/nonce schema and River's tables, then exit
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PaulFidika/walletauth/adapters/events"
	authhttp "github.com/PaulFidika/walletauth/adapters/http"
	core "github.com/PaulFidika/walletauth/core"
	"github.com/PaulFidika/walletauth/metrics"
	redislimiter "github.com/PaulFidika/walletauth/ratelimit/redis"
	"github.com/PaulFidika/walletauth/riverjobs"
	memorystore "github.com/PaulFidika/walletauth/storage/memory"
	pgstore "github.com/PaulFidika/walletauth/storage/postgres"
	redisstore "github.com/PaulFidika/walletauth/storage/redis"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := loadConfig(os.Getenv("WALLETAUTH_CONFIG"), os.Getenv)
	if err != nil {
		fatal(err)
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat)

	cmd := "serve"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		cmd = strings.TrimSpace(os.Args[1])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, log)
	case "migrate":
		err = runMigrate(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %q (supported: serve, migrate)", cmd)
	}
	if err != nil {
		stop()
		fatal(err)
	}
}

func runServe(ctx context.Context, cfg config, log *logrus.Logger) error {
	var (
		pg  *pgxpool.Pool
		rd  *redis.Client
		err error
	)
	if cfg.DBURL != "" {
		if pg, err = newPostgresPool(ctx, cfg.DBURL); err != nil {
			return err
		}
		defer pg.Close()
		if *cfg.MigrateOnStart {
			if err := migrate(ctx, pg); err != nil {
				return err
			}
		}
	}
	if cfg.RedisURL != "" {
		if rd, err = newRedisClient(ctx, cfg.RedisURL); err != nil {
			return err
		}
		defer rd.Close()
	}

	coreSvc, err := core.NewFromConfig(core.Config{NonceTTL: cfg.NonceTTL})
	if err != nil {
		return err
	}
	coreSvc.WithLogger(log)

	var (
		riverClient *river.Client[pgx.Tx]
		checks      = map[string]func(context.Context) error{}
	)
	if pg != nil {
		checks["postgres"] = pg.Ping
	}
	switch cfg.NonceBackend {
	case backendRedis:
		kv := redisstore.NewKV(rd).WithPrefix(cfg.RedisKeyPrefix)
		coreSvc.WithEphemeralStore(kv, core.EphemeralRedis)
		checks["redis"] = kv.Ping
	case backendPostgres:
		nonces := pgstore.NewNonceStore(pg)
		coreSvc.WithNonceStore(nonces, core.EphemeralPostgres)
		if riverClient, err = newRiverClient(pg, nonces, cfg.SweepCron, log); err != nil {
			return err
		}
	default:
		kv := memorystore.NewKV()
		kv.StartJanitor(time.Minute)
		defer kv.Close()
		coreSvc.WithEphemeralStore(kv, core.EphemeralMemory)
		log.Warn("walletauth: using in-memory nonce store (single instance only)")
	}

	if pg != nil {
		coreSvc.WithAccounts(pgstore.NewAccounts(pg))
	} else {
		coreSvc.WithAccounts(core.NewMemoryAccounts())
		log.Warn("walletauth: DB_URL not set; accounts are kept in memory")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		return err
	}
	coreSvc.WithMetrics(rec)

	if rd != nil {
		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: rd}, newWatermillLogger(log))
		if err != nil {
			return fmt.Errorf("create event publisher: %w", err)
		}
		defer publisher.Close()
		coreSvc.WithAuthLogger(events.NewWatermillPublisher(publisher, cfg.EventsStream))
	}

	svc := authhttp.Wrap(coreSvc).WithLogger(log)
	if rd != nil {
		svc.WithRateLimiter(redislimiter.New(rd, authhttp.ToRedisLimits(authhttp.DefaultRateLimits())))
	}
	if proxies, _ := cfg.trustedPrefixes(); len(proxies) > 0 {
		svc.WithClientIPFunc(authhttp.ClientIPFromForwardedHeaders(proxies))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler(checks, log))
	mux.Handle("GET /metrics", authhttp.MetricsHandler(reg))
	prefix := strings.TrimRight(cfg.MountPrefix, "/")
	mux.Handle(prefix+"/", http.StripPrefix(prefix, svc.APIHandler()))

	if riverClient != nil {
		if err := riverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := riverClient.Stop(stopCtx); err != nil {
				log.WithError(err).Warn("walletauth: river stop")
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   cfg.ListenAddr,
			"prefix": prefix,
			"nonces": cfg.NonceBackend,
		}).Info("walletauth: listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newRiverClient(pg *pgxpool.Pool, nonces *pgstore.NonceStore, cronSpec string, log logrus.FieldLogger) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	riverjobs.RegisterSweepExpiredNoncesWorker(workers, nonces, log)
	job, err := riverjobs.SweepExpiredNoncesPeriodicJob(cronSpec, riverjobs.SweepExpiredNoncesArgs{}, true)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pg), &river.Config{
		Queues:       map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 2}},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{job},
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

func runMigrate(ctx context.Context, cfg config) error {
	pg, err := newPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	return migrate(ctx, pg)
}

func migrate(ctx context.Context, pg *pgxpool.Pool) error {
	if err := pgstore.Migrate(ctx, pg); err != nil {
		return err
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pg), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}
	return nil
}

func fatal(err error) {
	logrus.WithError(err).Error("walletauth: fatal")
	os.Exit(1)
}

// healthHandler reports 503 while any backing store is unreachable.
func healthHandler(checks map[string]func(context.Context) error, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status, body := http.StatusOK, `{"status":"ok"}`
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WithError(err).WithField("check", name).Warn("walletauth: health check failed")
				status, body = http.StatusServiceUnavailable, `{"status":"unavailable"}`
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}
