package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// newPostgresPool configures a pool and verifies connectivity.
func newPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// newRedisClient configures a client and verifies connectivity.
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func newLogger(level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// watermillLogger routes Watermill's logs through logrus.
type watermillLogger struct {
	entry *logrus.Entry
}

var _ watermill.LoggerAdapter = watermillLogger{}

func newWatermillLogger(l logrus.FieldLogger) watermillLogger {
	return watermillLogger{entry: l.WithField("component", "watermill")}
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{entry: w.entry.WithFields(logrus.Fields(fields))}
}
