package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/sinks"
)

// app owns the engine and every resource it was built on.
type app struct {
	cfg        *Config
	engine     *goSession.Engine
	logger     *slog.Logger
	retryAfter time.Duration
	tracer     trace.TracerProvider
	closers    []func()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	engineCfg, ephemeral, err := cfg.engineConfig()
	if err != nil {
		return nil, err
	}
	a.retryAfter = engineCfg.Security.RefreshCooldownDuration
	if ephemeral {
		logger.Warn("sessiond: using ephemeral signing keys; tokens will not survive a restart")
	}

	builder := goSession.New().
		WithConfig(engineCfg).
		WithLogger(logger)

	if err := a.attachStore(ctx, builder); err != nil {
		return nil, err
	}
	if err := a.attachAudit(builder); err != nil {
		return nil, err
	}

	engine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)
	return a, nil
}

func (a *app) attachStore(ctx context.Context, b *goSession.Builder) error {
	switch a.cfg.Store {
	case "memory":
		b.WithRepository(session.NewMemoryStore())
	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		b.WithRedis(a.redisClient(mr.Addr()))
		a.logger.Info("sessiond: using miniredis", "addr", mr.Addr())
	case "redis":
		client := a.redisClient(a.cfg.RedisAddr)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		b.WithRedis(client)
	case "postgres":
		if err := session.MigratePostgres(a.cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := pgxpool.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		store, err := session.NewPostgresStore(pool)
		if err != nil {
			return err
		}
		b.WithRepository(store)
		if a.cfg.RefreshThrottle {
			// The throttle keeps its counters in Redis.
			b.WithRedis(a.redisClient(a.cfg.RedisAddr))
		}
	}
	return nil
}

func (a *app) redisClient(addr string) redis.UniversalClient {
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	a.closers = append(a.closers, func() { _ = client.Close() })
	return client
}

func (a *app) attachAudit(b *goSession.Builder) error {
	switch a.cfg.Audit {
	case "log":
		b.WithAuditSink(goSession.NewSlogSink(a.logger.With("component", "audit")))
	case "nats":
		sink, nc, err := sinks.Connect(a.cfg.NATSURL, sinks.NATSConfig{
			SubjectPrefix: a.cfg.NATSSubject,
			Logger:        a.logger,
		})
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		a.closers = append(a.closers, nc.Close)
		b.WithAuditSink(sink)
	}
	return nil
}

// Close releases resources in reverse order of acquisition, so the engine
// drains its audit queue before the sink's connection goes away.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
