package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/student-tracker/config"
	"github.com/alem-hub/student-tracker/internal/application/tracker"
	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/internal/infrastructure/messaging"
	"github.com/alem-hub/student-tracker/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/student-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/student-tracker/pkg/logger"
	"github.com/alem-hub/student-tracker/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	store     student.Store
	redis     *redis.Client
	publisher shared.EventPublisher
	tracker   *tracker.Tracker
}

// bootstrapOptions tune bootstrap per subcommand.
type bootstrapOptions struct {
	// quiet raises the log level to warn unless --verbose, so interactive
	// output is not mixed with info logs.
	quiet bool

	// requireRedis fails instead of falling back to a no-op publisher.
	requireRedis bool

	// skipStore leaves store and tracker nil for commands that only talk to Redis.
	skipStore bool

	logOutput io.Writer
}

func bootstrap(ctx context.Context, opts *rootOptions, bo bootstrapOptions) (a *app, err error) {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Конфигурация
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadWithOverrides(config.Overrides{
		EnvFile:  opts.envFile,
		Driver:   opts.driver,
		Database: opts.db,
		LogLevel: opts.logLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Логирование
	// ─────────────────────────────────────────────────────────────────────────
	log := newLogger(cfg, opts, bo)

	a = &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Хранилище
	// ─────────────────────────────────────────────────────────────────────────
	if !bo.skipStore {
		a.store, err = openStore(ctx, cfg, log)
		if err != nil {
			return a, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. События
	// ─────────────────────────────────────────────────────────────────────────
	a.publisher = messaging.NopPublisher{}
	if cfg.Redis.Enabled || bo.requireRedis {
		a.redis, err = connectRedis(ctx, cfg, log)
		if err != nil {
			return a, err
		}
		a.publisher, err = messaging.NewRedisPublisher(a.redis, cfg.Redis.Channel,
			messaging.WithPublisherLogger(log))
		if err != nil {
			return a, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Трекер
	// ─────────────────────────────────────────────────────────────────────────
	if a.store != nil {
		a.tracker = tracker.New(tracker.Config{
			Store:      a.store,
			Publisher:  a.publisher,
			Logger:     log,
			ExportPath: cfg.Export.Path,
		})
	}

	log.Debug("tracker ready",
		logger.String("driver", cfg.Storage.Driver),
		logger.Bool("store", a.store != nil),
		logger.Bool("redis", a.redis != nil),
		logger.String("export_path", cfg.Export.Path),
	)

	return a, nil
}

func newLogger(cfg *config.Config, opts *rootOptions, bo bootstrapOptions) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	switch {
	case opts.verbose:
		level = logger.LevelDebug
	case bo.quiet && level < logger.LevelWarn:
		level = logger.LevelWarn
	}

	out := bo.logOutput
	if out == nil {
		out = os.Stderr
	}

	return logger.New(logger.Options{
		Output:    out,
		Level:     level,
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.App.Debug,
	}).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// openStore opens the configured relational store. PostgreSQL is dialed with
// backoff because it often starts alongside the tracker.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (student.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, sqlite.Options{
			Path:       cfg.Storage.SQLitePath,
			Logger:     log,
			LogQueries: cfg.Storage.LogQueries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return sqlite.NewStudentStore(db), nil

	case config.DriverPostgres:
		conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
			return postgres.NewConnectionFromURL(ctx, cfg.Storage.DatabaseURL, postgres.PoolOptions{
				MaxConns:        int32(cfg.Storage.MaxConns),
				MinConns:        int32(cfg.Storage.MinConns),
				MaxConnLifetime: cfg.Storage.ConnMaxLifetime,
			})
		}, retry.ConnectOptions(logRetry(log, "postgres"))...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to prepare schema: %w", err)
		}
		return postgres.NewStudentStore(conn), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Client, error) {
	client, err := retry.DoWithData(ctx, func(ctx context.Context) (*redis.Client, error) {
		return messaging.NewRedisClient(ctx, messaging.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Channel:      cfg.Redis.Channel,
			DialTimeout:  cfg.Redis.DialTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	}, retry.ConnectOptions(logRetry(log, "redis"))...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func logRetry(log *logger.Logger, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("connection attempt failed, retrying",
			logger.String("target", target),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
}

// Close releases the store and the Redis client. It is safe on a partially
// built app.
func (a *app) Close() error {
	if a == nil {
		return nil
	}

	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
