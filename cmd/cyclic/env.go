package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nhle/cyclic-tasks/internal/ai"
	"github.com/nhle/cyclic-tasks/internal/api"
	"github.com/nhle/cyclic-tasks/internal/credential"
	"github.com/nhle/cyclic-tasks/internal/lease"
	"github.com/nhle/cyclic-tasks/internal/logging"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/notify"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/store"
	"github.com/nhle/cyclic-tasks/internal/tasks"
)

// env holds the wired components shared by every command.
type env struct {
	cfg    *model.AppConfig
	logger *zap.SugaredLogger
	store  store.Store
	runner *orchestrator.Runner
	tasks  *tasks.Service
	clock  func() time.Time
	redis  *redis.Client
}

type envOptions struct {
	// quiet drops console logging for commands that own the terminal.
	quiet bool
}

// loadEnv reads the config and wires the store, lease, deliverers,
// orchestrator, and task service.
func loadEnv(ctx context.Context, opts envOptions) (*env, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	newLogger := logging.New
	if opts.quiet {
		newLogger = logging.NewFileOnly
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := func() time.Time { return time.Now().In(loc) }

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger, store: st, clock: clock}

	var locker lease.Locker = lease.NewStoreLocker(st)
	if cfg.Redis.Enabled {
		e.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: credential.Lookup(credential.KeyRedisPassword),
			DB:       cfg.Redis.DB,
		})
		if err := e.redis.Ping(ctx).Err(); err != nil {
			e.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		locker = lease.NewRedisLocker(e.redis, "cyclic:lease:")
	}
	leaseTTL := time.Duration(cfg.Redis.LeaseTTLSec) * time.Second

	e.runner = orchestrator.NewRunner(st, newDeliverer(cfg.Notify, logger), orchestrator.Config{
		MaxRetries:  cfg.Scheduler.MaxRetries,
		Concurrency: cfg.Scheduler.Concurrency,
		Locker:      locker,
		LeaseTTL:    leaseTTL,
		Clock:       clock,
	}, logger.Named("orchestrator"))

	e.tasks = tasks.NewService(st, tasks.Config{
		MaxRetries: cfg.Scheduler.MaxRetries,
		Locker:     locker,
		LeaseTTL:   leaseTTL,
		Clock:      clock,
	}, logger.Named("tasks"))

	return e, nil
}

// Close releases the store and Redis connections and flushes logs.
func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warnw("Closing store failed", "error", err)
	}
	_ = e.logger.Sync()
}

func openStore(ctx context.Context, cfg model.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return store.NewSQLiteStore(cfg.Path)
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = credential.Lookup(credential.KeyPostgresDSN)
		}
		if dsn == "" {
			return nil, errors.New("postgres driver selected but no DSN is configured")
		}
		return store.NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newDeliverer routes http(s) endpoints to the webhook channel and, when
// configured, mailto: endpoints to the IMAP mailbox channel.
func newDeliverer(cfg model.NotifyConfig, logger *zap.SugaredLogger) notify.Deliverer {
	webhook := notify.NewWebhookDeliverer(time.Duration(cfg.TimeoutSec) * time.Second)
	router := notify.NewRouter().
		Handle("http", webhook).
		Handle("https", webhook)

	if cfg.IMAP.Enabled {
		password := credential.Lookup(credential.KeyIMAPPassword)
		if password == "" {
			logger.Warnw("Mailbox reminders enabled without an IMAP password", "host", cfg.IMAP.Host)
		}
		router.Handle("mailto", notify.NewMailboxDeliverer(cfg.IMAP, password))
	}
	return router
}

// newParser returns nil when no API key is available, which disables
// natural-language task entry.
func newParser(cfg model.AIConfig) api.TaskParser {
	key := credential.Lookup(credential.KeyAnthropicAPI)
	if key == "" {
		return nil
	}
	return ai.NewParser(key, cfg.Model, cfg.MaxTokens)
}
