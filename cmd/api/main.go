package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/taskboard/internal/api/http"
	"github.com/spec-kit/taskboard/internal/api/http/handlers"
	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/lock"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/persistence"
	"github.com/spec-kit/taskboard/internal/repository"
	"github.com/spec-kit/taskboard/internal/service"
	"github.com/spec-kit/taskboard/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		envFile     string
		migrateOnly bool
	)
	flagSet := pflag.NewFlagSet("taskboard", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flagSet.BoolVar(&migrateOnly, "migrate-only", false, "apply postgres migrations and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("parse flags: %v", err)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger,
		zap.String("service", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger, migrateOnly); err != nil {
		logger.Fatal("taskboard stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, migrateOnly bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if migrateOnly {
		if cfg.Storage.Driver != config.StorageDriverPostgres {
			return fmt.Errorf("--migrate-only requires the postgres driver, got %s", cfg.Storage.Driver)
		}
		return persistence.RunMigrations(cfg.Postgres, logger)
	}

	readiness := map[string]handlers.Pinger{}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	readiness["store"] = store

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()
	if pinger, ok := locker.(handlers.Pinger); ok {
		readiness["redis"] = pinger
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier := worker.NewNotificationWorker(
		service.NewNotificationService(logger.Named("notify"), cfg.Notification),
		cfg.Notification.QueueSize,
		logger.Named("notify"),
	)
	notifier.Subscribe(dispatcher)
	notifier.Start()

	authService := service.NewAuthService(cfg.Auth, store.Users(), logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:      store,
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger.Named("tickets"),
		MaxRetries: cfg.Engine.MaxRetries,
	})
	friendshipService := service.NewFriendshipService(service.FriendshipDependencies{
		Store:      store,
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger.Named("friendship"),
		MaxRetries: cfg.Engine.MaxRetries,
	})

	reconciler, err := worker.NewReconcileWorker(store, cfg.Reconcile.Schedule, logger.Named("reconcile"))
	if err != nil {
		return err
	}
	reconciler.Start()

	app := httptransport.NewServer(httptransport.ServerDependencies{
		App:        cfg.App,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Users:      store.Users(),
		Auth:       authService,
		Tickets:    ticketService,
		Friendship: friendshipService,
		Readiness:  readiness,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("storage", cfg.Storage.Driver))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		reconciler.Stop(ctx)
		_ = notifier.Stop(ctx)
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	shutdownErr := app.ShutdownWithContext(shutdownCtx)
	reconciler.Stop(shutdownCtx)
	if err := notifier.Stop(shutdownCtx); err != nil {
		logger.Warn("notification queue not flushed", zap.Error(err))
	}
	return shutdownErr
}

// openStore returns the configured engine together with its cleanup.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres, logger); err != nil {
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return repository.NewPostgresStore(pg.Pool), pg.Close, nil
	default:
		db, err := persistence.OpenBolt(cfg.Bolt, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt: %w", err)
		}
		store, err := repository.NewBoltStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("prepare bolt: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
}

// newLocker builds the key locker; the redis variant also serves readiness.
func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.Lock.Backend != config.LockBackendRedis {
		return lock.NewMemoryLocker(), func() {}, nil
	}
	rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	return &redisLocker{
		RedisLocker: lock.NewRedisLocker(rdb.Client, cfg.Lock.TTL(), logger.Named("lock")),
		redis:       rdb,
	}, rdb.Close, nil
}

type redisLocker struct {
	*lock.RedisLocker
	redis *persistence.Redis
}

func (l *redisLocker) Ping(ctx context.Context) error {
	return l.redis.Ping(ctx)
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
