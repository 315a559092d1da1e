package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-monitor/internal/api/http"
	"github.com/spec-kit/sla-monitor/internal/api/http/handlers"
	"github.com/spec-kit/sla-monitor/internal/auth"
	"github.com/spec-kit/sla-monitor/internal/config"
	"github.com/spec-kit/sla-monitor/internal/events"
	"github.com/spec-kit/sla-monitor/internal/observability"
	"github.com/spec-kit/sla-monitor/internal/persistence"
	"github.com/spec-kit/sla-monitor/internal/policy"
	"github.com/spec-kit/sla-monitor/internal/repository"
	"github.com/spec-kit/sla-monitor/internal/service"
	"github.com/spec-kit/sla-monitor/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	policyPath := pflag.String("policy", "", "SLA policy file (overrides SLA_POLICY_PATH)")
	once := pflag.Bool("once", false, "run a single evaluation cycle and exit")
	issueToken := pflag.String("issue-token", "", "print an operator token for the given subject and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *policyPath != "" {
		cfg.SLA.PolicyPath = *policyPath
	}

	if *issueToken != "" {
		if cfg.Auth.JWTSecret == "" {
			log.Fatal("AUTH_JWT_SECRET is required to issue tokens")
		}
		token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes).GenerateToken(*issueToken, auth.RoleOperator)
		if err != nil {
			log.Fatalf("failed to issue token: %v", err)
		}
		fmt.Printf("%s\n# expires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
		return
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger, *once); err != nil {
		logger.Fatal("sla monitor exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, once bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	store, storePinger, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		redisConn   *persistence.Redis
		redisClient redis.UniversalClient
		lease       worker.Lease
	)
	if cfg.Redis.Enabled {
		redisConn = persistence.NewRedis(cfg.Redis, logger)
		defer redisConn.Close()
		redisClient = redisConn.Client
		lease = redisConn.NewLease(cfg.SLA.LeaseKey)
	}

	table := policy.NewTable(logger, metrics)
	source := policy.FileSource{Path: cfg.SLA.PolicyPath}
	if err := table.Reload(source); err != nil {
		logger.Warn("starting without an SLA policy; no ticket will be evaluated until one loads",
			zap.String("path", source.Path))
	}

	dispatcher := events.NewDispatcher(cfg.Notification.DispatchTimeout, logger, metrics)
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification, redisClient, cfg.App.Name)
	notifications.RegisterHandlers()
	defer notifications.Close()

	evaluator := service.NewSLAEvaluator(service.EvaluatorDependencies{
		Store:             store,
		Policies:          table,
		Dispatcher:        dispatcher,
		ThresholdFraction: cfg.SLA.ThresholdFraction,
		Logger:            logger,
	})
	slaWorker := worker.NewSLAWorker(evaluator, worker.Options{
		Interval:     cfg.SLA.Interval,
		CycleTimeout: cfg.SLA.CycleTimeout,
		Logger:       logger,
		Metrics:      metrics,
		Lease:        lease,
	})

	if once {
		summary, err := slaWorker.RunOnce(ctx)
		if err != nil && !errors.Is(err, worker.ErrCycleSkipped) {
			return err
		}
		logger.Info("single cycle complete",
			zap.Int("breaches", summary.Breaches),
			zap.Int("alerts", summary.Alerts))
		return nil
	}

	var wg sync.WaitGroup
	if cfg.SLA.WatchPolicy {
		watcher, err := policy.NewWatcher(table, source, logger)
		if err != nil {
			logger.Warn("policy hot reload disabled", zap.Error(err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := watcher.Run(ctx); err != nil {
					logger.Warn("policy watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = slaWorker.Run(ctx)
	}()

	deps := map[string]handlers.Pinger{"store": storePinger}
	if redisConn != nil {
		deps["redis"] = redisConn
	}

	var authMiddleware *auth.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		authMiddleware = auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes))
	} else {
		logger.Warn("AUTH_JWT_SECRET not set; policy reload endpoint is unauthenticated")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		SLA:     handlers.NewSLAHandler(table, source, store, slaWorker),
		Metrics: metrics,

		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			cancel()
		}
	}()
	logger.Info("sla monitor started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("store", cfg.Store.Driver),
		zap.Duration("interval", cfg.SLA.Interval))

	waitForShutdown(ctx, logger)

	cancel()
	wg.Wait()
	return app.Shutdown()
}

// openStore connects the configured backend and returns it with its health
// check and a close func.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, handlers.Pinger, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("using sqlite store", zap.String("dsn", cfg.SQLite.DSN))
		return store, store, func() { _ = store.Close() }, nil
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.Store, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return repository.NewPostgresStore(pg.PoolHandle()), pg, pg.Close, nil
	}
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}
