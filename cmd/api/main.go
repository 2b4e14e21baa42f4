package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-accounts/internal/api/http"
	"github.com/spec-kit/marketplace-accounts/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/persistence"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	"github.com/spec-kit/marketplace-accounts/internal/service"
	"github.com/spec-kit/marketplace-accounts/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	policy := service.LockoutPolicyFromConfig(cfg.Lockout)
	dependencies := map[string]handlers.Pinger{"postgres": nil, "redis": nil}

	var (
		accountRepo repository.AccountRepository
		resetRepo   repository.PasswordResetRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		accountRepo = repository.NewAccountRepository(pool, hasher, policy)
		resetRepo = repository.NewPasswordResetRepository(pool)
		dependencies["postgres"] = pg
	} else {
		accountRepo = repository.NewMemoryAccountRepository(hasher, policy)
		resetRepo = repository.NewMemoryPasswordResetRepository()
	}

	var revocations auth.RevocationStore
	if cfg.Redis.Addr != "" {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		revocations = auth.NewRedisRevocationStore(redis.Client, redis.Namespace("revoked-tokens"))
		dependencies["redis"] = redis
	} else {
		logger.Warn("REDIS_ADDR not provided; token revocations are kept in memory")
		revocations = auth.NewMemoryRevocationStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AccountRepo:       accountRepo,
		PasswordResetRepo: resetRepo,
		Revocations:       revocations,
		Hasher:            hasher,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            logger,
	})
	adminDeps := service.AdminDependencies{AccountRepo: accountRepo, Dispatcher: dispatcher, Logger: logger}
	accountService := service.NewAccountService(adminDeps)
	sellerService := service.NewSellerService(adminDeps, metrics)

	if cfg.Admin.Email != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), accountRepo, revocations, logger)
	validate := handlers.NewValidator()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:           handlers.NewAuthHandler(authService, validate, cfg.App.IsDevelopment()),
		Accounts:       handlers.NewAccountsHandler(),
		Sellers:        handlers.NewSellersHandler(sellerService),
		Admin:          handlers.NewAdminHandler(accountService, sellerService, policy, validate),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
