package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/analyzer"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/config"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/dispatch"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/handler"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/infra/postgresql"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/infra/postgresql/migrations"
	infraredis "github.com/zhumao520/TweetAnalyst-sub001/internal/infra/redis"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/observability"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/registry"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/repository"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/sender"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/statestore"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	notificationRepo := repository.NewGormNotificationRepo(db)
	providerRepo := repository.NewGormProviderRepo(db)
	stateRepo := repository.NewGormStateRepo(db)

	store, err := statestore.NewStore(stateRepo, cfg.StateSweepInterval(), logger)
	if err != nil {
		logger.Fatal("state store init failed", zap.Error(err))
	}

	reg, err := registry.NewRegistry(providerRepo, logger)
	if err != nil {
		logger.Fatal("provider registry init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seedProviders(ctx, cfg, reg); err != nil {
		logger.Fatal("provider seeding failed", zap.Error(err))
	}

	webhookSender, err := sender.NewWebhookSender(cfg.WebhookURL)
	if err != nil {
		logger.Fatal("webhook sender init failed", zap.Error(err))
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	dispatcher, err := dispatch.NewDispatcher(
		notificationRepo,
		reg,
		store,
		webhookSender,
		limiter,
		dispatch.Options{
			DedupTTL:           cfg.DedupTTL(),
			SenderTimeout:      cfg.SenderTimeout(),
			BaseRetryDelay:     cfg.RetryBaseDelay(),
			MaxRetryDelay:      cfg.RetryMaxDelay(),
			StaleSendingAfter:  cfg.StaleSendingAfter(),
			BatchLimit:         cfg.DispatchBatchLimit,
			DefaultMaxAttempts: cfg.DefaultMaxAttempts,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("dispatcher init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher.SetMetrics(metrics)

	loop, err := dispatch.NewLoop(dispatcher, cfg.DispatchInterval(), logger)
	if err != nil {
		logger.Fatal("dispatch loop init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterNotificationRoutes(app, dispatcher); err != nil {
		logger.Fatal("notification routes init failed", zap.Error(err))
	}
	if err := handler.RegisterProviderRoutes(app, reg); err != nil {
		logger.Fatal("provider routes init failed", zap.Error(err))
	}
	if err := handler.RegisterStateRoutes(app, store); err != nil {
		logger.Fatal("state routes init failed", zap.Error(err))
	}

	if cfg.AnalyzerEnabled() {
		analyzeClient, err := analyzer.NewHTTPClient(cfg.AnalyzeAPIURL, cfg.AnalyzeAPIKey, cfg.AnalyzeModel, cfg.AnalyzeTimeout())
		if err != nil {
			logger.Fatal("analyzer client init failed", zap.Error(err))
		}
		analyzeService, err := analyzer.NewService(reg, analyzeClient, logger)
		if err != nil {
			logger.Fatal("analyzer service init failed", zap.Error(err))
		}
		if err := handler.RegisterAnalyzeRoutes(app, analyzeService, dispatcher); err != nil {
			logger.Fatal("analyze routes init failed", zap.Error(err))
		}
		logger.Info("analyzer enabled", zap.String("model", cfg.AnalyzeModel))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("dispatch loop started", zap.Duration("interval", cfg.DispatchInterval()))
		return loop.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("shutdown with error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func seedProviders(ctx context.Context, cfg *config.Config, reg *registry.Registry) error {
	specs, err := cfg.ProviderSpecs()
	if err != nil {
		return err
	}

	providers := make([]domain.Provider, 0, len(specs))
	for _, spec := range specs {
		providers = append(providers, domain.Provider{
			ID:       uuid.NewString(),
			Name:     spec.Name,
			Priority: spec.Priority,
			IsActive: true,
		})
	}

	return reg.Seed(ctx, providers)
}
