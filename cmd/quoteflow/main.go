package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/quoteflow/quoteflow/internal/app"
	"github.com/quoteflow/quoteflow/internal/observability"
	"github.com/quoteflow/quoteflow/internal/platform/cache"
	"github.com/quoteflow/quoteflow/internal/platform/db"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/projects"
	"github.com/quoteflow/quoteflow/internal/quotes"
	"github.com/quoteflow/quoteflow/internal/shared"
	"github.com/quoteflow/quoteflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr}
	var locker *shared.Locker
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Warn("redis unavailable, conversion lock disabled", slog.Any("error", err))
	} else {
		locker = shared.NewLocker(redisClient, cfg.ConvertLockTTL)
		defer closeRedis(redisClient, logger)
	}

	catalog, err := pricing.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Error("load price catalog", slog.String("path", cfg.CatalogPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("price catalog loaded", slog.String("version", catalog.Version))

	metrics := observability.NewMetrics()
	metrics.SetCatalogVersion(catalog.Version)

	catalogs := pricing.NewCatalogStore(catalog)
	var reloader *pricing.Reloader
	if cfg.CatalogPath != "" {
		reloader = pricing.NewReloader(catalogs, cfg.CatalogPath, metrics, logger)
		go reloadOnHangup(ctx, reloader, logger)
	}

	queue := jobs.NewClient(redisOpts.AsynqOpt())
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	history := shared.NewHistoryRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)

	projectService := projects.NewService(projects.NewRepository(pool), projects.Options{
		History: history,
		Metrics: metrics,
		Logger:  logger,
	})
	quoteService := quotes.NewService(quotes.NewRepository(pool), catalogs, quotes.Options{
		Notifier: jobs.NewQuoteNotifier(queue),
		History:  history,
		Locker:   locker,
		Metrics:  metrics,
		Logger:   logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Metrics:         metrics,
		DB:              pool,
		PricingHandler:  pricing.NewHandler(logger, catalogs, reloader, metrics),
		QuotesHandler:   quotes.NewHandler(logger, quoteService, idempotency),
		ProjectsHandler: projects.NewHandler(logger, projectService),
		JobsHandler:     jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func reloadOnHangup(ctx context.Context, reloader *pricing.Reloader, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if _, err := reloader.Reload(ctx); err != nil {
				logger.Error("reload price catalog", slog.Any("error", err))
			}
		}
	}
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}
