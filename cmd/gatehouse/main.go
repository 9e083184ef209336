package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-fm/gatehouse/internal/accounts"
	"github.com/gatehouse-fm/gatehouse/internal/app"
	"github.com/gatehouse-fm/gatehouse/internal/audit"
	"github.com/gatehouse-fm/gatehouse/internal/auth"
	"github.com/gatehouse-fm/gatehouse/internal/consistency"
	"github.com/gatehouse-fm/gatehouse/internal/observability"
	"github.com/gatehouse-fm/gatehouse/internal/platform/cache"
	"github.com/gatehouse-fm/gatehouse/internal/platform/db"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
	"github.com/gatehouse-fm/gatehouse/internal/roles"
	"github.com/gatehouse-fm/gatehouse/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	rolesRepo := roles.NewRepository(dbpool)
	snapshotCache := consistency.NewSnapshotCache(redisClient, cfg.SnapshotTTL, func(ctx context.Context) (*rolegraph.Graph, error) {
		all, err := rolesRepo.ListRoles(ctx, "")
		if err != nil {
			return nil, err
		}
		return roles.BuildGraph(all), nil
	})
	rolesService := roles.NewService(rolesRepo, snapshotCache, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, authMiddleware)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService, authMiddleware)

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(dbpool)
	consistencyService := consistency.NewService(snapshotCache, accountsService, recorder, metrics, logger, consistency.Options{
		Priority:    cfg.PriorityOrder(),
		MaxDepth:    cfg.GraphMaxDepth,
		Concurrency: cfg.SweepConcurrency,
	})

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	consistencyHandler := consistency.NewHandler(logger, consistencyService, recorder, jobClient, authMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RolesHandler:       rolesHandler,
		AccountsHandler:    accountsHandler,
		ConsistencyHandler: consistencyHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
