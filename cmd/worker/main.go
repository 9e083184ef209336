package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-fm/gatehouse/internal/accounts"
	"github.com/gatehouse-fm/gatehouse/internal/app"
	"github.com/gatehouse-fm/gatehouse/internal/audit"
	"github.com/gatehouse-fm/gatehouse/internal/consistency"
	"github.com/gatehouse-fm/gatehouse/internal/jobmetrics"
	"github.com/gatehouse-fm/gatehouse/internal/platform/cache"
	"github.com/gatehouse-fm/gatehouse/internal/platform/db"
	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
	"github.com/gatehouse-fm/gatehouse/internal/roles"
	"github.com/gatehouse-fm/gatehouse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	rolesRepo := roles.NewRepository(pool)
	snapshotCache := consistency.NewSnapshotCache(redisClient, cfg.SnapshotTTL, func(ctx context.Context) (*rolegraph.Graph, error) {
		all, err := rolesRepo.ListRoles(ctx, "")
		if err != nil {
			return nil, err
		}
		return roles.BuildGraph(all), nil
	})

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	recorder := audit.NewRecorder(pool)
	consistencyService := consistency.NewService(snapshotCache, accountsService, recorder, nil, logger, consistency.Options{
		Priority:    cfg.PriorityOrder(),
		MaxDepth:    cfg.GraphMaxDepth,
		Concurrency: cfg.SweepConcurrency,
	})

	sweepJob := jobs.NewConsistencySweepJob(consistencyService, logger, jobmetrics.NewMetrics(nil))

	sweepTask, err := jobs.NewConsistencySweepTask(jobs.ConsistencySweepPayload{Reason: "cron"})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskConsistencySweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
