package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/demandflow/demandflow/internal/app"
	"github.com/demandflow/demandflow/internal/backend"
	"github.com/demandflow/demandflow/internal/demand"
	jobmetrics "github.com/demandflow/demandflow/internal/jobs"
	"github.com/demandflow/demandflow/internal/platform/cache"
	"github.com/demandflow/demandflow/internal/platform/db"
	"github.com/demandflow/demandflow/internal/shared"
	"github.com/demandflow/demandflow/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendToken, cfg.BackendTimeout)
	demandRepo := demand.NewRepository(backendClient, redisClient, cfg.DemandSnapshotTTL, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	warmupJob := jobs.NewDemandWarmupJob(demandRepo, logger, metrics)
	cleanupJob := jobs.NewJournalCleanupJob(idempotencyStore, logger, metrics)

	warmupTask, err := jobs.NewDemandWarmupTask(jobs.DemandWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewJournalCleanupTask(72)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDemandWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskJournalCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
