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

	"github.com/demandflow/demandflow/internal/app"
	"github.com/demandflow/demandflow/internal/backend"
	"github.com/demandflow/demandflow/internal/demand"
	"github.com/demandflow/demandflow/internal/observability"
	"github.com/demandflow/demandflow/internal/platform/cache"
	"github.com/demandflow/demandflow/internal/platform/db"
	"github.com/demandflow/demandflow/internal/rbac"
	"github.com/demandflow/demandflow/internal/shared"
	"github.com/demandflow/demandflow/internal/transfer"
	"github.com/demandflow/demandflow/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendToken, cfg.BackendTimeout)
	backendClient.SetObserver(metrics.ObserveBackendCall)
	if err := backendClient.Ping(ctx); err != nil {
		logger.Warn("backend ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalJournal := shared.NewApprovalJournal(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	demandRepo := demand.NewRepository(backendClient, redisClient, cfg.DemandSnapshotTTL, logger)
	coordinator := demand.NewCoordinator(backendClient, demandRepo, approvalJournal, auditLogger, logger)
	editor := demand.NewEditor(backendClient, demandRepo, auditLogger, logger)

	resolver := transfer.NewResolver(backendClient, logger)
	transferService := transfer.NewService(backendClient, backendClient, redisClient, cfg.LocationCacheTTL, idempotencyStore, auditLogger, demandRepo, logger)

	rbacMiddleware := rbac.Middleware{Logger: logger}

	demandHandler := demand.NewHandler(logger, demandRepo, coordinator, editor, approvalJournal, auditLogger, rbacMiddleware)
	transferHandler := transfer.NewHandler(logger, resolver, transferService, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBAC:               rbacMiddleware,
		DemandHandler:      demandHandler,
		TransferHandler:    transferHandler,
		PermissionsHandler: permissionsHandler,
		JobsHandler:        jobsHandler,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http server", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
