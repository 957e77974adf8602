package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/almacen-erp/almacen/internal/app"
	"github.com/almacen-erp/almacen/internal/catalog/rooms"
	"github.com/almacen-erp/almacen/internal/catalog/suppliers"
	"github.com/almacen-erp/almacen/internal/observability"
	"github.com/almacen-erp/almacen/internal/platform/db"
	"github.com/almacen-erp/almacen/internal/shared"
	"github.com/almacen-erp/almacen/internal/stock"
	"github.com/almacen-erp/almacen/jobs"
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	roomsService := rooms.NewService(rooms.NewRepository(pool))
	suppliersRepo := suppliers.NewRepository(pool)
	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, roomsService, suppliersRepo,
		idempotencyStore, auditLogger, metrics, logger,
		stock.ServiceConfig{DefaultCostRatio: cfg.DefaultCostRatio})

	driftScanner := jobs.NewDriftScanner(pool)

	driftTask, err := jobs.NewReconDriftTask(time.Now().UTC())
	if err != nil {
		logger.Error("build drift task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(24 * time.Hour)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockSale, Handler: jobs.NewStockSaleHandler(stockService, logger, metrics)},
			{Type: jobs.TaskReconDrift, Handler: jobs.NewReconDriftHandler(driftScanner, logger, metrics)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: driftTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
