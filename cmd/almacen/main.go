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

	"github.com/almacen-erp/almacen/internal/app"
	"github.com/almacen-erp/almacen/internal/auth"
	"github.com/almacen-erp/almacen/internal/catalog/products"
	"github.com/almacen-erp/almacen/internal/catalog/rooms"
	"github.com/almacen-erp/almacen/internal/catalog/suppliers"
	"github.com/almacen-erp/almacen/internal/observability"
	"github.com/almacen-erp/almacen/internal/platform/cache"
	"github.com/almacen-erp/almacen/internal/platform/db"
	"github.com/almacen-erp/almacen/internal/shared"
	"github.com/almacen-erp/almacen/internal/stats"
	"github.com/almacen-erp/almacen/internal/stock"
	"github.com/almacen-erp/almacen/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "almacen_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	productsRepo := products.NewRepository(dbpool)
	productsService := products.NewService(productsRepo)
	productsHandler := products.NewHandler(logger, productsService)

	roomsRepo := rooms.NewRepository(dbpool)
	roomsService := rooms.NewService(roomsRepo)
	roomsHandler := rooms.NewHandler(logger, roomsService)

	suppliersRepo := suppliers.NewRepository(dbpool)
	suppliersHandler := suppliers.NewHandler(logger, suppliersRepo)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, roomsService, suppliersRepo,
		idempotencyStore, auditLogger, metrics, logger,
		stock.ServiceConfig{DefaultCostRatio: cfg.DefaultCostRatio})
	stockHandler := stock.NewHandler(logger, stockService)

	statsRepo := stats.NewRepository(dbpool)
	statsService := stats.NewService(statsRepo, stats.ServiceConfig{DefaultCostRatio: cfg.DefaultCostRatio})
	statsHandler := stats.NewHandler(logger, statsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		ProductsHandler:  productsHandler,
		RoomsHandler:     roomsHandler,
		SuppliersHandler: suppliersHandler,
		StockHandler:     stockHandler,
		StatsHandler:     statsHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
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
