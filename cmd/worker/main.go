package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ghalla-erp/ghalla-erp/internal/app"
	"github.com/ghalla-erp/ghalla-erp/internal/marketplace"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/products"
	"github.com/ghalla-erp/ghalla-erp/internal/platform/cache"
	"github.com/ghalla-erp/ghalla-erp/internal/platform/db"
	"github.com/ghalla-erp/ghalla-erp/internal/shared"
	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
	"github.com/ghalla-erp/ghalla-erp/jobs"
)

func main() {
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)

	inventoryRepo := warehouse.NewRepository(pool)
	inventoryService := warehouse.NewService(inventoryRepo, auditLogger, idemStore)

	marketplaceRepo := marketplace.NewRepository(pool)
	summaryCache := marketplace.NewSummaryCache(logger, redisClient, marketplaceRepo)
	marketplaceService := marketplace.NewService(
		logger,
		marketplaceRepo,
		customers.NewRepository(pool),
		inventoryRepo,
		products.NewRepository(pool),
		auditLogger,
		summaryCache,
		nil,
		marketplace.ServiceConfig{AllowOversell: cfg.AllowOversell},
	)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRecomputeSale, Handler: jobs.RecomputeSaleHandler(logger, marketplaceService)},
			{Type: jobs.TaskRecomputeAllSales, Handler: jobs.RecomputeAllSalesHandler(logger, marketplaceService)},
			{Type: jobs.TaskInventoryRecompute, Handler: jobs.InventoryRecomputeHandler(logger, inventoryService)},
			{Type: jobs.TaskImportPurchases, Handler: jobs.ImportPurchasesHandler(logger, marketplaceService)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: jobs.NewRecomputeAllSalesTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: jobs.NewInventoryRecomputeTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
