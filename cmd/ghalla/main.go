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

	"github.com/ghalla-erp/ghalla-erp/internal/app"
	"github.com/ghalla-erp/ghalla-erp/internal/auth"
	"github.com/ghalla-erp/ghalla-erp/internal/b2b"
	"github.com/ghalla-erp/ghalla-erp/internal/marketplace"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/products"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/receivers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/suppliers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/warehouses"
	"github.com/ghalla-erp/ghalla-erp/internal/observability"
	"github.com/ghalla-erp/ghalla-erp/internal/platform/cache"
	"github.com/ghalla-erp/ghalla-erp/internal/platform/db"
	"github.com/ghalla-erp/ghalla-erp/internal/proforma"
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

	auditLogger := shared.NewAuditLogger(dbpool)
	idemStore := shared.NewIdempotencyStore(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, redisClient)
	authHandler := auth.NewHandler(logger, authService)

	customerRepo := customers.NewRepository(dbpool)
	customerService := customers.NewService(customerRepo)
	customerHandler := customers.NewHandler(logger, customerService)

	receiverRepo := receivers.NewRepository(dbpool)
	receiverService := receivers.NewService(receiverRepo)
	receiverHandler := receivers.NewHandler(logger, receiverService)

	supplierRepo := suppliers.NewRepository(dbpool)
	supplierHandler := suppliers.NewHandler(logger, supplierRepo)

	productRepo := products.NewRepository(dbpool)
	productHandler := products.NewHandler(logger, productRepo)

	warehouseRepo := warehouses.NewRepository(dbpool)
	warehouseHandler := warehouses.NewHandler(logger, warehouseRepo)

	inventoryRepo := warehouse.NewRepository(dbpool)
	inventoryService := warehouse.NewService(inventoryRepo, auditLogger, idemStore)
	inventoryHandler := warehouse.NewHandler(logger, inventoryService)

	proformaRepo := proforma.NewRepository(dbpool)
	proformaService := proforma.NewService(proformaRepo, auditLogger)
	proformaHandler := proforma.NewHandler(logger, proformaService)

	b2bRepo := b2b.NewRepository(dbpool)
	b2bService := b2b.NewService(b2bRepo, inventoryRepo, auditLogger)
	b2bHandler := b2b.NewHandler(logger, b2bService)

	metrics := observability.NewMetrics()

	marketplaceRepo := marketplace.NewRepository(dbpool)
	summaryCache := marketplace.NewSummaryCache(logger, redisClient, marketplaceRepo)
	marketplaceService := marketplace.NewService(
		logger,
		marketplaceRepo,
		customerRepo,
		inventoryRepo,
		productRepo,
		auditLogger,
		summaryCache,
		metrics,
		marketplace.ServiceConfig{AllowOversell: cfg.AllowOversell},
	)
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	marketplaceHandler := marketplace.NewHandler(logger, marketplaceService, summaryCache, jobsClient)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		CustomerHandler:    customerHandler,
		ReceiverHandler:    receiverHandler,
		SupplierHandler:    supplierHandler,
		ProductHandler:     productHandler,
		WarehouseHandler:   warehouseHandler,
		InventoryHandler:   inventoryHandler,
		ProformaHandler:    proformaHandler,
		B2BHandler:         b2bHandler,
		MarketplaceHandler: marketplaceHandler,
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
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
