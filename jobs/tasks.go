package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/xuri/excelize/v2"

	"github.com/ghalla-erp/ghalla-erp/internal/marketplace"
	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskRecomputeSale re-derives the weight fields of one sale.
	TaskRecomputeSale = "marketplace:recompute_sale"
	// TaskRecomputeAllSales sweeps every sale. Registered as a nightly cron.
	TaskRecomputeAllSales = "marketplace:recompute_sales"
	// TaskInventoryRecompute rebuilds every warehouse inventory row from its
	// receipts and deliveries. Registered as a nightly cron.
	TaskInventoryRecompute = "warehouse:inventory_recompute"
	// TaskImportPurchases runs a purchase workbook upload off the request
	// path. The payload carries the workbook bytes.
	TaskImportPurchases = "marketplace:import"
)

// RecomputeSalePayload names the sale to recompute.
type RecomputeSalePayload struct {
	SaleID int64 `json:"sale_id"`
}

// NewRecomputeSaleTask constructs a single-sale recompute task.
func NewRecomputeSaleTask(saleID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RecomputeSalePayload{SaleID: saleID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecomputeSale, data), nil
}

// NewRecomputeAllSalesTask constructs the full-sweep task.
func NewRecomputeAllSalesTask() *asynq.Task {
	return asynq.NewTask(TaskRecomputeAllSales, nil)
}

// NewInventoryRecomputeTask constructs the inventory rebuild task.
func NewInventoryRecomputeTask() *asynq.Task {
	return asynq.NewTask(TaskInventoryRecompute, nil)
}

// ImportPurchasesPayload carries a queued purchase upload.
type ImportPurchasesPayload struct {
	SaleID   int64  `json:"sale_id"`
	ActorID  int64  `json:"actor_id"`
	Workbook []byte `json:"workbook"`
}

// NewImportPurchasesTask constructs a queued purchase upload task.
func NewImportPurchasesTask(saleID, actorID int64, workbook []byte) (*asynq.Task, error) {
	data, err := json.Marshal(ImportPurchasesPayload{SaleID: saleID, ActorID: actorID, Workbook: workbook})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportPurchases, data), nil
}

// RecomputeSaleHandler processes TaskRecomputeSale tasks.
func RecomputeSaleHandler(logger *slog.Logger, svc *marketplace.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RecomputeSalePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := svc.RecomputeSaleWeights(ctx, payload.SaleID); err != nil {
			logger.Error("recompute sale failed",
				slog.Int64("sale_id", payload.SaleID), slog.Any("error", err))
			return err
		}
		return nil
	}
}

// RecomputeAllSalesHandler processes the nightly sale sweep.
func RecomputeAllSalesHandler(logger *slog.Logger, svc *marketplace.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := svc.RecomputeAllSales(ctx)
		if err != nil {
			logger.Error("sale sweep failed", slog.Int("processed", n), slog.Any("error", err))
			return err
		}
		logger.Info("sale sweep done", slog.Int("sales", n))
		return nil
	}
}

// ImportPurchasesHandler processes queued purchase uploads. Row errors are
// logged, not retried: the rows that failed would fail again unchanged.
func ImportPurchasesHandler(logger *slog.Logger, svc *marketplace.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ImportPurchasesPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		f, err := excelize.OpenReader(bytes.NewReader(payload.Workbook))
		if err != nil {
			logger.Error("queued import: bad workbook",
				slog.Int64("sale_id", payload.SaleID), slog.Any("error", err))
			return asynq.SkipRetry
		}
		defer f.Close()

		result, err := svc.ImportPurchases(ctx, payload.SaleID, f, payload.ActorID)
		if err != nil {
			logger.Error("queued import failed",
				slog.Int64("sale_id", payload.SaleID), slog.Any("error", err))
			return err
		}
		logger.Info("queued import done",
			slog.String("batch_id", result.BatchID),
			slog.Int64("sale_id", payload.SaleID),
			slog.Int("created", result.Created),
			slog.Int("errors", len(result.Errors)))
		return nil
	}
}

// InventoryRecomputeHandler processes the nightly inventory rebuild.
func InventoryRecomputeHandler(logger *slog.Logger, svc *warehouse.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		n, err := svc.RecomputeAll(ctx)
		if err != nil {
			logger.Error("inventory rebuild failed", slog.Int("processed", n), slog.Any("error", err))
			return err
		}
		logger.Info("inventory rebuild done", slog.Int("pairs", n))
		return nil
	}
}
