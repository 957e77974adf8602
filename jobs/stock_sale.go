package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/almacen-erp/almacen/internal/shared"
	"github.com/almacen-erp/almacen/internal/stock"
)

// SaleRecorder is the slice of the stock engine the sale intake needs.
type SaleRecorder interface {
	RecordSale(ctx context.Context, p shared.Principal, in stock.SaleInput) (stock.OperationResult, error)
}

// JobMetrics counts task outcomes.
type JobMetrics interface {
	ObserveJob(task string, err error)
}

// NewStockSaleHandler returns the asynq handler that records queued
// checkouts. Validation failures and idempotent replays skip retry;
// anything else is retried by asynq.
func NewStockSaleHandler(engine SaleRecorder, logger *slog.Logger, metrics JobMetrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (err error) {
		defer func() {
			if metrics != nil {
				metrics.ObserveJob(TaskStockSale, err)
			}
		}()

		var payload StockSalePayload
		if err = json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		principal := shared.Principal{UserID: payload.UserID, StoreID: payload.StoreID}
		_, err = engine.RecordSale(ctx, principal, stock.SaleInput{
			ProductID:      payload.ProductID,
			Quantity:       payload.Quantity,
			Notes:          payload.Notes,
			IdempotencyKey: payload.IdempotencyKey,
		})
		if err == nil {
			return nil
		}

		switch shared.KindOf(err) {
		case shared.KindInvalidArgument, shared.KindNotFound:
			logger.Warn("drop unprocessable sale",
				slog.Int64("store_id", payload.StoreID),
				slog.Int64("product_id", payload.ProductID),
				slog.Any("error", err))
			return asynq.SkipRetry
		case shared.KindConflict:
			// Insufficient stock or a replayed key will not heal on retry.
			logger.Warn("drop conflicting sale",
				slog.Int64("store_id", payload.StoreID),
				slog.Int64("product_id", payload.ProductID),
				slog.Any("error", err))
			return asynq.SkipRetry
		default:
			return err
		}
	}
}
