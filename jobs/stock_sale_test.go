package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen-erp/almacen/internal/shared"
	"github.com/almacen-erp/almacen/internal/stock"
)

type fakeRecorder struct {
	calls []stock.SaleInput
	err   error
}

func (f *fakeRecorder) RecordSale(_ context.Context, _ shared.Principal, in stock.SaleInput) (stock.OperationResult, error) {
	f.calls = append(f.calls, in)
	return stock.OperationResult{}, f.err
}

func TestStockSaleHandlerRecordsSale(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := NewStockSaleHandler(recorder, slog.Default(), nil)

	task, err := NewStockSaleTask(StockSalePayload{
		StoreID: 1, UserID: 2, ProductID: 3, Quantity: 4, IdempotencyKey: "sale-1",
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Len(t, recorder.calls, 1)
	assert.Equal(t, int64(3), recorder.calls[0].ProductID)
	assert.Equal(t, 4.0, recorder.calls[0].Quantity)
	assert.Equal(t, "sale-1", recorder.calls[0].IdempotencyKey)
}

func TestStockSaleHandlerSkipsRetryOnConflict(t *testing.T) {
	recorder := &fakeRecorder{err: shared.NewError(shared.KindConflict, "INSUFFICIENT_STOCK", "insufficient stock")}
	handler := NewStockSaleHandler(recorder, slog.Default(), nil)

	task, err := NewStockSaleTask(StockSalePayload{StoreID: 1, UserID: 2, ProductID: 3, Quantity: 4})
	require.NoError(t, err)

	err = handler(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestStockSaleHandlerRetriesOnInternalError(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("connection reset")}
	handler := NewStockSaleHandler(recorder, slog.Default(), nil)

	task, err := NewStockSaleTask(StockSalePayload{StoreID: 1, UserID: 2, ProductID: 3, Quantity: 4})
	require.NoError(t, err)

	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestStockSaleHandlerMalformedPayload(t *testing.T) {
	recorder := &fakeRecorder{}
	handler := NewStockSaleHandler(recorder, slog.Default(), nil)

	task := asynq.NewTask(TaskStockSale, []byte("{not json"))
	err := handler(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, recorder.calls)
}
