// Package jobs contains the asynq background task surface: point-of-sale
// intake, the nightly drift reconciliation scan, and idempotency-key
// cleanup.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockSale records a point-of-sale checkout against the engine.
	TaskStockSale = "stock:sale"
	// TaskReconDrift scans for products whose stock counter drifted from
	// the sum of their item rows.
	TaskReconDrift = "recon:drift"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StockSalePayload carries one checkout to the engine.
type StockSalePayload struct {
	StoreID        int64   `json:"store_id"`
	UserID         int64   `json:"user_id"`
	ProductID      int64   `json:"product_id"`
	Quantity       float64 `json:"quantity"`
	Notes          string  `json:"notes,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// NewStockSaleTask constructs the sale intake task.
func NewStockSaleTask(payload StockSalePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockSale, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// ReconDriftPayload carries scheduling metadata for the drift scan.
type ReconDriftPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReconDriftTask constructs the drift scan task.
func NewReconDriftTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconDriftPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconDrift, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload bounds the cleanup window.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueSale enqueues a checkout for asynchronous recording.
func (c *Client) EnqueueSale(ctx context.Context, payload StockSalePayload) (*asynq.TaskInfo, error) {
	task, err := NewStockSaleTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueDriftScan enqueues an ad-hoc drift scan.
func (c *Client) EnqueueDriftScan(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewReconDriftTask(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
