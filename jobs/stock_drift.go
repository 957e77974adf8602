package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// driftTolerance absorbs float accumulation noise; anything beyond it is a
// real discrepancy.
const driftTolerance = 1e-6

// DriftReport is one detected discrepancy between a product's stock
// counter and the sum of its item rows.
type DriftReport struct {
	StoreID   int64
	ProductID int64
	Stock     float64
	ItemSum   float64
}

// DriftScanner finds and records stock-counter drift across all stores.
type DriftScanner struct {
	pool *pgxpool.Pool
}

func NewDriftScanner(pool *pgxpool.Pool) *DriftScanner {
	return &DriftScanner{pool: pool}
}

// Scan returns every product whose counter disagrees with its item rows.
func (s *DriftScanner) Scan(ctx context.Context) ([]DriftReport, error) {
	rows, err := s.pool.Query(ctx, `
SELECT p.store_id, p.id, p.stock, COALESCE(SUM(i.quantity), 0) AS item_sum
FROM products p
LEFT JOIN inventory_items i ON i.product_id = p.id AND i.store_id = p.store_id
WHERE NOT p.is_deleted
GROUP BY p.store_id, p.id, p.stock
HAVING ABS(p.stock - COALESCE(SUM(i.quantity), 0)) > $1`, driftTolerance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DriftReport
	for rows.Next() {
		var r DriftReport
		if err := rows.Scan(&r.StoreID, &r.ProductID, &r.Stock, &r.ItemSum); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Record persists one scan run with its findings.
func (s *DriftScanner) Record(ctx context.Context, scheduledFor time.Time, reports []DriftReport) error {
	for _, r := range reports {
		_, err := s.pool.Exec(ctx, `INSERT INTO reconciliation_reports
(store_id, product_id, recorded_stock, item_sum, scheduled_for)
VALUES ($1, $2, $3, $4, $5)`,
			r.StoreID, r.ProductID, r.Stock, r.ItemSum, scheduledFor)
		if err != nil {
			return err
		}
	}
	return nil
}

// NewReconDriftHandler returns the asynq handler for the periodic drift
// scan. The scan only reports; it never rewrites counters.
func NewReconDriftHandler(scanner *DriftScanner, logger *slog.Logger, metrics JobMetrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (err error) {
		defer func() {
			if metrics != nil {
				metrics.ObserveJob(TaskReconDrift, err)
			}
		}()

		var payload ReconDriftPayload
		if err = json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.ScheduledFor.IsZero() {
			payload.ScheduledFor = time.Now().UTC()
		}

		reports, err := scanner.Scan(ctx)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			logger.Info("drift scan clean", slog.Time("scheduled_for", payload.ScheduledFor))
			return nil
		}
		if err = scanner.Record(ctx, payload.ScheduledFor, reports); err != nil {
			return err
		}
		logger.Warn("drift scan found discrepancies",
			slog.Int("count", len(reports)),
			slog.Time("scheduled_for", payload.ScheduledFor))
		return nil
	}
}

// NewIdempotencyCleanupHandler prunes keys older than the payload window.
type idempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

func NewIdempotencyCleanupHandler(store idempotencyCleaner, logger *slog.Logger, metrics JobMetrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (err error) {
		defer func() {
			if metrics != nil {
				metrics.ObserveJob(TaskIdempotencyCleanup, err)
			}
		}()

		var payload IdempotencyCleanupPayload
		if err = json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OlderThan <= 0 {
			payload.OlderThan = 24 * time.Hour
		}
		if err = store.Cleanup(ctx, payload.OlderThan); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned", slog.Duration("older_than", payload.OlderThan))
		return nil
	}
}
