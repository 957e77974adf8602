// Package suppliers provides store-scoped supplier lookups. Supplier
// management lives in the back-office CRUD surface; the engine only needs
// existence and ownership checks for restock references.
package suppliers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almacen-erp/almacen/internal/shared"
)

// Supplier identifies a goods source referenced by restock transactions.
type Supplier struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository exposes supplier lookups.
type Repository interface {
	Get(ctx context.Context, storeID, id int64) (Supplier, error)
	List(ctx context.Context, storeID int64) ([]Supplier, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, storeID, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, name, created_at
FROM suppliers WHERE store_id = $1 AND id = $2`, storeID, id).
		Scan(&s.ID, &s.StoreID, &s.Name, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

func (r *repository) List(ctx context.Context, storeID int64) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, store_id, name, created_at
FROM suppliers WHERE store_id = $1 ORDER BY name ASC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.StoreID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
