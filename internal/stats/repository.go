package stats

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almacen-erp/almacen/internal/shared"
)

// ProductRow is the catalog slice the report reads.
type ProductRow struct {
	ID    int64
	SKU   string
	Name  string
	Price float64
	Stock float64
}

// ItemRow is an item joined with its room name.
type ItemRow struct {
	ProductID int64
	RoomID    int64
	RoomName  string
	Quantity  float64
	AvgCost   float64
}

// RoomRef identifies a room for synthesis.
type RoomRef struct {
	ID   int64
	Name string
}

// Repository reads report inputs. All queries are store-scoped and
// read-only; the report never mutates engine state.
type Repository interface {
	ListProducts(ctx context.Context, storeID int64) ([]ProductRow, error)
	ListItems(ctx context.Context, storeID int64) ([]ItemRow, error)
	FirstRoom(ctx context.Context, storeID int64) (RoomRef, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListProducts(ctx context.Context, storeID int64) ([]ProductRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sku, name, price, stock
FROM products WHERE store_id = $1 AND NOT is_deleted
ORDER BY name ASC, id ASC`, storeID)
	if err != nil {
		return nil, shared.WrapError(shared.KindInternal, "STATS_PRODUCTS", "list products for report", err)
	}
	defer rows.Close()

	var out []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, shared.WrapError(shared.KindInternal, "STATS_PRODUCTS_SCAN", "scan product row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) ListItems(ctx context.Context, storeID int64) ([]ItemRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.product_id, i.room_id, ro.name, i.quantity, i.avg_cost
FROM inventory_items i
JOIN rooms ro ON ro.id = i.room_id
WHERE i.store_id = $1
ORDER BY i.product_id ASC, ro.created_at ASC, ro.id ASC`, storeID)
	if err != nil {
		return nil, shared.WrapError(shared.KindInternal, "STATS_ITEMS", "list items for report", err)
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var it ItemRow
		if err := rows.Scan(&it.ProductID, &it.RoomID, &it.RoomName, &it.Quantity, &it.AvgCost); err != nil {
			return nil, shared.WrapError(shared.KindInternal, "STATS_ITEMS_SCAN", "scan item row", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FirstRoom returns the store's oldest room, the anchor for synthesized
// placements.
func (r *repository) FirstRoom(ctx context.Context, storeID int64) (RoomRef, error) {
	var ref RoomRef
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM rooms
WHERE store_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1`, storeID).
		Scan(&ref.ID, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomRef{}, shared.ErrNotFound
	}
	if err != nil {
		return RoomRef{}, shared.WrapError(shared.KindInternal, "STATS_FIRST_ROOM", "resolve first room", err)
	}
	return ref, nil
}
