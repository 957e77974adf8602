package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almacen-erp/almacen/internal/platform/db"
	"github.com/almacen-erp/almacen/internal/shared"
)

// TxRepository exposes the row-level operations available inside one engine
// transaction. All reads lock the rows they return; the product row is
// always locked first so concurrent operations on the same product
// serialize in a single order.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, storeID, productID int64) (ProductState, error)
	AdjustProductStock(ctx context.Context, storeID, productID int64, delta float64) error

	GetItemForUpdate(ctx context.Context, storeID, productID, roomID int64) (InventoryItem, error)
	CreateItem(ctx context.Context, item InventoryItem) (InventoryItem, error)
	UpdateItem(ctx context.Context, itemID int64, quantity, avgCost float64) (InventoryItem, error)
	DeleteItem(ctx context.Context, itemID int64) error

	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
}

// errItemMissing distinguishes "no row yet" from real failures inside the
// transaction body; it never leaves this package.
var errItemMissing = errors.New("stock: item row missing")

// Repository runs engine transactions and ledger reads against postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction with bounded retry on
// serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListTransactions returns ledger rows for the store, newest first.
func (r *Repository) ListTransactions(ctx context.Context, storeID int64, filter LedgerFilter) ([]Transaction, error) {
	var (
		conds = []string{"store_id = $1"}
		args  = []any{storeID}
	)
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.RoomID != 0 {
		args = append(args, filter.RoomID)
		conds = append(conds, fmt.Sprintf("room_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT id, code, store_id, product_id, room_id, item_id, type, quantity, cost,
		COALESCE(notes, ''), COALESCE(supplier_id, 0), COALESCE(invoice_number, ''), COALESCE(created_by, 0), created_at
	FROM inventory_transactions
	WHERE %s
	ORDER BY created_at DESC, id DESC
	LIMIT $%d`, strings.Join(conds, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError(shared.KindInternal, "STOCK_LEDGER_LIST", "list inventory transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Code, &t.StoreID, &t.ProductID, &t.RoomID, &t.ItemID, &t.Type,
			&t.Quantity, &t.Cost, &t.Notes, &t.SupplierID, &t.InvoiceNumber, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, shared.WrapError(shared.KindInternal, "STOCK_LEDGER_SCAN", "scan inventory transaction", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, storeID, productID int64) (ProductState, error) {
	var p ProductState
	err := r.tx.QueryRow(ctx, `SELECT id, price, stock FROM products
		WHERE store_id = $1 AND id = $2 AND NOT is_deleted
		FOR UPDATE`, storeID, productID).
		Scan(&p.ID, &p.Price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductState{}, ErrProductNotFound
	}
	if err != nil {
		return ProductState{}, shared.WrapError(shared.KindInternal, "STOCK_PRODUCT_LOCK", "lock product row", err)
	}
	return p, nil
}

func (r *txRepository) AdjustProductStock(ctx context.Context, storeID, productID int64, delta float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock = stock + $3, updated_at = now()
		WHERE store_id = $1 AND id = $2`, storeID, productID, delta)
	if err != nil {
		return shared.WrapError(shared.KindInternal, "STOCK_PRODUCT_UPDATE", "update product stock", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, storeID, productID, roomID int64) (InventoryItem, error) {
	var it InventoryItem
	err := r.tx.QueryRow(ctx, `SELECT id, store_id, product_id, room_id, quantity, avg_cost, created_at, updated_at
		FROM inventory_items
		WHERE store_id = $1 AND product_id = $2 AND room_id = $3
		FOR UPDATE`, storeID, productID, roomID).
		Scan(&it.ID, &it.StoreID, &it.ProductID, &it.RoomID, &it.Quantity, &it.AvgCost, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return InventoryItem{}, errItemMissing
	}
	if err != nil {
		return InventoryItem{}, shared.WrapError(shared.KindInternal, "STOCK_ITEM_LOCK", "lock inventory item", err)
	}
	return it, nil
}

func (r *txRepository) CreateItem(ctx context.Context, item InventoryItem) (InventoryItem, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_items (store_id, product_id, room_id, quantity, avg_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		item.StoreID, item.ProductID, item.RoomID, item.Quantity, item.AvgCost).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return InventoryItem{}, shared.WrapError(shared.KindInternal, "STOCK_ITEM_CREATE", "create inventory item", err)
	}
	return item, nil
}

func (r *txRepository) UpdateItem(ctx context.Context, itemID int64, quantity, avgCost float64) (InventoryItem, error) {
	var it InventoryItem
	err := r.tx.QueryRow(ctx, `UPDATE inventory_items SET quantity = $2, avg_cost = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, store_id, product_id, room_id, quantity, avg_cost, created_at, updated_at`,
		itemID, quantity, avgCost).
		Scan(&it.ID, &it.StoreID, &it.ProductID, &it.RoomID, &it.Quantity, &it.AvgCost, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return InventoryItem{}, errItemMissing
	}
	if err != nil {
		return InventoryItem{}, shared.WrapError(shared.KindInternal, "STOCK_ITEM_UPDATE", "update inventory item", err)
	}
	return it, nil
}

func (r *txRepository) DeleteItem(ctx context.Context, itemID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, itemID); err != nil {
		return shared.WrapError(shared.KindInternal, "STOCK_ITEM_DELETE", "delete inventory item", err)
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	var supplierID any
	if t.SupplierID != 0 {
		supplierID = t.SupplierID
	}
	var createdBy any
	if t.CreatedBy != 0 {
		createdBy = t.CreatedBy
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_transactions
		(code, store_id, product_id, room_id, item_id, type, quantity, cost, notes, supplier_id, invoice_number, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12)
		RETURNING id, created_at`,
		t.Code, t.StoreID, t.ProductID, t.RoomID, t.ItemID, string(t.Type),
		t.Quantity, t.Cost, t.Notes, supplierID, t.InvoiceNumber, createdBy).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return Transaction{}, shared.WrapError(shared.KindInternal, "STOCK_TX_INSERT", "append inventory transaction", err)
	}
	return t, nil
}
