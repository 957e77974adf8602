package products

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almacen-erp/almacen/internal/shared"
)

// Repository persists products scoped by store.
type Repository interface {
	List(ctx context.Context, storeID int64, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, storeID, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, storeID, id int64, product Product) error
	SoftDelete(ctx context.Context, storeID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, storeID int64, filters ListFilters) ([]Product, int, error) {
	query := `SELECT id, store_id, sku, name, price, stock, is_deleted, created_at, updated_at
FROM products WHERE store_id = $1 AND NOT is_deleted`
	args := []any{storeID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM products WHERE store_id = $1 AND NOT is_deleted`
	countArgs := []any{storeID}
	if filters.Search != "" {
		countQuery += ` AND (name ILIKE $2 OR sku ILIKE $2)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, storeID, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, sku, name, price, stock, is_deleted, created_at, updated_at
FROM products WHERE store_id = $1 AND id = $2 AND NOT is_deleted`, storeID, id).
		Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Price, &p.Stock, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (store_id, sku, name, price, stock, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, FALSE, NOW(), NOW())
RETURNING id, stock, is_deleted, created_at, updated_at`,
		product.StoreID, product.SKU, product.Name, product.Price).
		Scan(&product.ID, &product.Stock, &product.IsDeleted, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, shared.NewError(shared.KindConflict, "DUPLICATE_SKU", "sku already in use")
		}
		return Product{}, err
	}
	return product, nil
}

func (r *repository) Update(ctx context.Context, storeID, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET sku = $3, name = $4, price = $5, updated_at = NOW()
WHERE store_id = $1 AND id = $2 AND NOT is_deleted`, storeID, id, product.SKU, product.Name, product.Price)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.NewError(shared.KindConflict, "DUPLICATE_SKU", "sku already in use")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, storeID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET is_deleted = TRUE, updated_at = NOW()
WHERE store_id = $1 AND id = $2 AND NOT is_deleted`, storeID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
