package rooms

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almacen-erp/almacen/internal/platform/db"
	"github.com/almacen-erp/almacen/internal/shared"
)

// Repository persists rooms scoped by store.
type Repository interface {
	List(ctx context.Context, storeID int64) ([]Room, error)
	Get(ctx context.Context, storeID, id int64) (Room, error)
	Create(ctx context.Context, room Room) (Room, error)
	Rename(ctx context.Context, storeID, id int64, name string) error
	SetForSale(ctx context.Context, storeID, id int64) error
	ForSaleRoom(ctx context.Context, storeID int64) (Room, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// List returns the store's rooms ordered deterministically by creation.
func (r *repository) List(ctx context.Context, storeID int64) ([]Room, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, store_id, name, for_sale, created_at
FROM rooms WHERE store_id = $1 ORDER BY created_at ASC, id ASC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.StoreID, &room.Name, &room.ForSale, &room.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

func (r *repository) Get(ctx context.Context, storeID, id int64) (Room, error) {
	var room Room
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, name, for_sale, created_at
FROM rooms WHERE store_id = $1 AND id = $2`, storeID, id).
		Scan(&room.ID, &room.StoreID, &room.Name, &room.ForSale, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, shared.ErrNotFound
		}
		return Room{}, err
	}
	return room, nil
}

func (r *repository) Create(ctx context.Context, room Room) (Room, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO rooms (store_id, name, for_sale, created_at)
VALUES ($1, $2, FALSE, NOW()) RETURNING id, created_at`, room.StoreID, room.Name).
			Scan(&room.ID, &room.CreatedAt); err != nil {
			return err
		}
		if room.ForSale {
			return setForSaleTx(ctx, tx, room.StoreID, room.ID)
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Room{}, shared.NewError(shared.KindConflict, "DUPLICATE_ROOM", "room name already in use")
		}
		return Room{}, err
	}
	return room, nil
}

func (r *repository) Rename(ctx context.Context, storeID, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rooms SET name = $3 WHERE store_id = $1 AND id = $2`, storeID, id, name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.NewError(shared.KindConflict, "DUPLICATE_ROOM", "room name already in use")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetForSale designates the room as the store's single for-sale room.
func (r *repository) SetForSale(ctx context.Context, storeID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return setForSaleTx(ctx, tx, storeID, id)
	})
}

// setForSaleTx clears the previous for-sale room before promoting the target.
// The order matters: the partial unique index on rooms(store_id) WHERE for_sale
// is checked per row, so promoting first would collide with the still-live old
// entry. The index stays as a backstop for the invariant.
func setForSaleTx(ctx context.Context, tx pgx.Tx, storeID, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE store_id = $1 AND id = $2)`, storeID, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return shared.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE rooms SET for_sale = FALSE
WHERE store_id = $1 AND for_sale AND id <> $2`, storeID, id); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE rooms SET for_sale = TRUE WHERE store_id = $1 AND id = $2`, storeID, id)
	return err
}

// ForSaleRoom returns the store's designated point-of-sale room.
func (r *repository) ForSaleRoom(ctx context.Context, storeID int64) (Room, error) {
	var room Room
	err := r.pool.QueryRow(ctx, `SELECT id, store_id, name, for_sale, created_at
FROM rooms WHERE store_id = $1 AND for_sale`, storeID).
		Scan(&room.ID, &room.StoreID, &room.Name, &room.ForSale, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, shared.ErrNotFound
		}
		return Room{}, err
	}
	return room, nil
}
