package stock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/almacen-erp/almacen/internal/catalog/rooms"
	"github.com/almacen-erp/almacen/internal/catalog/suppliers"
	"github.com/almacen-erp/almacen/internal/shared"
)

// RepositoryPort is the persistence surface the engine drives.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	ListTransactions(ctx context.Context, storeID int64, filter LedgerFilter) ([]Transaction, error)
}

// RoomDirectory resolves rooms within the caller's store.
type RoomDirectory interface {
	Get(ctx context.Context, storeID, id int64) (rooms.Room, error)
	ForSaleRoom(ctx context.Context, storeID int64) (rooms.Room, error)
}

// SupplierDirectory resolves suppliers within the caller's store.
type SupplierDirectory interface {
	Get(ctx context.Context, storeID, id int64) (suppliers.Supplier, error)
}

// IdempotencyPort guards retried mutations. Both methods are no-ops when
// the request carries no key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records the operator trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts engine operation outcomes.
type MetricsPort interface {
	ObserveStockOp(op string, err error)
}

// ServiceConfig carries engine tunables.
type ServiceConfig struct {
	// DefaultCostRatio is applied to the product price when a restock
	// carries no unit cost and no item row exists yet.
	DefaultCostRatio float64
}

// Service implements the stock engine: every quantity change runs in one
// transaction that locks the product row, mutates item rows, keeps the
// denormalized product stock counter in step, and appends exactly one
// ledger row.
type Service struct {
	repo        RepositoryPort
	roomDir     RoomDirectory
	supplierDir SupplierDirectory
	idem        IdempotencyPort
	audit       AuditPort
	metrics     MetricsPort
	logger      *slog.Logger
	cfg         ServiceConfig
}

func NewService(repo RepositoryPort, roomDir RoomDirectory, supplierDir SupplierDirectory,
	idem IdempotencyPort, audit AuditPort, metrics MetricsPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultCostRatio <= 0 || cfg.DefaultCostRatio > 1 {
		cfg.DefaultCostRatio = 0.6
	}
	return &Service{
		repo:        repo,
		roomDir:     roomDir,
		supplierDir: supplierDir,
		idem:        idem,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Restock receives quantity into a room, creating the item row on first
// placement and folding the received cost into the moving weighted average
// otherwise.
func (s *Service) Restock(ctx context.Context, p shared.Principal, in RestockInput) (res OperationResult, err error) {
	defer func() { s.finish(ctx, p, "stock.restock", in.ProductID, err) }()

	if in.Quantity <= 0 {
		return OperationResult{}, ErrInvalidQuantity
	}
	if in.UnitCost != nil && *in.UnitCost < 0 {
		return OperationResult{}, ErrInvalidUnitCost
	}
	if _, err = s.lookupRoom(ctx, p.StoreID, in.RoomID); err != nil {
		return OperationResult{}, err
	}
	if in.SupplierID != 0 {
		if _, err = s.supplierDir.Get(ctx, p.StoreID, in.SupplierID); err != nil {
			return OperationResult{}, shared.NewError(shared.KindNotFound, "SUPPLIER_NOT_FOUND", "supplier not found")
		}
	}
	if err = s.claimKey(ctx, in.IdempotencyKey); err != nil {
		return OperationResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, p.StoreID, in.ProductID)
		if err != nil {
			return err
		}

		unitCost := s.cfg.DefaultCostRatio * product.Price
		if in.UnitCost != nil {
			unitCost = *in.UnitCost
		}

		item, err := tx.GetItemForUpdate(ctx, p.StoreID, in.ProductID, in.RoomID)
		switch {
		case err == errItemMissing:
			item, err = tx.CreateItem(ctx, InventoryItem{
				StoreID:   p.StoreID,
				ProductID: in.ProductID,
				RoomID:    in.RoomID,
				Quantity:  in.Quantity,
				AvgCost:   unitCost,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			newQty := item.Quantity + in.Quantity
			newAvg := (item.Quantity*item.AvgCost + in.Quantity*unitCost) / newQty
			item, err = tx.UpdateItem(ctx, item.ID, newQty, newAvg)
			if err != nil {
				return err
			}
		}

		if err := tx.AdjustProductStock(ctx, p.StoreID, in.ProductID, in.Quantity); err != nil {
			return err
		}

		t, err := tx.InsertTransaction(ctx, Transaction{
			Code:          newCode(TypeRestock),
			StoreID:       p.StoreID,
			ProductID:     in.ProductID,
			RoomID:        in.RoomID,
			ItemID:        item.ID,
			Type:          TypeRestock,
			Quantity:      in.Quantity,
			Cost:          unitCost,
			Notes:         in.Notes,
			SupplierID:    in.SupplierID,
			InvoiceNumber: in.InvoiceNumber,
			CreatedBy:     p.UserID,
		})
		if err != nil {
			return err
		}

		res = OperationResult{Item: &item, ProductStock: product.Stock + in.Quantity, Transaction: &t}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return OperationResult{}, err
	}
	return res, nil
}

// AdjustQuantity sets an existing item to a counted quantity. The average
// cost is left untouched; the ledger records the magnitude of the delta. An
// adjustment to the current quantity writes nothing.
func (s *Service) AdjustQuantity(ctx context.Context, p shared.Principal, in AdjustInput) (res OperationResult, err error) {
	defer func() { s.finish(ctx, p, "stock.adjust", in.ProductID, err) }()

	if in.NewQuantity < 0 {
		return OperationResult{}, ErrNegativeQuantity
	}
	if _, err = s.lookupRoom(ctx, p.StoreID, in.RoomID); err != nil {
		return OperationResult{}, err
	}
	if err = s.claimKey(ctx, in.IdempotencyKey); err != nil {
		return OperationResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, p.StoreID, in.ProductID)
		if err != nil {
			return err
		}
		item, err := tx.GetItemForUpdate(ctx, p.StoreID, in.ProductID, in.RoomID)
		if err == errItemMissing {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		delta := in.NewQuantity - item.Quantity
		if delta == 0 {
			res = OperationResult{Item: &item, ProductStock: product.Stock}
			return nil
		}

		item, err = tx.UpdateItem(ctx, item.ID, in.NewQuantity, item.AvgCost)
		if err != nil {
			return err
		}
		if err := tx.AdjustProductStock(ctx, p.StoreID, in.ProductID, delta); err != nil {
			return err
		}

		qty := delta
		if qty < 0 {
			qty = -qty
		}
		t, err := tx.InsertTransaction(ctx, Transaction{
			Code:      newCode(TypeAdjustment),
			StoreID:   p.StoreID,
			ProductID: in.ProductID,
			RoomID:    in.RoomID,
			ItemID:    item.ID,
			Type:      TypeAdjustment,
			Quantity:  qty,
			Cost:      item.AvgCost,
			Notes:     in.Notes,
			CreatedBy: p.UserID,
		})
		if err != nil {
			return err
		}

		res = OperationResult{Item: &item, ProductStock: product.Stock + delta, Transaction: &t}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return OperationResult{}, err
	}
	return res, nil
}

// Transfer moves quantity between two rooms of the store. The product
// stock counter is untouched; stock only changes location. The destination
// keeps its own average cost when it already holds the product, and
// inherits the source's when it does not. A drained source row is deleted.
func (s *Service) Transfer(ctx context.Context, p shared.Principal, in TransferInput) (res OperationResult, err error) {
	defer func() { s.finish(ctx, p, "stock.transfer", in.ProductID, err) }()

	if in.Quantity <= 0 {
		return OperationResult{}, ErrInvalidQuantity
	}
	if in.SourceRoomID == in.DestRoomID {
		return OperationResult{}, ErrSameRoom
	}
	if _, err = s.lookupRoom(ctx, p.StoreID, in.SourceRoomID); err != nil {
		return OperationResult{}, err
	}
	if _, err = s.lookupRoom(ctx, p.StoreID, in.DestRoomID); err != nil {
		return OperationResult{}, err
	}
	if err = s.claimKey(ctx, in.IdempotencyKey); err != nil {
		return OperationResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Lock the product row first so every operation on this product
		// serializes in one order regardless of which rooms it touches.
		product, err := tx.GetProductForUpdate(ctx, p.StoreID, in.ProductID)
		if err != nil {
			return err
		}

		source, err := tx.GetItemForUpdate(ctx, p.StoreID, in.ProductID, in.SourceRoomID)
		if err == errItemMissing {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if source.Quantity < in.Quantity {
			return ErrInsufficientStock
		}

		dest, err := tx.GetItemForUpdate(ctx, p.StoreID, in.ProductID, in.DestRoomID)
		switch {
		case err == errItemMissing:
			dest, err = tx.CreateItem(ctx, InventoryItem{
				StoreID:   p.StoreID,
				ProductID: in.ProductID,
				RoomID:    in.DestRoomID,
				Quantity:  in.Quantity,
				AvgCost:   source.AvgCost,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			dest, err = tx.UpdateItem(ctx, dest.ID, dest.Quantity+in.Quantity, dest.AvgCost)
			if err != nil {
				return err
			}
		}

		remaining := source.Quantity - in.Quantity
		if remaining == 0 {
			if err := tx.DeleteItem(ctx, source.ID); err != nil {
				return err
			}
		} else {
			if _, err := tx.UpdateItem(ctx, source.ID, remaining, source.AvgCost); err != nil {
				return err
			}
		}

		t, err := tx.InsertTransaction(ctx, Transaction{
			Code:      newCode(TypeTransfer),
			StoreID:   p.StoreID,
			ProductID: in.ProductID,
			RoomID:    in.SourceRoomID,
			ItemID:    source.ID,
			Type:      TypeTransfer,
			Quantity:  in.Quantity,
			Cost:      source.AvgCost,
			Notes:     in.Notes,
			CreatedBy: p.UserID,
		})
		if err != nil {
			return err
		}

		res = OperationResult{Item: &dest, ProductStock: product.Stock, Transaction: &t}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return OperationResult{}, err
	}
	return res, nil
}

// RemoveItem deletes an item row outright, writing off whatever quantity it
// held as an adjustment so the product counter and the ledger stay honest.
func (s *Service) RemoveItem(ctx context.Context, p shared.Principal, productID, roomID int64) (res OperationResult, err error) {
	defer func() { s.finish(ctx, p, "stock.remove", productID, err) }()

	if _, err = s.lookupRoom(ctx, p.StoreID, roomID); err != nil {
		return OperationResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, p.StoreID, productID)
		if err != nil {
			return err
		}
		item, err := tx.GetItemForUpdate(ctx, p.StoreID, productID, roomID)
		if err == errItemMissing {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		if item.Quantity != 0 {
			if err := tx.AdjustProductStock(ctx, p.StoreID, productID, -item.Quantity); err != nil {
				return err
			}
		}
		t, err := tx.InsertTransaction(ctx, Transaction{
			Code:      newCode(TypeAdjustment),
			StoreID:   p.StoreID,
			ProductID: productID,
			RoomID:    roomID,
			ItemID:    item.ID,
			Type:      TypeAdjustment,
			Quantity:  item.Quantity,
			Cost:      item.AvgCost,
			Notes:     "item removed",
			CreatedBy: p.UserID,
		})
		if err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, item.ID); err != nil {
			return err
		}

		res = OperationResult{ProductStock: product.Stock - item.Quantity, Transaction: &t}
		return nil
	})
	if err != nil {
		return OperationResult{}, err
	}
	return res, nil
}

// RecordSale decrements the store's for-sale room after a checkout. The
// row is kept even at zero quantity so the shelf position survives.
func (s *Service) RecordSale(ctx context.Context, p shared.Principal, in SaleInput) (res OperationResult, err error) {
	defer func() { s.finish(ctx, p, "stock.sale", in.ProductID, err) }()

	if in.Quantity <= 0 {
		return OperationResult{}, ErrInvalidQuantity
	}
	room, err := s.roomDir.ForSaleRoom(ctx, p.StoreID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return OperationResult{}, shared.NewError(shared.KindConflict, "NO_FORSALE_ROOM", "store has no for-sale room")
		}
		return OperationResult{}, err
	}
	if err = s.claimKey(ctx, in.IdempotencyKey); err != nil {
		return OperationResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, p.StoreID, in.ProductID)
		if err != nil {
			return err
		}
		item, err := tx.GetItemForUpdate(ctx, p.StoreID, in.ProductID, room.ID)
		if err == errItemMissing {
			return ErrInsufficientStock
		}
		if err != nil {
			return err
		}
		if item.Quantity < in.Quantity {
			return ErrInsufficientStock
		}

		item, err = tx.UpdateItem(ctx, item.ID, item.Quantity-in.Quantity, item.AvgCost)
		if err != nil {
			return err
		}
		if err := tx.AdjustProductStock(ctx, p.StoreID, in.ProductID, -in.Quantity); err != nil {
			return err
		}

		t, err := tx.InsertTransaction(ctx, Transaction{
			Code:      newCode(TypeSale),
			StoreID:   p.StoreID,
			ProductID: in.ProductID,
			RoomID:    room.ID,
			ItemID:    item.ID,
			Type:      TypeSale,
			Quantity:  in.Quantity,
			Cost:      item.AvgCost,
			Notes:     in.Notes,
			CreatedBy: p.UserID,
		})
		if err != nil {
			return err
		}

		res = OperationResult{Item: &item, ProductStock: product.Stock - in.Quantity, Transaction: &t}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return OperationResult{}, err
	}
	return res, nil
}

// Ledger lists the store's transaction history, newest first.
func (s *Service) Ledger(ctx context.Context, p shared.Principal, filter LedgerFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, p.StoreID, filter)
}

func (s *Service) lookupRoom(ctx context.Context, storeID, roomID int64) (rooms.Room, error) {
	room, err := s.roomDir.Get(ctx, storeID, roomID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return rooms.Room{}, ErrRoomNotFound
		}
		return rooms.Room{}, err
	}
	return room, nil
}

func (s *Service) claimKey(ctx context.Context, key string) error {
	if key == "" || s.idem == nil {
		return nil
	}
	return s.idem.CheckAndInsert(ctx, key, "stock")
}

// releaseKey frees the idempotency claim after a failed attempt so the
// caller may retry with the same key.
func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil && s.logger != nil {
		s.logger.Warn("release idempotency key", "key", key, "error", err)
	}
}

// finish records metrics and the audit trail for one engine call.
func (s *Service) finish(ctx context.Context, p shared.Principal, op string, productID int64, err error) {
	if s.metrics != nil {
		s.metrics.ObserveStockOp(op, err)
	}
	if err != nil || s.audit == nil {
		return
	}
	auditErr := s.audit.Record(ctx, shared.AuditLog{
		StoreID:  p.StoreID,
		ActorID:  p.UserID,
		Action:   op,
		Entity:   "product",
		EntityID: strconv.FormatInt(productID, 10),
	})
	if auditErr != nil && s.logger != nil {
		s.logger.Warn("record audit log", "action", op, "error", auditErr)
	}
}

func newCode(t TransactionType) string {
	prefix := "INV"
	switch t {
	case TypeRestock:
		prefix = "RST"
	case TypeAdjustment:
		prefix = "ADJ"
	case TypeTransfer:
		prefix = "TRF"
	case TypeSale:
		prefix = "SAL"
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
