package stock

import (
	"time"

	"github.com/almacen-erp/almacen/internal/shared"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TypeRestock represents goods received into a room.
	TypeRestock TransactionType = "RESTOCK"
	// TypeAdjustment represents a manual count correction or item removal.
	TypeAdjustment TransactionType = "ADJUSTMENT"
	// TypeTransfer represents stock moved between rooms of one store.
	TypeTransfer TransactionType = "TRANSFER"
	// TypeSale represents stock sold out of the for-sale room.
	TypeSale TransactionType = "SALE"
)

// InventoryItem is the physical stock of one product in one room. The
// (store, product, room) triple is unique; rows are created lazily on first
// placement and removed when a transfer or removal drains them.
type InventoryItem struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	ProductID int64     `json:"product_id"`
	RoomID    int64     `json:"room_id"`
	Quantity  float64   `json:"quantity"`
	AvgCost   float64   `json:"avg_cost"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger row recording one quantity-changing
// event. Quantity is always a positive magnitude; for transfers the room of
// record is the source room. Rows are never updated or deleted, even when
// the referenced item is later removed.
type Transaction struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	StoreID       int64           `json:"store_id"`
	ProductID     int64           `json:"product_id"`
	RoomID        int64           `json:"room_id"`
	ItemID        int64           `json:"item_id"`
	Type          TransactionType `json:"type"`
	Quantity      float64         `json:"quantity"`
	Cost          float64         `json:"cost"`
	Notes         string          `json:"notes,omitempty"`
	SupplierID    int64           `json:"supplier_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	CreatedBy     int64           `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProductState is the slice of the product row the engine locks and
// mutates: the denormalized stock counter plus the sale price used for the
// default-cost heuristic.
type ProductState struct {
	ID    int64
	Price float64
	Stock float64
}

// RestockInput describes goods received into a room.
type RestockInput struct {
	ProductID      int64
	RoomID         int64
	Quantity       float64
	UnitCost       *float64
	SupplierID     int64
	InvoiceNumber  string
	Notes          string
	IdempotencyKey string
}

// AdjustInput sets an item to a counted quantity.
type AdjustInput struct {
	ProductID      int64
	RoomID         int64
	NewQuantity    float64
	Notes          string
	IdempotencyKey string
}

// TransferInput moves quantity between two rooms of the same store.
type TransferInput struct {
	ProductID      int64
	SourceRoomID   int64
	DestRoomID     int64
	Quantity       float64
	Notes          string
	IdempotencyKey string
}

// SaleInput records a point-of-sale checkout against the for-sale room.
type SaleInput struct {
	ProductID      int64
	Quantity       float64
	Notes          string
	IdempotencyKey string
}

// OperationResult is the success payload of a mutating engine operation.
// Item is nil when the operation removed the row; Transaction is nil when
// the operation turned out to be a no-op (an adjustment to the current
// quantity) and therefore left no ledger trace.
type OperationResult struct {
	Item         *InventoryItem `json:"item,omitempty"`
	ProductStock float64        `json:"product_stock"`
	Transaction  *Transaction   `json:"transaction,omitempty"`
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	ProductID int64
	RoomID    int64
	From      time.Time
	To        time.Time
	Limit     int
}

// Typed errors surfaced by the engine.
var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = shared.NewError(shared.KindInvalidArgument, "INVALID_QUANTITY", "quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = shared.NewError(shared.KindInvalidArgument, "INVALID_UNIT_COST", "unit cost must be >= 0")
	// ErrNegativeQuantity indicates an adjustment below zero.
	ErrNegativeQuantity = shared.NewError(shared.KindInvalidArgument, "NEGATIVE_QUANTITY", "quantity must be >= 0")
	// ErrSameRoom indicates a transfer onto itself.
	ErrSameRoom = shared.NewError(shared.KindInvalidArgument, "SAME_ROOM", "source and destination room must differ")
	// ErrInsufficientStock indicates a movement beyond available quantity.
	ErrInsufficientStock = shared.NewError(shared.KindConflict, "INSUFFICIENT_STOCK", "insufficient stock")
	// ErrItemNotFound indicates a missing inventory item for the pair.
	ErrItemNotFound = shared.NewError(shared.KindNotFound, "ITEM_NOT_FOUND", "inventory item not found")
	// ErrProductNotFound covers both a missing product and one owned by
	// another store; callers cannot tell the difference.
	ErrProductNotFound = shared.NewError(shared.KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	// ErrRoomNotFound covers both a missing room and one owned by another
	// store.
	ErrRoomNotFound = shared.NewError(shared.KindNotFound, "ROOM_NOT_FOUND", "room not found")
)
