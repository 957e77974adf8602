package products

import "time"

// Product is a sellable article owned by exactly one store. Stock is a
// denormalized total across rooms; only the stock ledger engine mutates it.
type Product struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     float64   `json:"stock"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Page   int
	Limit  int
	Search string
}
