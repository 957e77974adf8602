// Package stats builds read-only inventory reports: the per-product room
// breakdown with estimated cost and resale value, served as JSON or CSV.
package stats

import "time"

// RoomStat is one room's share of a product's stock.
type RoomStat struct {
	RoomID   int64   `json:"room_id"`
	RoomName string  `json:"room_name"`
	Quantity float64 `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// ProductStats is the report line for one product. Synthesized marks lines
// whose room placement was reconstructed because the stock counter is
// positive while no item rows exist; the reconstruction assumes the store's
// oldest room and a cost derived from the sale price.
type ProductStats struct {
	ProductID      int64      `json:"product_id"`
	SKU            string     `json:"sku"`
	Name           string     `json:"name"`
	Price          float64    `json:"price"`
	Stock          float64    `json:"stock"`
	Rooms          []RoomStat `json:"rooms"`
	EstimatedCost  float64    `json:"estimated_cost"`
	EstimatedValue float64    `json:"estimated_value"`
	Synthesized    bool       `json:"synthesized,omitempty"`
}

// ReportTotals aggregates the whole store.
type ReportTotals struct {
	Products       int     `json:"products"`
	Stock          float64 `json:"stock"`
	EstimatedCost  float64 `json:"estimated_cost"`
	EstimatedValue float64 `json:"estimated_value"`
}

// InventoryReport is the store-wide snapshot.
type InventoryReport struct {
	StoreID     int64          `json:"store_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Products    []ProductStats `json:"products"`
	Totals      ReportTotals   `json:"totals"`
}
