package rooms

import "time"

// Room is a physical storage or sales location within a store. At most one
// room per store carries ForSale; it is the point-of-sale source.
type Room struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Name      string    `json:"name"`
	ForSale   bool      `json:"for_sale"`
	CreatedAt time.Time `json:"created_at"`
}
