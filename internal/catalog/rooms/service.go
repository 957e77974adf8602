package rooms

import (
	"context"
	"strings"

	"github.com/almacen-erp/almacen/internal/shared"
)

// Service wraps room rules.
type Service struct {
	repo Repository
}

// NewService constructs the Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the store's rooms in creation order.
func (s *Service) List(ctx context.Context, storeID int64) ([]Room, error) {
	return s.repo.List(ctx, storeID)
}

// Get fetches one room scoped by store.
func (s *Service) Get(ctx context.Context, storeID, id int64) (Room, error) {
	if id <= 0 {
		return Room{}, shared.NewError(shared.KindInvalidArgument, "INVALID_ID", "invalid room id")
	}
	return s.repo.Get(ctx, storeID, id)
}

// Create registers a new room, optionally making it the for-sale room.
func (s *Service) Create(ctx context.Context, storeID int64, name string, forSale bool) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, shared.NewError(shared.KindInvalidArgument, "NAME_REQUIRED", "room name is required")
	}
	return s.repo.Create(ctx, Room{StoreID: storeID, Name: name, ForSale: forSale})
}

// Rename changes the room name.
func (s *Service) Rename(ctx context.Context, storeID, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewError(shared.KindInvalidArgument, "NAME_REQUIRED", "room name is required")
	}
	return s.repo.Rename(ctx, storeID, id, name)
}

// SetForSale designates the single point-of-sale room for the store.
func (s *Service) SetForSale(ctx context.Context, storeID, id int64) error {
	if id <= 0 {
		return shared.NewError(shared.KindInvalidArgument, "INVALID_ID", "invalid room id")
	}
	return s.repo.SetForSale(ctx, storeID, id)
}

// ForSaleRoom returns the store's designated point-of-sale room.
func (s *Service) ForSaleRoom(ctx context.Context, storeID int64) (Room, error) {
	return s.repo.ForSaleRoom(ctx, storeID)
}
