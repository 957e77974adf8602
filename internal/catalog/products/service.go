package products

import (
	"context"
	"strings"

	"github.com/almacen-erp/almacen/internal/shared"
)

// Service wraps product catalog rules.
type Service struct {
	repo Repository
}

// NewService constructs the Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns products of a store with pagination metadata.
func (s *Service) List(ctx context.Context, storeID int64, filters ListFilters) ([]Product, shared.Pagination, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	items, total, err := s.repo.List(ctx, storeID, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// Get fetches one product scoped by store.
func (s *Service) Get(ctx context.Context, storeID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.NewError(shared.KindInvalidArgument, "INVALID_ID", "invalid product id")
	}
	return s.repo.Get(ctx, storeID, id)
}

// Create registers a new product with zero stock.
func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

// Update changes mutable product attributes. Stock is out of reach here.
func (s *Service) Update(ctx context.Context, storeID, id int64, product Product) error {
	if err := validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, storeID, id, product)
}

// Delete soft deletes a product, keeping ledger references intact.
func (s *Service) Delete(ctx context.Context, storeID, id int64) error {
	return s.repo.SoftDelete(ctx, storeID, id)
}

func validate(product Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return shared.NewError(shared.KindInvalidArgument, "NAME_REQUIRED", "product name is required")
	}
	if product.Price < 0 {
		return shared.NewError(shared.KindInvalidArgument, "NEGATIVE_PRICE", "price must be >= 0")
	}
	return nil
}
