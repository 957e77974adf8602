package products

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen-erp/almacen/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	products map[int64]Product
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]Product{}}
}

func (r *memoryRepo) List(_ context.Context, storeID int64, filters ListFilters) ([]Product, int, error) {
	var all []Product
	for _, p := range r.products {
		if p.StoreID != storeID || p.IsDeleted {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filters.Search)) {
			continue
		}
		all = append(all, p)
	}
	return all, len(all), nil
}

func (r *memoryRepo) Get(_ context.Context, storeID, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok || p.StoreID != storeID || p.IsDeleted {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Create(_ context.Context, product Product) (Product, error) {
	for _, p := range r.products {
		if p.StoreID == product.StoreID && p.SKU == product.SKU {
			return Product{}, shared.NewError(shared.KindConflict, "DUPLICATE_SKU", "sku already exists")
		}
	}
	r.nextID++
	product.ID = r.nextID
	r.products[product.ID] = product
	return product, nil
}

func (r *memoryRepo) Update(_ context.Context, storeID, id int64, product Product) error {
	p, ok := r.products[id]
	if !ok || p.StoreID != storeID || p.IsDeleted {
		return shared.ErrNotFound
	}
	p.SKU, p.Name, p.Price = product.SKU, product.Name, product.Price
	r.products[id] = p
	return nil
}

func (r *memoryRepo) SoftDelete(_ context.Context, storeID, id int64) error {
	p, ok := r.products[id]
	if !ok || p.StoreID != storeID || p.IsDeleted {
		return shared.ErrNotFound
	}
	p.IsDeleted = true
	r.products[id] = p
	return nil
}

func TestCreateStartsWithZeroStock(t *testing.T) {
	svc := NewService(newMemoryRepo())

	p, err := svc.Create(context.Background(), Product{StoreID: 1, SKU: "SKU-1", Name: "Cerveza", Price: 10})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Stock)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Product{StoreID: 1, SKU: "SKU-1", Name: "   "})
	require.Error(t, err)
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err))
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Product{StoreID: 1, SKU: "SKU-1", Name: "Cerveza", Price: 10})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Product{StoreID: 1, SKU: "SKU-1", Name: "Otra", Price: 5})
	require.Error(t, err)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
}

func TestGetScopedByStore(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Product{StoreID: 1, SKU: "SKU-1", Name: "Cerveza", Price: 10})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 2, created.ID)
	require.Error(t, err, "foreign store must not see the product")
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestDeleteHidesFromReads(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Product{StoreID: 1, SKU: "SKU-1", Name: "Cerveza", Price: 10})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 1, created.ID))
	_, err = svc.Get(context.Background(), 1, created.ID)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	items, _, err := svc.List(context.Background(), 1, ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, items)
}
