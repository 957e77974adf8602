package stock

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen-erp/almacen/internal/catalog/rooms"
	"github.com/almacen-erp/almacen/internal/catalog/suppliers"
	"github.com/almacen-erp/almacen/internal/shared"
)

type memoryState struct {
	products map[int64]ProductState
	owners   map[int64]int64
	items    map[int64]InventoryItem
	txs      []Transaction
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		products: make(map[int64]ProductState, len(s.products)),
		owners:   make(map[int64]int64, len(s.owners)),
		items:    make(map[int64]InventoryItem, len(s.items)),
		txs:      append([]Transaction(nil), s.txs...),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.owners {
		out.owners[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	return out
}

// memoryRepo implements RepositoryPort and TxRepository against maps, with
// snapshot rollback so a failed transaction leaves no trace.
type memoryRepo struct {
	state      memoryState
	nextItemID int64
	nextTxID   int64
	failLedger error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{
		products: map[int64]ProductState{},
		owners:   map[int64]int64{},
		items:    map[int64]InventoryItem{},
	}}
}

func (r *memoryRepo) addProduct(storeID, id int64, price float64) {
	r.state.products[id] = ProductState{ID: id, Price: price}
	r.state.owners[id] = storeID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, r); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) ListTransactions(_ context.Context, storeID int64, filter LedgerFilter) ([]Transaction, error) {
	var out []Transaction
	for i := len(r.state.txs) - 1; i >= 0; i-- {
		t := r.state.txs[i]
		if t.StoreID != storeID {
			continue
		}
		if filter.ProductID != 0 && t.ProductID != filter.ProductID {
			continue
		}
		if filter.RoomID != 0 && t.RoomID != filter.RoomID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepo) GetProductForUpdate(_ context.Context, storeID, productID int64) (ProductState, error) {
	p, ok := r.state.products[productID]
	if !ok || r.state.owners[productID] != storeID {
		return ProductState{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) AdjustProductStock(_ context.Context, storeID, productID int64, delta float64) error {
	p, ok := r.state.products[productID]
	if !ok || r.state.owners[productID] != storeID {
		return ErrProductNotFound
	}
	p.Stock += delta
	r.state.products[productID] = p
	return nil
}

func (r *memoryRepo) GetItemForUpdate(_ context.Context, storeID, productID, roomID int64) (InventoryItem, error) {
	for _, it := range r.state.items {
		if it.StoreID == storeID && it.ProductID == productID && it.RoomID == roomID {
			return it, nil
		}
	}
	return InventoryItem{}, errItemMissing
}

func (r *memoryRepo) CreateItem(_ context.Context, item InventoryItem) (InventoryItem, error) {
	r.nextItemID++
	item.ID = r.nextItemID
	r.state.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(_ context.Context, itemID int64, quantity, avgCost float64) (InventoryItem, error) {
	it, ok := r.state.items[itemID]
	if !ok {
		return InventoryItem{}, errItemMissing
	}
	it.Quantity = quantity
	it.AvgCost = avgCost
	r.state.items[itemID] = it
	return it, nil
}

func (r *memoryRepo) DeleteItem(_ context.Context, itemID int64) error {
	delete(r.state.items, itemID)
	return nil
}

func (r *memoryRepo) InsertTransaction(_ context.Context, t Transaction) (Transaction, error) {
	if r.failLedger != nil {
		return Transaction{}, r.failLedger
	}
	r.nextTxID++
	t.ID = r.nextTxID
	r.state.txs = append(r.state.txs, t)
	return t, nil
}

func (r *memoryRepo) itemQuantity(productID, roomID int64) (float64, bool) {
	for _, it := range r.state.items {
		if it.ProductID == productID && it.RoomID == roomID {
			return it.Quantity, true
		}
	}
	return 0, false
}

func (r *memoryRepo) itemSum(productID int64) float64 {
	var sum float64
	for _, it := range r.state.items {
		if it.ProductID == productID {
			sum += it.Quantity
		}
	}
	return sum
}

type memoryRooms struct {
	rooms   map[int64]rooms.Room
	forSale int64
}

func (d *memoryRooms) Get(_ context.Context, storeID, id int64) (rooms.Room, error) {
	room, ok := d.rooms[id]
	if !ok || room.StoreID != storeID {
		return rooms.Room{}, shared.ErrNotFound
	}
	return room, nil
}

func (d *memoryRooms) ForSaleRoom(_ context.Context, storeID int64) (rooms.Room, error) {
	room, ok := d.rooms[d.forSale]
	if !ok || room.StoreID != storeID {
		return rooms.Room{}, shared.ErrNotFound
	}
	return room, nil
}

type memorySuppliers struct {
	byID map[int64]suppliers.Supplier
}

func (d *memorySuppliers) Get(_ context.Context, storeID, id int64) (suppliers.Supplier, error) {
	sup, ok := d.byID[id]
	if !ok || sup.StoreID != storeID {
		return suppliers.Supplier{}, shared.ErrNotFound
	}
	return sup, nil
}

type memoryIdem struct {
	claimed map[string]bool
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.claimed == nil {
		m.claimed = map[string]bool{}
	}
	if m.claimed[key] {
		return shared.NewError(shared.KindConflict, "IDEMPOTENT_REPLAY", "request already processed")
	}
	m.claimed[key] = true
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key string) error {
	delete(m.claimed, key)
	return nil
}

const (
	testStore   = int64(1)
	otherStore  = int64(2)
	roomMain    = int64(10)
	roomShop    = int64(11)
	roomBack    = int64(12)
	productBeer = int64(100)
)

var testPrincipal = shared.Principal{UserID: 7, StoreID: testStore}

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryIdem) {
	t.Helper()
	repo := newMemoryRepo()
	repo.addProduct(testStore, productBeer, 10.0)

	dir := &memoryRooms{
		rooms: map[int64]rooms.Room{
			roomMain: {ID: roomMain, StoreID: testStore, Name: "Almacen"},
			roomShop: {ID: roomShop, StoreID: testStore, Name: "Salon", ForSale: true},
			roomBack: {ID: roomBack, StoreID: otherStore, Name: "Ajeno"},
		},
		forSale: roomShop,
	}
	sups := &memorySuppliers{byID: map[int64]suppliers.Supplier{
		500: {ID: 500, StoreID: testStore, Name: "Distribuidora Sur"},
	}}
	idem := &memoryIdem{}

	svc := NewService(repo, dir, sups, idem, nil, nil, slog.Default(), ServiceConfig{DefaultCostRatio: 0.6})
	return svc, repo, idem
}

func restock(t *testing.T, svc *Service, roomID int64, qty float64, cost *float64) OperationResult {
	t.Helper()
	res, err := svc.Restock(context.Background(), testPrincipal, RestockInput{
		ProductID: productBeer, RoomID: roomID, Quantity: qty, UnitCost: cost,
	})
	require.NoError(t, err)
	return res
}

func costOf(v float64) *float64 { return &v }

func TestRestockCreatesItem(t *testing.T) {
	svc, repo, _ := newTestService(t)

	res := restock(t, svc, roomMain, 20, costOf(4.5))

	require.NotNil(t, res.Item)
	assert.Equal(t, 20.0, res.Item.Quantity)
	assert.Equal(t, 4.5, res.Item.AvgCost)
	assert.Equal(t, 20.0, res.ProductStock)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, TypeRestock, res.Transaction.Type)
	assert.Equal(t, 20.0, res.Transaction.Quantity)
	assert.Equal(t, 20.0, repo.state.products[productBeer].Stock)
	assert.Len(t, repo.state.txs, 1)
}

func TestRestockMovingWeightedAverage(t *testing.T) {
	svc, repo, _ := newTestService(t)

	restock(t, svc, roomMain, 10, costOf(5))
	res := restock(t, svc, roomMain, 10, costOf(7))

	assert.Equal(t, 20.0, res.Item.Quantity)
	assert.InDelta(t, 6.0, res.Item.AvgCost, 1e-9)
	assert.Equal(t, 20.0, repo.state.products[productBeer].Stock)
	assert.Len(t, repo.state.txs, 2)
}

func TestRestockDefaultsCostFromPrice(t *testing.T) {
	svc, _, _ := newTestService(t)

	res := restock(t, svc, roomMain, 5, nil)

	// price 10.00 with ratio 0.6
	assert.InDelta(t, 6.0, res.Item.AvgCost, 1e-9)
	assert.InDelta(t, 6.0, res.Transaction.Cost, 1e-9)
}

func TestRestockRejectsForeignRoom(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Restock(context.Background(), testPrincipal, RestockInput{
		ProductID: productBeer, RoomID: roomBack, Quantity: 5,
	})
	require.Error(t, err)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	assert.Empty(t, repo.state.txs)
}

func TestRestockUnknownProduct(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Restock(context.Background(), testPrincipal, RestockInput{
		ProductID: 999, RoomID: roomMain, Quantity: 5,
	})
	require.Error(t, err)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestRestockUnknownSupplier(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Restock(context.Background(), testPrincipal, RestockInput{
		ProductID: productBeer, RoomID: roomMain, Quantity: 5, SupplierID: 777,
	})
	require.Error(t, err)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestRestockRollsBackOnLedgerFailure(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.failLedger = errors.New("ledger insert refused")

	_, err := svc.Restock(context.Background(), testPrincipal, RestockInput{
		ProductID: productBeer, RoomID: roomMain, Quantity: 10, UnitCost: costOf(5),
	})
	require.Error(t, err)

	_, ok := repo.itemQuantity(productBeer, roomMain)
	assert.False(t, ok, "item upsert must be rolled back with the failed append")
	assert.Equal(t, 0.0, repo.state.products[productBeer].Stock)
	assert.Empty(t, repo.state.txs)
}

func TestAdjustRollsBackOnLedgerFailure(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 30, costOf(5))
	repo.failLedger = errors.New("ledger insert refused")

	_, err := svc.AdjustQuantity(context.Background(), testPrincipal, AdjustInput{
		ProductID: productBeer, RoomID: roomMain, NewQuantity: 22,
	})
	require.Error(t, err)

	qty, ok := repo.itemQuantity(productBeer, roomMain)
	require.True(t, ok)
	assert.Equal(t, 30.0, qty)
	assert.Equal(t, 30.0, repo.state.products[productBeer].Stock)
	assert.Len(t, repo.state.txs, 1)
}

func TestAdjustSetsCountedQuantity(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 30, costOf(5))

	res, err := svc.AdjustQuantity(context.Background(), testPrincipal, AdjustInput{
		ProductID: productBeer, RoomID: roomMain, NewQuantity: 22,
	})
	require.NoError(t, err)

	assert.Equal(t, 22.0, res.Item.Quantity)
	assert.Equal(t, 5.0, res.Item.AvgCost, "adjustment must not touch the average cost")
	assert.Equal(t, 22.0, res.ProductStock)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, TypeAdjustment, res.Transaction.Type)
	assert.Equal(t, 8.0, res.Transaction.Quantity, "ledger records the delta magnitude")
	assert.Equal(t, repo.itemSum(productBeer), repo.state.products[productBeer].Stock)
}

func TestAdjustNoChangeWritesNothing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 30, costOf(5))

	res, err := svc.AdjustQuantity(context.Background(), testPrincipal, AdjustInput{
		ProductID: productBeer, RoomID: roomMain, NewQuantity: 30,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Transaction)
	assert.Len(t, repo.state.txs, 1, "only the restock row")
}

func TestAdjustMissingItem(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AdjustQuantity(context.Background(), testPrincipal, AdjustInput{
		ProductID: productBeer, RoomID: roomMain, NewQuantity: 10,
	})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestAdjustRejectsNegative(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AdjustQuantity(context.Background(), testPrincipal, AdjustInput{
		ProductID: productBeer, RoomID: roomMain, NewQuantity: -1,
	})
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestTransferMovesStockBetweenRooms(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 50, costOf(6))

	res, err := svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 20,
	})
	require.NoError(t, err)

	srcQty, ok := repo.itemQuantity(productBeer, roomMain)
	require.True(t, ok)
	assert.Equal(t, 30.0, srcQty)
	assert.Equal(t, 20.0, res.Item.Quantity)
	assert.Equal(t, 6.0, res.Item.AvgCost, "new destination inherits the source cost")
	assert.Equal(t, 50.0, res.ProductStock, "transfer must not change total stock")
	assert.Equal(t, 50.0, repo.state.products[productBeer].Stock)

	require.NotNil(t, res.Transaction)
	assert.Equal(t, TypeTransfer, res.Transaction.Type)
	assert.Equal(t, roomMain, res.Transaction.RoomID, "ledger references the source room")
	assert.Len(t, repo.state.txs, 2)
}

func TestTransferPreservesDestinationCost(t *testing.T) {
	svc, _, _ := newTestService(t)
	restock(t, svc, roomMain, 50, costOf(8))
	restock(t, svc, roomShop, 10, costOf(4))

	res, err := svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 20.0, res.Item.Quantity)
	assert.Equal(t, 4.0, res.Item.AvgCost, "existing destination keeps its own cost")
}

func TestTransferDrainsSourceRow(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 15, costOf(6))

	_, err := svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 15,
	})
	require.NoError(t, err)

	_, ok := repo.itemQuantity(productBeer, roomMain)
	assert.False(t, ok, "drained source row must be deleted")

	_, err = svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 5,
	})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestTransferInsufficientStockLeavesStateUntouched(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 10, costOf(6))

	_, err := svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 11,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	qty, ok := repo.itemQuantity(productBeer, roomMain)
	require.True(t, ok)
	assert.Equal(t, 10.0, qty)
	_, ok = repo.itemQuantity(productBeer, roomShop)
	assert.False(t, ok)
	assert.Len(t, repo.state.txs, 1)
}

func TestTransferSameRoom(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomMain, Quantity: 1,
	})
	assert.ErrorIs(t, err, ErrSameRoom)
}

func TestRemoveItemWritesOffQuantity(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomMain, 25, costOf(6))

	res, err := svc.RemoveItem(context.Background(), testPrincipal, productBeer, roomMain)
	require.NoError(t, err)

	assert.Nil(t, res.Item)
	assert.Equal(t, 0.0, res.ProductStock)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, TypeAdjustment, res.Transaction.Type)
	assert.Equal(t, 25.0, res.Transaction.Quantity)

	_, ok := repo.itemQuantity(productBeer, roomMain)
	assert.False(t, ok)
	assert.Equal(t, 0.0, repo.state.products[productBeer].Stock)
	assert.Len(t, repo.state.txs, 2, "restock plus the write-off survive the removal")
}

func TestRecordSaleDecrementsForSaleRoom(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomShop, 12, costOf(6))

	res, err := svc.RecordSale(context.Background(), testPrincipal, SaleInput{
		ProductID: productBeer, Quantity: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Item.Quantity, "sold-out shelf row is kept at zero")
	assert.Equal(t, 0.0, res.ProductStock)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, TypeSale, res.Transaction.Type)
	assert.Equal(t, roomShop, res.Transaction.RoomID)

	qty, ok := repo.itemQuantity(productBeer, roomShop)
	require.True(t, ok)
	assert.Equal(t, 0.0, qty)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	restock(t, svc, roomShop, 3, costOf(6))

	_, err := svc.RecordSale(context.Background(), testPrincipal, SaleInput{
		ProductID: productBeer, Quantity: 4,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3.0, repo.state.products[productBeer].Stock)
	assert.Len(t, repo.state.txs, 1)
}

func TestIdempotencyReplayRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)

	in := RestockInput{ProductID: productBeer, RoomID: roomMain, Quantity: 5, UnitCost: costOf(3), IdempotencyKey: "k-1"}
	_, err := svc.Restock(context.Background(), testPrincipal, in)
	require.NoError(t, err)

	_, err = svc.Restock(context.Background(), testPrincipal, in)
	require.Error(t, err)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	assert.Len(t, repo.state.txs, 1)
}

func TestIdempotencyKeyReleasedOnFailure(t *testing.T) {
	svc, _, idem := newTestService(t)
	restock(t, svc, roomMain, 5, costOf(6))

	in := TransferInput{ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 50, IdempotencyKey: "k-2"}
	_, err := svc.Transfer(context.Background(), testPrincipal, in)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.False(t, idem.claimed["k-2"], "failed attempt must free the key for retry")

	in.Quantity = 5
	_, err = svc.Transfer(context.Background(), testPrincipal, in)
	assert.NoError(t, err)
}

// Full walk-through: restock into the warehouse, move part to the shelf,
// correct the warehouse count, then verify totals and the ledger.
func TestEngineEndToEnd(t *testing.T) {
	svc, repo, _ := newTestService(t)

	restock(t, svc, roomMain, 100, costOf(6))

	_, err := svc.Transfer(context.Background(), testPrincipal, TransferInput{
		ProductID: productBeer, SourceRoomID: roomMain, DestRoomID: roomShop, Quantity: 40,
	})
	require.NoError(t, err)

	res, err := svc.AdjustQuantity(context.Background(), testPrincipal, AdjustInput{
		ProductID: productBeer, RoomID: roomMain, NewQuantity: 50,
	})
	require.NoError(t, err)

	mainQty, _ := repo.itemQuantity(productBeer, roomMain)
	shopQty, _ := repo.itemQuantity(productBeer, roomShop)
	assert.Equal(t, 50.0, mainQty)
	assert.Equal(t, 40.0, shopQty)
	assert.Equal(t, 90.0, res.ProductStock)
	assert.Equal(t, 90.0, repo.state.products[productBeer].Stock)
	assert.Equal(t, repo.itemSum(productBeer), repo.state.products[productBeer].Stock)

	txs, err := svc.Ledger(context.Background(), testPrincipal, LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 3, "exactly one ledger row per operation")
	assert.Equal(t, TypeAdjustment, txs[0].Type)
	assert.Equal(t, TypeTransfer, txs[1].Type)
	assert.Equal(t, TypeRestock, txs[2].Type)
}
