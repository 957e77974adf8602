package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/almacen-erp/almacen/internal/shared"
)

// ServiceConfig carries report tunables.
type ServiceConfig struct {
	// DefaultCostRatio prices synthesized placements when no item rows
	// back a positive stock counter. Matches the engine's restock default.
	DefaultCostRatio float64
}

// Service assembles inventory reports. Concurrent requests for the same
// store collapse into one build via singleflight.
type Service struct {
	repo  Repository
	cfg   ServiceConfig
	group singleflight.Group
	now   func() time.Time
}

func NewService(repo Repository, cfg ServiceConfig) *Service {
	if cfg.DefaultCostRatio <= 0 || cfg.DefaultCostRatio > 1 {
		cfg.DefaultCostRatio = 0.6
	}
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// InventoryReport builds the store snapshot.
func (s *Service) InventoryReport(ctx context.Context, p shared.Principal) (InventoryReport, error) {
	key := fmt.Sprintf("inventory:%d", p.StoreID)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.build(ctx, p.StoreID)
	})
	select {
	case <-ctx.Done():
		return InventoryReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return InventoryReport{}, res.Err
		}
		return res.Val.(InventoryReport), nil
	}
}

func (s *Service) build(ctx context.Context, storeID int64) (InventoryReport, error) {
	products, err := s.repo.ListProducts(ctx, storeID)
	if err != nil {
		return InventoryReport{}, err
	}
	items, err := s.repo.ListItems(ctx, storeID)
	if err != nil {
		return InventoryReport{}, err
	}

	byProduct := make(map[int64][]RoomStat, len(products))
	for _, it := range items {
		byProduct[it.ProductID] = append(byProduct[it.ProductID], RoomStat{
			RoomID:   it.RoomID,
			RoomName: it.RoomName,
			Quantity: it.Quantity,
			AvgCost:  it.AvgCost,
		})
	}

	// The first room is resolved lazily: most stores never need synthesis.
	var firstRoom *RoomRef

	report := InventoryReport{StoreID: storeID, GeneratedAt: s.now().UTC()}
	for _, p := range products {
		line := ProductStats{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Price:     p.Price,
			Stock:     p.Stock,
			Rooms:     byProduct[p.ID],
		}

		// Synthesis is a store-level fallback for data that predates the
		// engine: once any item row exists, counters without placements
		// render as-is instead of inventing one.
		if len(items) == 0 && p.Stock > 0 {
			if firstRoom == nil {
				ref, err := s.repo.FirstRoom(ctx, storeID)
				if err != nil {
					return InventoryReport{}, err
				}
				firstRoom = &ref
			}
			line.Rooms = []RoomStat{{
				RoomID:   firstRoom.ID,
				RoomName: firstRoom.Name,
				Quantity: p.Stock,
				AvgCost:  s.cfg.DefaultCostRatio * p.Price,
			}}
			line.Synthesized = true
		}

		for _, room := range line.Rooms {
			line.EstimatedCost += room.Quantity * room.AvgCost
		}
		line.EstimatedValue = p.Stock * p.Price

		report.Totals.Products++
		report.Totals.Stock += p.Stock
		report.Totals.EstimatedCost += line.EstimatedCost
		report.Totals.EstimatedValue += line.EstimatedValue
		report.Products = append(report.Products, line)
	}
	if report.Products == nil {
		report.Products = []ProductStats{}
	}
	return report, nil
}
