package seeding

import (
	"context"
	"fmt"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/internal/submission"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
)

type DishLookup interface {
	GetDish(ctx context.Context, id int64) (order.Dish, error)
}

type Submitter interface {
	Submit(ctx context.Context, cart submission.Cart) (submission.Result, error)
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error
}

type DemoLine struct {
	DishID   int64
	Quantity int
}

// DemoOrder is a cart plus the status it should end in, so every board
// column and the courier pool get something to show.
type DemoOrder struct {
	Client  string
	Address string
	Fee     string
	Lines   []DemoLine
	Target  orderstatus.Status
}

func DemoOrders() []DemoOrder {
	return []DemoOrder{
		{Client: "Ana", Address: "Rua das Flores, 10", Fee: "7.50", Lines: []DemoLine{{1, 2}, {3, 1}}, Target: orderstatus.Statuses.Received},
		{Client: "Bruno", Address: "Av. Brasil, 455", Fee: "5.00", Lines: []DemoLine{{2, 1}}, Target: orderstatus.Statuses.Received},
		{Client: "Carla", Address: "Rua XV de Novembro, 88", Fee: "7.50", Lines: []DemoLine{{4, 1}, {5, 2}}, Target: orderstatus.Statuses.InPreparation},
		{Client: "Diego", Address: "Travessa do Comércio, 3", Fee: "10.00", Lines: []DemoLine{{1, 1}}, Target: orderstatus.Statuses.Ready},
		{Client: "Elaine", Address: "Rua Augusta, 1200", Fee: "10.00", Lines: []DemoLine{{3, 3}}, Target: orderstatus.Statuses.Ready},
		{Client: "Fábio", Address: "Rua da Praia, 21", Fee: "5.00", Lines: []DemoLine{{2, 2}, {4, 1}}, Target: orderstatus.Statuses.OnTheWay},
		{Client: "Gabi", Address: "Alameda Santos, 700", Fee: "7.50", Lines: []DemoLine{{5, 1}}, Target: orderstatus.Statuses.Delivered},
	}
}

// path is the chain of statuses the kitchen walks from RECEIVED to target.
var path = []orderstatus.Status{
	orderstatus.Statuses.InPreparation,
	orderstatus.Statuses.Ready,
	orderstatus.Statuses.OnTheWay,
	orderstatus.Statuses.Delivered,
}

// SeedOrders submits every demo order through the pipeline and advances it
// to its target status. It returns the created order ids.
func SeedOrders(ctx context.Context, dishes DishLookup, pipeline Submitter, updater StatusUpdater, logger aqm.Logger) ([]string, error) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	cache := map[int64]order.Dish{}
	var ids []string

	for i, demo := range DemoOrders() {
		cart := submission.Cart{
			Client:  &order.ClientRef{Name: demo.Client},
			Address: demo.Address,
		}
		if demo.Fee != "" {
			fee := decimal.RequireFromString(demo.Fee)
			cart.DeliveryFee = &fee
		}

		for _, l := range demo.Lines {
			dish, ok := cache[l.DishID]
			if !ok {
				d, err := dishes.GetDish(ctx, l.DishID)
				if err != nil {
					return ids, fmt.Errorf("demo order %d: %w", i+1, err)
				}
				cache[l.DishID] = d
				dish = d
			}
			cart.Lines = append(cart.Lines, submission.CartLine{
				DishID:   l.DishID,
				Name:     dish.Name,
				Quantity: l.Quantity,
				Price:    dish.Price,
			})
		}

		res, err := pipeline.Submit(ctx, cart)
		if err != nil {
			return ids, fmt.Errorf("demo order %d: %w", i+1, err)
		}
		ids = append(ids, res.Order.ID)

		if err := advance(ctx, updater, res.Order.ID, res.Order.Status, demo.Target); err != nil {
			return ids, fmt.Errorf("demo order %d: %w", i+1, err)
		}
		logger.Info("demo order created", "order_id", res.Order.ID, "client", demo.Client, "status", demo.Target.Code())
	}

	return ids, nil
}

func advance(ctx context.Context, updater StatusUpdater, orderID string, current, target orderstatus.Status) error {
	for _, next := range path {
		if current == target {
			return nil
		}
		if !orderstatus.CanTransition(current, next) {
			continue
		}
		if err := updater.UpdateStatus(ctx, orderID, next); err != nil {
			return fmt.Errorf("advance %s to %s: %w", orderID, next.Code(), err)
		}
		current = next
	}
	if current != target {
		return fmt.Errorf("cannot reach %s from %s", target.Code(), current.Code())
	}
	return nil
}
