package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/comanda/cmd/utils/internal/seeding"
	"github.com/appetiteclub/comanda/internal/localstore"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/internal/submission"
	"github.com/aquamarinepk/aqm"
)

const demoSeedKey = "utils.seeds.demo_orders_v1"

type seedMark struct {
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"appliedAt"`
	OrderIDs    []string  `json:"orderIds"`
}

// SeedDemo creates demo orders on the backend through the submission
// pipeline. The local store remembers that the seed ran.
func SeedDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting demo seeding process...")

	orders, err := order.NewOrderDataAccess(config, logger)
	if err != nil {
		return fmt.Errorf("setup orders backend: %w", err)
	}

	store, err := openStore(ctx, config, logger)
	if err != nil {
		return err
	}
	defer store.Stop(ctx)

	var mark seedMark
	err = store.Get(ctx, demoSeedKey, &mark)
	switch {
	case err == nil:
		logger.Info("Order demo seeds already applied, skipping", "applied_at", mark.AppliedAt)
		return nil
	case !errors.Is(err, localstore.ErrNotFound):
		return fmt.Errorf("check seed status: %w", err)
	}

	pipeline := submission.NewPipeline(orders, nil, nil, logger)
	ids, err := seeding.SeedOrders(ctx, orders, pipeline, orders, logger)
	if err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}

	mark = seedMark{
		Description: "Create demo orders spread across every board column",
		AppliedAt:   time.Now(),
		OrderIDs:    ids,
	}
	if err := store.Put(ctx, demoSeedKey, mark); err != nil {
		logger.Infof("Failed to mark seed as applied: %v", err)
	}

	logger.Info("Order demo seeds applied successfully", "orders", len(ids))
	return nil
}

func openStore(ctx context.Context, config *aqm.Config, logger aqm.Logger) (localstore.Driver, error) {
	store, err := localstore.Open(config, logger)
	if err != nil {
		return nil, fmt.Errorf("setup local store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return nil, fmt.Errorf("start local store: %w", err)
	}
	return store, nil
}
