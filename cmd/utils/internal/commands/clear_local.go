package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/comanda/internal/courier"
	"github.com/appetiteclub/comanda/internal/localstore"
	"github.com/appetiteclub/comanda/internal/prefs"
	"github.com/appetiteclub/comanda/internal/preptimer"
	"github.com/aquamarinepk/aqm"
)

// localPrefixes covers every key the service writes to the local store.
var localPrefixes = []string{
	preptimer.Key(""),
	courier.HistoryKey,
	prefs.FavoritesKey,
	prefs.RecentSearchesKey,
	"utils.seeds.",
}

// ClearLocal wipes UI-derived data: prep records, courier history, customer
// preferences and seed marks. Backend orders are untouched.
func ClearLocal(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	logger.Info("Starting local data cleanup...")

	store, err := openStore(ctx, config, logger)
	if err != nil {
		return err
	}
	defer store.Stop(ctx)

	removed, err := clearPrefixes(ctx, store, localPrefixes)
	if err != nil {
		return err
	}

	logger.Info("Local data cleared", "keys", removed)
	return nil
}

type keyStore interface {
	localstore.Store
	localstore.Lister
}

func clearPrefixes(ctx context.Context, store keyStore, prefixes []string) (int, error) {
	removed := 0
	for _, prefix := range prefixes {
		keys, err := store.Keys(ctx, prefix)
		if err != nil {
			return removed, fmt.Errorf("list keys %q: %w", prefix, err)
		}
		for _, key := range keys {
			if err := store.Delete(ctx, key); err != nil {
				return removed, fmt.Errorf("delete %s: %w", key, err)
			}
			removed++
		}
	}
	return removed, nil
}
