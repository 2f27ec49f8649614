package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/appetiteclub/comanda/internal/localstore"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
)

const (
	FavoritesKey      = "app:favorites"
	RecentSearchesKey = "recentSearches"
	recentLimit       = 10
)

// Favorite is a dish snapshot as the customer saw it when starring it.
type Favorite struct {
	ID       string           `json:"id"`
	Name     string           `json:"name,omitempty"`
	Category string           `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Prefs holds customer preferences in the local store. Reads degrade to
// empty lists; writes report errors.
type Prefs struct {
	mu     sync.Mutex
	store  localstore.Store
	logger aqm.Logger
}

func New(store localstore.Store, logger aqm.Logger) *Prefs {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Prefs{store: store, logger: logger}
}

func (p *Prefs) Favorites(ctx context.Context) []Favorite {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.favoritesLocked(ctx)
}

func (p *Prefs) IsFavorite(ctx context.Context, id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	for _, f := range p.Favorites(ctx) {
		if f.ID == id {
			return true
		}
	}
	return false
}

// ToggleFavorite adds the dish, or removes it when already starred. It
// reports whether the dish is a favorite afterwards.
func (p *Prefs) ToggleFavorite(ctx context.Context, fav Favorite) (bool, error) {
	fav.ID = strings.TrimSpace(fav.ID)
	if fav.ID == "" {
		return false, fmt.Errorf("favorite id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.favoritesLocked(ctx)
	next := make([]Favorite, 0, len(current)+1)
	removed := false
	for _, f := range current {
		if f.ID == fav.ID {
			removed = true
			continue
		}
		next = append(next, f)
	}
	if !removed {
		next = append(next, fav)
	}

	if err := p.put(ctx, FavoritesKey, next); err != nil {
		return removed, err
	}
	return !removed, nil
}

func (p *Prefs) RecentSearches(ctx context.Context) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searchesLocked(ctx)
}

// PushSearch records a term as the most recent one. Blank terms are ignored.
func (p *Prefs) PushSearch(ctx context.Context, term string) ([]string, error) {
	term = strings.TrimSpace(term)

	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.searchesLocked(ctx)
	if term == "" {
		return current, nil
	}

	next := []string{term}
	for _, s := range current {
		if strings.EqualFold(s, term) {
			continue
		}
		next = append(next, s)
	}
	if len(next) > recentLimit {
		next = next[:recentLimit]
	}

	if err := p.put(ctx, RecentSearchesKey, next); err != nil {
		return current, err
	}
	return next, nil
}

func (p *Prefs) favoritesLocked(ctx context.Context) []Favorite {
	var favs []Favorite
	if !p.get(ctx, FavoritesKey, &favs) || favs == nil {
		return []Favorite{}
	}
	return favs
}

func (p *Prefs) searchesLocked(ctx context.Context) []string {
	var terms []string
	if !p.get(ctx, RecentSearchesKey, &terms) || terms == nil {
		return []string{}
	}
	return terms
}

func (p *Prefs) get(ctx context.Context, key string, out interface{}) bool {
	if p.store == nil {
		return false
	}
	if err := p.store.Get(ctx, key, out); err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			p.logger.Error("cannot read preferences", "key", key, "error", err)
		}
		return false
	}
	return true
}

func (p *Prefs) put(ctx context.Context, key string, value interface{}) error {
	if p.store == nil {
		return fmt.Errorf("local store not configured")
	}
	if err := p.store.Put(ctx, key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
