package prefs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/appetiteclub/comanda/internal/localstore"
)

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string, out interface{}) error {
	return errors.New("storage unavailable")
}
func (failingStore) Put(ctx context.Context, key string, value interface{}) error {
	return errors.New("storage unavailable")
}
func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("storage unavailable")
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	p := New(localstore.NewMemoryStore(), nil)

	on, err := p.ToggleFavorite(ctx, Favorite{ID: "10", Name: "Feijoada"})
	if err != nil || !on {
		t.Fatalf("ToggleFavorite() = %v, %v, want true", on, err)
	}
	p.ToggleFavorite(ctx, Favorite{ID: "11", Name: "Moqueca"})

	if !p.IsFavorite(ctx, "10") || !p.IsFavorite(ctx, " 11 ") {
		t.Error("IsFavorite() should report starred dishes")
	}
	if favs := p.Favorites(ctx); len(favs) != 2 || favs[0].ID != "10" {
		t.Errorf("Favorites() = %+v, want insertion order", favs)
	}

	on, err = p.ToggleFavorite(ctx, Favorite{ID: "10"})
	if err != nil || on {
		t.Fatalf("second ToggleFavorite() = %v, %v, want false", on, err)
	}
	if p.IsFavorite(ctx, "10") {
		t.Error("toggled dish should no longer be a favorite")
	}
}

func TestToggleFavoriteRequiresID(t *testing.T) {
	p := New(localstore.NewMemoryStore(), nil)
	if _, err := p.ToggleFavorite(context.Background(), Favorite{Name: "sem id"}); err == nil {
		t.Error("ToggleFavorite() without id should fail")
	}
	if p.IsFavorite(context.Background(), "") {
		t.Error("IsFavorite(\"\") should be false")
	}
}

func TestPushSearch(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  []string
	}{
		{name: "newestFirst", terms: []string{"pizza", "sushi"}, want: []string{"sushi", "pizza"}},
		{name: "dedupeCaseInsensitive", terms: []string{"Pizza", "sushi", "pizza"}, want: []string{"pizza", "sushi"}},
		{name: "blankIgnored", terms: []string{"pizza", "   "}, want: []string{"pizza"}},
		{name: "trimmed", terms: []string{"  açaí "}, want: []string{"açaí"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(localstore.NewMemoryStore(), nil)
			for _, term := range tt.terms {
				if _, err := p.PushSearch(context.Background(), term); err != nil {
					t.Fatalf("PushSearch(%q) error = %v", term, err)
				}
			}
			got := p.RecentSearches(context.Background())
			if len(got) != len(tt.want) {
				t.Fatalf("RecentSearches() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("RecentSearches()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPushSearchKeepsTen(t *testing.T) {
	p := New(localstore.NewMemoryStore(), nil)
	for i := 0; i < 15; i++ {
		p.PushSearch(context.Background(), fmt.Sprintf("termo %d", i))
	}
	got := p.RecentSearches(context.Background())
	if len(got) != recentLimit {
		t.Fatalf("len = %d, want %d", len(got), recentLimit)
	}
	if got[0] != "termo 14" || got[9] != "termo 5" {
		t.Errorf("RecentSearches() = %v", got)
	}
}

func TestStorageFailureDegrades(t *testing.T) {
	ctx := context.Background()
	for name, p := range map[string]*Prefs{"failing": New(failingStore{}, nil), "nilStore": New(nil, nil)} {
		t.Run(name, func(t *testing.T) {
			if favs := p.Favorites(ctx); favs == nil || len(favs) != 0 {
				t.Errorf("Favorites() = %v, want empty", favs)
			}
			if terms := p.RecentSearches(ctx); terms == nil || len(terms) != 0 {
				t.Errorf("RecentSearches() = %v, want empty", terms)
			}
			if _, err := p.ToggleFavorite(ctx, Favorite{ID: "1"}); err == nil {
				t.Error("ToggleFavorite() should report write failure")
			}
		})
	}
}
