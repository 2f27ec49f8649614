package preptimer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/appetiteclub/comanda/internal/localstore"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTimer(store localstore.Store) (*Timer, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	timer := New(store, nil, nil)
	timer.now = clock.now
	return timer, clock
}

// failingStore simulates unavailable local storage.
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

func TestMarkPrepStartIsIdempotent(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTestTimer(localstore.NewMemoryStore())

	if !timer.MarkPrepStart(ctx, "5") {
		t.Fatal("first MarkPrepStart() should record")
	}
	first, _ := timer.Record(ctx, "5")

	clock.advance(3 * time.Minute)
	if timer.MarkPrepStart(ctx, "5") {
		t.Error("second MarkPrepStart() should not record")
	}

	second, ok := timer.Record(ctx, "5")
	if !ok {
		t.Fatal("Record() missing after start")
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Errorf("StartedAt changed from %v to %v", first.StartedAt, second.StartedAt)
	}
}

func TestMarkPrepEnd(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTestTimer(localstore.NewMemoryStore())

	if _, ok := timer.MarkPrepEnd(ctx, "5"); ok {
		t.Error("MarkPrepEnd() without a start should report unknown")
	}

	timer.MarkPrepStart(ctx, "5")
	clock.advance(12*time.Minute + 40*time.Second)

	minutes, ok := timer.MarkPrepEnd(ctx, "5")
	if !ok || minutes != 12 {
		t.Fatalf("MarkPrepEnd() = %d, %v; want 12, true", minutes, ok)
	}

	clock.advance(10 * time.Minute)
	again, _ := timer.MarkPrepEnd(ctx, "5")
	if again != 12 {
		t.Errorf("second MarkPrepEnd() = %d, want first close to win", again)
	}
}

func TestDiscardPrepStart(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTestTimer(localstore.NewMemoryStore())

	timer.MarkPrepStart(ctx, "5")
	timer.DiscardPrepStart(ctx, "5")
	if _, ok := timer.Record(ctx, "5"); ok {
		t.Fatal("open record should be discarded")
	}

	clock.advance(5 * time.Minute)
	if !timer.MarkPrepStart(ctx, "5") {
		t.Error("MarkPrepStart() after discard should record again")
	}

	clock.advance(4 * time.Minute)
	timer.MarkPrepEnd(ctx, "5")
	timer.DiscardPrepStart(ctx, "5")
	if minutes, ok := timer.MinutesFor(ctx, "5"); !ok || minutes != 4 {
		t.Errorf("MinutesFor() = %d, %v; closed record should survive discard", minutes, ok)
	}
}

func TestMinutesFor(t *testing.T) {
	ctx := context.Background()
	timer, clock := newTestTimer(localstore.NewMemoryStore())

	if _, ok := timer.MinutesFor(ctx, "7"); ok {
		t.Error("MinutesFor() on a never started order should be unknown")
	}

	timer.MarkPrepStart(ctx, "7")
	clock.advance(4 * time.Minute)
	if m, ok := timer.MinutesFor(ctx, "7"); !ok || m != 4 {
		t.Errorf("running MinutesFor() = %d, %v; want 4, true", m, ok)
	}

	clock.advance(2 * time.Minute)
	timer.MarkPrepEnd(ctx, "7")
	clock.advance(30 * time.Minute)
	if m, ok := timer.MinutesFor(ctx, "7"); !ok || m != 6 {
		t.Errorf("final MinutesFor() = %d, %v; want 6, true", m, ok)
	}
}

func TestTimerDegradesWithoutStorage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		timer *Timer
	}{
		{name: "failingStore", timer: New(failingStore{}, nil, nil)},
		{name: "nilStore", timer: New(nil, nil, nil)},
		{name: "nilTimer", timer: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timer.MarkPrepStart(ctx, "1") {
				t.Error("MarkPrepStart() should not report success")
			}
			if _, ok := tt.timer.MarkPrepEnd(ctx, "1"); ok {
				t.Error("MarkPrepEnd() should be unknown")
			}
			if _, ok := tt.timer.MinutesFor(ctx, "1"); ok {
				t.Error("MinutesFor() should be unknown")
			}
		})
	}
}
