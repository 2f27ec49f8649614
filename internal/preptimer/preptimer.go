package preptimer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/localstore"
	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/aquamarinepk/aqm"
)

const keyPrefix = "prep."

// Record is the locally observed preparation window of one order. The
// backend does not track preparation timestamps.
type Record struct {
	OrderKey   string     `json:"orderKey"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Minutes    *int       `json:"minutes,omitempty"`
}

// Timer never fails its callers: when storage is unavailable the duration is
// simply unknown.
type Timer struct {
	mu      sync.Mutex
	store   localstore.Store
	metrics *metrics.Registry
	logger  aqm.Logger
	now     func() time.Time
}

func New(store localstore.Store, m *metrics.Registry, logger aqm.Logger) *Timer {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Timer{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func Key(orderKey string) string {
	return keyPrefix + orderKey
}

// MarkPrepStart records the start time only if none exists yet. It reports
// whether a new record was written.
func (t *Timer) MarkPrepStart(ctx context.Context, orderKey string) bool {
	if t == nil || t.store == nil || orderKey == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok, err := t.load(ctx, orderKey); err != nil || ok {
		return false
	}

	rec := Record{OrderKey: orderKey, StartedAt: t.now()}
	if err := t.store.Put(ctx, Key(orderKey), rec); err != nil {
		t.logger.Error("cannot persist prep start", "order_key", orderKey, "error", err)
		return false
	}
	return true
}

// MarkPrepEnd closes the record with the elapsed minutes. The first close
// wins; an order never started has nothing to close.
func (t *Timer) MarkPrepEnd(ctx context.Context, orderKey string) (int, bool) {
	if t == nil || t.store == nil || orderKey == "" {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok, err := t.load(ctx, orderKey)
	if err != nil || !ok {
		return 0, false
	}
	if rec.Minutes != nil {
		return *rec.Minutes, true
	}

	finished := t.now()
	minutes := elapsedMinutes(rec.StartedAt, finished)
	rec.FinishedAt = &finished
	rec.Minutes = &minutes

	if err := t.store.Put(ctx, Key(orderKey), rec); err != nil {
		t.logger.Error("cannot persist prep end", "order_key", orderKey, "error", err)
		return minutes, true
	}
	t.metrics.PrepObserved(minutes)
	return minutes, true
}

// DiscardPrepStart removes a record that was opened but never closed, for a
// start whose status change did not go through.
func (t *Timer) DiscardPrepStart(ctx context.Context, orderKey string) {
	if t == nil || t.store == nil || orderKey == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok, err := t.load(ctx, orderKey)
	if err != nil || !ok || rec.Minutes != nil {
		return
	}
	if err := t.store.Delete(ctx, Key(orderKey)); err != nil {
		t.logger.Error("cannot discard prep start", "order_key", orderKey, "error", err)
	}
}

// MinutesFor returns the final duration, else the running one, else unknown.
func (t *Timer) MinutesFor(ctx context.Context, orderKey string) (int, bool) {
	if t == nil || t.store == nil || orderKey == "" {
		return 0, false
	}
	rec, ok, err := t.load(ctx, orderKey)
	if err != nil || !ok {
		return 0, false
	}
	if rec.Minutes != nil {
		return *rec.Minutes, true
	}
	return elapsedMinutes(rec.StartedAt, t.now()), true
}

func (t *Timer) Record(ctx context.Context, orderKey string) (Record, bool) {
	if t == nil || t.store == nil || orderKey == "" {
		return Record{}, false
	}
	rec, ok, err := t.load(ctx, orderKey)
	if err != nil {
		return Record{}, false
	}
	return rec, ok
}

func (t *Timer) load(ctx context.Context, orderKey string) (Record, bool, error) {
	var rec Record
	err := t.store.Get(ctx, Key(orderKey), &rec)
	if errors.Is(err, localstore.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		t.logger.Debug("prep store unavailable", "order_key", orderKey, "error", err)
		return Record{}, false, err
	}
	return rec, true, nil
}

func elapsedMinutes(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}
