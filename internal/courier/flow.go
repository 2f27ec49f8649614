package courier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/announce"
	"github.com/appetiteclub/comanda/internal/localstore"
	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/aquamarinepk/aqm"
)

const (
	// HistoryKey holds the recent deliveries, newest first.
	HistoryKey   = "motoboy.recentDeliveries"
	historyLimit = 20

	announceSource = "courier"
)

var (
	ErrNotAccepted = errors.New("order not accepted by this courier")
	ErrFinishing   = errors.New("delivery is already being finished")
)

type Backend interface {
	ListByStatus(ctx context.Context, statuses ...orderstatus.Status) ([]order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error
}

type Stage string

const (
	StageAccepted Stage = "ACCEPTED"
	StageOnRoute  Stage = "ON_ROUTE"
)

// Delivery is an order the courier has taken. It exists only in this
// process until finished or cancelled.
type Delivery struct {
	Order      order.Order `json:"order"`
	Stage      Stage       `json:"stage"`
	AssignedAt time.Time   `json:"assignedAt"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
}

type HistoryEntry struct {
	OrderID       string    `json:"orderId"`
	DisplayNumber string    `json:"displayNumber"`
	Address       string    `json:"address,omitempty"`
	Total         string    `json:"total"`
	DeliveredAt   time.Time `json:"deliveredAt"`
}

// Flow is the courier's view: a pool of READY orders and the deliveries
// taken from it. Only finishing a delivery reaches the backend.
type Flow struct {
	mu        sync.Mutex
	available []order.Order
	active    []Delivery
	finishing map[string]bool

	backend   Backend
	store     localstore.Store
	announcer *announce.Announcer
	metrics   *metrics.Registry
	logger    aqm.Logger
	now       func() time.Time
}

func NewFlow(backend Backend, store localstore.Store, announcer *announce.Announcer, m *metrics.Registry, logger aqm.Logger) *Flow {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Flow{
		backend:   backend,
		store:     store,
		announcer: announcer,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh reloads the pool with READY orders not already taken.
func (f *Flow) Refresh(ctx context.Context) error {
	if f.backend == nil {
		return fmt.Errorf("courier backend not configured")
	}

	orders, err := f.backend.ListByStatus(ctx, orderstatus.Statuses.Ready)
	if err != nil {
		return fmt.Errorf("refresh available orders: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	pool := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		// the list endpoint may ignore the filter
		if o.Status != orderstatus.Statuses.Ready || f.activeIndexLocked(o.ID) >= 0 {
			continue
		}
		pool = append(pool, o.Clone())
	}
	sortByCreation(pool)
	f.available = pool
	return nil
}

func (f *Flow) Available() []order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]order.Order, len(f.available))
	for i, o := range f.available {
		out[i] = o.Clone()
	}
	return out
}

func (f *Flow) Active() []Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Delivery, len(f.active))
	for i, d := range f.active {
		d.Order = d.Order.Clone()
		out[i] = d
	}
	return out
}

// Accept takes an order from the pool. Nothing is sent to the backend.
func (f *Flow) Accept(orderID string) (Delivery, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := indexOf(f.available, orderID)
	if idx < 0 {
		return Delivery{}, false
	}

	d := Delivery{Order: f.available[idx].Clone(), Stage: StageAccepted, AssignedAt: f.now()}
	f.available = removeAt(f.available, idx)
	f.active = append(append([]Delivery(nil), f.active...), d)

	f.logger.Info("delivery accepted", "order_id", orderID)
	return d, true
}

// Start marks an accepted delivery as on route, locally.
func (f *Flow) Start(orderID string) (Delivery, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.activeIndexLocked(orderID)
	if idx < 0 {
		return Delivery{}, false
	}

	active := append([]Delivery(nil), f.active...)
	if active[idx].Stage != StageOnRoute {
		now := f.now()
		active[idx].Stage = StageOnRoute
		active[idx].StartedAt = &now
	}
	f.active = active
	return active[idx], true
}

// Cancel gives a delivery back to the pool. Nothing is sent to the backend
// because acceptance was never persisted.
func (f *Flow) Cancel(orderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.activeIndexLocked(orderID)
	if idx < 0 || f.finishing[orderID] {
		return false
	}

	d := f.active[idx]
	f.active = removeDeliveryAt(f.active, idx)

	pool := append(append([]order.Order(nil), f.available...), d.Order)
	sortByCreation(pool)
	f.available = pool

	f.logger.Info("delivery cancelled", "order_id", orderID)
	return true
}

// Drop forgets an order everywhere, e.g. after it was cancelled elsewhere.
func (f *Flow) Drop(orderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	dropped := false
	if idx := indexOf(f.available, orderID); idx >= 0 {
		f.available = removeAt(f.available, idx)
		dropped = true
	}
	if idx := f.activeIndexLocked(orderID); idx >= 0 {
		f.active = removeDeliveryAt(f.active, idx)
		dropped = true
	}
	return dropped
}

func (f *Flow) dropAvailable(orderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if idx := indexOf(f.available, orderID); idx >= 0 {
		f.available = removeAt(f.available, idx)
	}
}

// Finish persists the delivery. On failure the delivery stays active so the
// courier can retry.
func (f *Flow) Finish(ctx context.Context, orderID string) (HistoryEntry, error) {
	f.mu.Lock()
	idx := f.activeIndexLocked(orderID)
	if idx < 0 {
		f.mu.Unlock()
		return HistoryEntry{}, fmt.Errorf("finish %s: %w", orderID, ErrNotAccepted)
	}
	if f.finishing[orderID] {
		f.mu.Unlock()
		return HistoryEntry{}, fmt.Errorf("finish %s: %w", orderID, ErrFinishing)
	}
	if f.finishing == nil {
		f.finishing = make(map[string]bool)
	}
	f.finishing[orderID] = true
	d := f.active[idx]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		delete(f.finishing, orderID)
		f.mu.Unlock()
	}()

	if f.backend == nil {
		return HistoryEntry{}, fmt.Errorf("courier backend not configured")
	}

	delivered := orderstatus.Statuses.Delivered
	if err := f.backend.UpdateStatus(ctx, orderID, delivered); err != nil {
		f.metrics.CourierFinish("failed")
		f.logger.Error("cannot finish delivery", "order_id", orderID, "error", err)
		return HistoryEntry{}, fmt.Errorf("finish %s: %w", orderID, err)
	}

	now := f.now()
	f.mu.Lock()
	if i := f.activeIndexLocked(orderID); i >= 0 {
		f.active = removeDeliveryAt(f.active, i)
	}
	f.mu.Unlock()

	prev := d.Order.Status
	d.Order.Status = delivered
	d.Order.DeliveredAt = &now
	d.Order.UpdatedAt = &now

	entry := HistoryEntry{
		OrderID:       d.Order.ID,
		DisplayNumber: d.Order.DisplayNumber(),
		Address:       d.Order.Destination.Address,
		Total:         d.Order.Total(nil).StringFixed(2),
		DeliveredAt:   now,
	}
	f.remember(ctx, entry)

	f.metrics.CourierFinish("ok")
	f.logger.Info("delivery finished", "order_id", orderID)
	f.announcer.StatusChanged(ctx, d.Order, prev, announceSource)
	return entry, nil
}

// History returns recent deliveries, newest first. Storage problems yield an
// empty history.
func (f *Flow) History(ctx context.Context) []HistoryEntry {
	if f.store == nil {
		return []HistoryEntry{}
	}
	var entries []HistoryEntry
	if err := f.store.Get(ctx, HistoryKey, &entries); err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			f.logger.Error("cannot read delivery history", "error", err)
		}
		return []HistoryEntry{}
	}
	return entries
}

func (f *Flow) remember(ctx context.Context, entry HistoryEntry) {
	if f.store == nil {
		return
	}
	entries := []HistoryEntry{entry}
	for _, e := range f.History(ctx) {
		if e.OrderID == entry.OrderID {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}
	if err := f.store.Put(ctx, HistoryKey, entries); err != nil {
		f.logger.Error("cannot persist delivery history", "error", err)
	}
}

func (f *Flow) activeIndexLocked(orderID string) int {
	for i, d := range f.active {
		if d.Order.ID == orderID {
			return i
		}
	}
	return -1
}

func indexOf(orders []order.Order, orderID string) int {
	for i, o := range orders {
		if o.ID == orderID {
			return i
		}
	}
	return -1
}

func removeAt(orders []order.Order, idx int) []order.Order {
	out := make([]order.Order, 0, len(orders)-1)
	out = append(out, orders[:idx]...)
	return append(out, orders[idx+1:]...)
}

func removeDeliveryAt(ds []Delivery, idx int) []Delivery {
	out := make([]Delivery, 0, len(ds)-1)
	out = append(out, ds[:idx]...)
	return append(out, ds[idx+1:]...)
}

func sortByCreation(orders []order.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i].CreatedAt, orders[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
