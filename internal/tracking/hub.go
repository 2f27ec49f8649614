package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
)

const defaultSeedTTL = 6 * time.Hour

type hubEntry struct {
	session *Session
	refs    int
}

// checkout data carried to the tracker: the finalized order and the
// shipping fee shown to the customer
type seedEntry struct {
	order    order.Order
	fee      *decimal.Decimal
	storedAt time.Time
}

// Hub shares one session per order among all connected trackers. A session
// starts with its first subscriber and stops with its last.
type Hub struct {
	fetcher      Fetcher
	push         PushSource
	pollInterval time.Duration
	seedTTL      time.Duration
	subject      string
	metrics      *metrics.Registry
	logger       aqm.Logger

	mu       sync.Mutex
	ctx      context.Context
	sessions map[string]*hubEntry
	seeds    map[string]seedEntry
	now      func() time.Time
}

func NewHub(fetcher Fetcher, push PushSource, config *aqm.Config, m *metrics.Registry, logger aqm.Logger) *Hub {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	h := &Hub{
		fetcher:      fetcher,
		push:         push,
		pollInterval: defaultPollInterval,
		seedTTL:      defaultSeedTTL,
		subject:      event.TrackingTopicPrefix,
		metrics:      m,
		logger:       logger,
		ctx:          context.Background(),
		sessions:     make(map[string]*hubEntry),
		seeds:        make(map[string]seedEntry),
		now:          time.Now,
	}

	if config != nil {
		if v, ok := config.GetString("tracking.poll.interval"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				h.pollInterval = d
			} else {
				logger.Error("invalid tracking.poll.interval, using default", "value", v)
			}
		}
		if v, ok := config.GetString("tracking.push.subject"); ok && v != "" {
			h.subject = v
		}
		if v, ok := config.GetString("tracking.seed.ttl"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				h.seedTTL = d
			} else {
				logger.Error("invalid tracking.seed.ttl, using default", "value", v)
			}
		}
	}

	return h
}

func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = context.WithoutCancel(ctx)
	h.mu.Unlock()

	mode := "push+poll"
	if h.push == nil {
		mode = "poll"
	}
	h.logger.Info("tracking hub started", "mode", mode, "poll_interval", h.pollInterval)
	return nil
}

func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	entries := h.sessions
	h.sessions = make(map[string]*hubEntry)
	h.mu.Unlock()

	for _, e := range entries {
		e.session.Stop()
	}
	h.logger.Info("tracking hub stopped", "sessions", len(entries))
	return nil
}

// Acquire returns the running session for the order, starting one if needed.
// Each Acquire must be paired with a Release.
func (h *Hub) Acquire(orderID string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.sessions[orderID]; ok {
		e.refs++
		return e.session, nil
	}

	cfg := SessionConfig{PollInterval: h.pollInterval, SubjectPrefix: h.subject}
	seed, seeded := h.seeds[orderID]
	if seeded && seed.fee != nil {
		f := *seed.fee
		cfg.ShippingFee = &f
	}

	s := NewSession(orderID, h.fetcher, h.push, cfg, h.metrics, h.logger)
	if seeded {
		s.Seed(seed.order)
	}
	if err := s.Start(h.ctx); err != nil {
		return nil, fmt.Errorf("start tracking %s: %w", orderID, err)
	}
	h.sessions[orderID] = &hubEntry{session: s, refs: 1}
	return s, nil
}

func (h *Hub) Release(orderID string) {
	h.mu.Lock()
	e, ok := h.sessions[orderID]
	if !ok {
		h.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, orderID)
	h.mu.Unlock()

	e.session.Stop()
}

// Seed records what checkout knows about a new order: the finalized order
// and the shipping fee shown to the customer. Seeds of untracked orders are
// dropped once older than the seed TTL.
func (h *Hub) Seed(o order.Order, shippingFee *decimal.Decimal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.pruneSeedsLocked(now)

	entry := seedEntry{order: o.Clone(), storedAt: now}
	if shippingFee != nil {
		f := *shippingFee
		entry.fee = &f
	}
	h.seeds[o.ID] = entry
	if e, ok := h.sessions[o.ID]; ok {
		e.session.Seed(o)
	}
}

func (h *Hub) pruneSeedsLocked(now time.Time) {
	for id, seed := range h.seeds {
		if _, live := h.sessions[id]; live {
			continue
		}
		if now.Sub(seed.storedAt) > h.seedTTL {
			delete(h.seeds, id)
		}
	}
}

// Seeded returns the number of checkout seeds held.
func (h *Hub) Seeded() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seeds)
}

// Snapshot returns the latest known state of the order, fetching it once
// when nobody is tracking it.
func (h *Hub) Snapshot(ctx context.Context, orderID string) (State, error) {
	h.mu.Lock()
	e, live := h.sessions[orderID]
	seed, seeded := h.seeds[orderID]
	h.mu.Unlock()

	if live {
		if st, ok := e.session.Latest(); ok {
			return st, nil
		}
	}

	feePtr := seed.fee

	if h.fetcher == nil {
		if seeded {
			return FromOrder(seed.order, feePtr), nil
		}
		return State{}, fmt.Errorf("tracking fetcher not configured")
	}

	o, err := h.fetcher.Get(ctx, orderID)
	if err != nil {
		if seeded {
			h.logger.Debug("tracking fetch failed, using checkout state", "order_id", orderID, "error", err)
			return FromOrder(seed.order, feePtr), nil
		}
		return State{}, err
	}
	if o.Items == nil && seeded {
		o.Items = seed.order.Items
	}
	return FromOrder(o, feePtr), nil
}

// ConfirmDelivery confirms through the order's session so every connected
// tracker sees the change at once.
func (h *Hub) ConfirmDelivery(ctx context.Context, orderID string) (State, error) {
	s, err := h.Acquire(orderID)
	if err != nil {
		return State{}, err
	}
	defer h.Release(orderID)
	return s.ConfirmDelivery(ctx)
}

// Active returns the number of running sessions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
