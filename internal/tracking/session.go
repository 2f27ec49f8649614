package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/shopspring/decimal"
)

const (
	defaultPollInterval = 8 * time.Second
	initialBackoff      = 1 * time.Second
	maxBackoff          = 30 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("tracking session already started")
	ErrStopped        = errors.New("tracking session stopped")
)

// Fetcher reads and updates single orders on the backend.
type Fetcher interface {
	Get(ctx context.Context, id string) (order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error
}

// PushSource delivers best-effort per-order messages.
type PushSource interface {
	Subscribe(ctx context.Context, subject string, handler events.HandlerFunc) error
	Connected() bool
}

type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseConnecting   Phase = "CONNECTING"
	PhaseLive         Phase = "LIVE"
	PhaseReconnecting Phase = "RECONNECTING"
	PhaseStopped      Phase = "STOPPED"
)

type SessionConfig struct {
	PollInterval  time.Duration
	SubjectPrefix string
	ShippingFee   *decimal.Decimal
}

// Session follows one order. Push messages and polling results are merged
// into a single latest state; subscribers only ever see that state.
// While push is live polling pauses; it resumes whenever push is down.
type Session struct {
	orderID string
	fetcher Fetcher
	push    PushSource
	cfg     SessionConfig
	metrics *metrics.Registry
	logger  aqm.Logger
	now     func() time.Time

	mu          sync.Mutex
	phase       Phase
	state       State
	hasState    bool
	subscribed  bool
	subscribers map[string]chan State
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewSession(orderID string, fetcher Fetcher, push PushSource, cfg SessionConfig, m *metrics.Registry, logger aqm.Logger) *Session {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = event.TrackingTopicPrefix
	}
	return &Session{
		orderID:     orderID,
		fetcher:     fetcher,
		push:        push,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With("order_id", orderID),
		now:         time.Now,
		phase:       PhaseIdle,
		state:       State{Order: order.Order{ID: orderID}, ShippingFee: cfg.ShippingFee},
		subscribers: make(map[string]chan State),
		done:        make(chan struct{}),
	}
}

func (s *Session) OrderID() string {
	return s.orderID
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start runs the session in the background. The session outlives ctx; only
// Stop ends it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.phase = PhaseConnecting
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	s.metrics.SessionStarted()
	s.logger.Debug("tracking session started")
	go s.run(runCtx)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	s.poll(ctx)

	backoff := initialBackoff
	var retry <-chan time.Time
	if !s.subscribe(ctx) && s.push != nil {
		retry = time.After(backoff)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-retry:
			if s.subscribe(ctx) {
				retry = nil
				backoff = initialBackoff
				continue
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			s.logger.Debug("push subscribe failed", "retry_in", backoff)
			retry = time.After(backoff)

		case <-ticker.C:
			if s.refreshPhase() != PhaseLive {
				s.poll(ctx)
			}
		}
	}
}

// subscribe reports whether the push subscription is in place.
func (s *Session) subscribe(ctx context.Context) bool {
	if s.push == nil {
		s.setPhase(PhaseReconnecting)
		return false
	}

	subject := event.TrackingSubject(s.cfg.SubjectPrefix, s.orderID)
	if err := s.push.Subscribe(ctx, subject, s.handlePush); err != nil {
		s.logger.Info("push channel unavailable, polling", "subject", subject, "error", err)
		s.setPhase(PhaseReconnecting)
		return false
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	s.refreshPhase()
	return true
}

// refreshPhase moves between LIVE and RECONNECTING following the push
// connection. The broker client restores subscriptions after a reconnect.
func (s *Session) refreshPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseStopped {
		return s.phase
	}
	if s.subscribed && s.push.Connected() {
		if s.phase != PhaseLive {
			s.logger.Debug("push channel live")
		}
		s.phase = PhaseLive
	} else {
		s.phase = PhaseReconnecting
	}
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseStopped {
		s.phase = p
	}
}

func (s *Session) handlePush(ctx context.Context, data []byte) error {
	u, err := decodePush(data)
	if err != nil {
		s.logger.Error("invalid tracking payload", "error", err)
		return nil
	}
	if u.order.ID != "" && u.order.ID != s.orderID {
		return nil
	}
	s.apply(u)
	return nil
}

// poll fetches the order once. The request is not aborted by Stop; its
// result is discarded instead.
func (s *Session) poll(ctx context.Context) {
	if s.fetcher == nil {
		return
	}
	o, err := s.fetcher.Get(context.WithoutCancel(ctx), s.orderID)
	if err != nil {
		s.metrics.TrackingPollError()
		s.logger.Debug("tracking poll failed", "error", err)
		return
	}
	s.apply(fromFetch("poll", o))
}

// Seed applies a full order obtained elsewhere, e.g. right after checkout.
func (s *Session) Seed(o order.Order) {
	s.apply(fromFetch("seed", o))
}

func (s *Session) apply(u update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseStopped {
		s.metrics.TrackingUpdate(u.source, "discarded")
		return false
	}

	next, ok := merge(s.state, s.hasState, u)
	if !ok {
		s.metrics.TrackingUpdate(u.source, "stale")
		return false
	}
	next.ShippingFee = s.cfg.ShippingFee
	s.state = next
	s.hasState = true
	s.metrics.TrackingUpdate(u.source, "applied")

	for _, ch := range s.subscribers {
		offer(ch, next)
	}
	return true
}

// offer replaces any undelivered state with the newer one.
func offer(ch chan State, st State) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

// Latest returns the current state and whether any payload was applied yet.
func (s *Session) Latest() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Order = st.Order.Clone()
	return st, s.hasState
}

// Subscribe returns a channel receiving the latest state. Undelivered
// states are replaced, never queued. The channel is closed on Stop.
func (s *Session) Subscribe(subscriberID string) <-chan State {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan State, 1)
	if s.phase == PhaseStopped {
		close(ch)
		return ch
	}
	if s.hasState {
		ch <- s.state
	}
	s.subscribers[subscriberID] = ch
	return ch
}

func (s *Session) Unsubscribe(subscriberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[subscriberID]; ok {
		close(ch)
		delete(s.subscribers, subscriberID)
	}
}

// ConfirmDelivery asks the backend to mark the order delivered and, once
// acknowledged, flips the local state without waiting for the next update.
func (s *Session) ConfirmDelivery(ctx context.Context) (State, error) {
	if s.fetcher == nil {
		return State{}, fmt.Errorf("tracking fetcher not configured")
	}
	if s.Phase() == PhaseStopped {
		return State{}, ErrStopped
	}

	if _, ok := s.Latest(); !ok {
		s.poll(ctx)
	}
	current, ok := s.Latest()
	if !ok {
		return State{}, fmt.Errorf("order %s: %w", s.orderID, order.ErrNotFound)
	}

	delivered := orderstatus.Statuses.Delivered
	if current.Order.Status == delivered {
		return current, nil
	}
	if !orderstatus.CanTransition(current.Order.Status, delivered) {
		return current, fmt.Errorf("confirm delivery from %s: %w", current.Order.Status.Code(), order.ErrInvalidTransition)
	}

	if err := s.fetcher.UpdateStatus(ctx, s.orderID, delivered); err != nil {
		return current, fmt.Errorf("confirm delivery: %w", err)
	}

	now := s.now()
	patch := order.Order{ID: s.orderID, Status: delivered, DeliveredAt: &now}
	s.apply(update{source: "confirm", confirmed: true, order: patch, lastUpdatedAt: &now})

	st, _ := s.Latest()
	return st, nil
}

// Stop releases both channels. Payloads arriving afterwards are discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.phase == PhaseStopped {
		s.mu.Unlock()
		return
	}
	started := s.phase != PhaseIdle
	s.phase = PhaseStopped
	if s.cancel != nil {
		s.cancel()
	}
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()

	if started {
		s.metrics.SessionStopped()
	}
	s.logger.Debug("tracking session stopped")
}

// Done is closed when the background loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
