package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/aquamarinepk/aqm/events"
)

// MockFetcher is a test mock for Fetcher
type MockFetcher struct {
	mu               sync.Mutex
	order            order.Order
	GetCalls         int
	StatusCalls      []orderstatus.Status
	GetFunc          func(ctx context.Context, id string) (order.Order, error)
	UpdateStatusFunc func(ctx context.Context, orderID string, status orderstatus.Status) error
}

func NewMockFetcher(o order.Order) *MockFetcher {
	return &MockFetcher{order: o}
}

func (m *MockFetcher) SetOrder(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = o
}

func (m *MockFetcher) Get(ctx context.Context, id string) (order.Order, error) {
	m.mu.Lock()
	m.GetCalls++
	o := m.order.Clone()
	m.mu.Unlock()
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	if o.ID != id {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (m *MockFetcher) UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, status)
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, orderID, status)
	}
	return nil
}

func (m *MockFetcher) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetCalls
}

// MockPush is a test mock for PushSource. Deliver simulates a message on a
// subscribed subject.
type MockPush struct {
	mu            sync.Mutex
	handlers      map[string]events.HandlerFunc
	connected     bool
	SubscribeFunc func(ctx context.Context, subject string, handler events.HandlerFunc) error
}

func NewMockPush(connected bool) *MockPush {
	return &MockPush{handlers: make(map[string]events.HandlerFunc), connected: connected}
}

func (m *MockPush) Subscribe(ctx context.Context, subject string, handler events.HandlerFunc) error {
	if m.SubscribeFunc != nil {
		if err := m.SubscribeFunc(ctx, subject, handler); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.handlers[subject] = handler
	m.mu.Unlock()
	return nil
}

func (m *MockPush) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockPush) SetConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MockPush) Deliver(subject string, data []byte) error {
	m.mu.Lock()
	h, ok := m.handlers[subject]
	m.mu.Unlock()
	if !ok {
		return errors.New("no subscriber for " + subject)
	}
	return h(context.Background(), data)
}

func (m *MockPush) subscribed(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[subject]
	return ok
}
