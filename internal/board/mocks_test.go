package board

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/shopspring/decimal"
)

type statusCall struct {
	OrderID string
	Status  orderstatus.Status
}

// MockBackend is a test mock for Backend
type MockBackend struct {
	mu               sync.Mutex
	orders           []order.Order
	Calls            []statusCall
	ListCalls        int
	ListFunc         func(ctx context.Context) ([]order.Order, error)
	UpdateStatusFunc func(ctx context.Context, orderID string, status orderstatus.Status) error
}

func NewMockBackend(orders ...order.Order) *MockBackend {
	return &MockBackend{orders: orders}
}

func (m *MockBackend) List(ctx context.Context) ([]order.Order, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	out := make([]order.Order, len(m.orders))
	copy(out, m.orders)
	return out, nil
}

func (m *MockBackend) UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, statusCall{OrderID: orderID, Status: status})
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, orderID, status)
	}
	return nil
}

// MockPrepTracker records prep marks.
type MockPrepTracker struct {
	Starts   []string
	Ends     []string
	Discards []string
}

func (m *MockPrepTracker) MarkPrepStart(ctx context.Context, orderKey string) bool {
	m.Starts = append(m.Starts, orderKey)
	return true
}

func (m *MockPrepTracker) MarkPrepEnd(ctx context.Context, orderKey string) (int, bool) {
	m.Ends = append(m.Ends, orderKey)
	return 0, true
}

func (m *MockPrepTracker) DiscardPrepStart(ctx context.Context, orderKey string) {
	m.Discards = append(m.Discards, orderKey)
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	PublishFunc     func(ctx context.Context, topic string, data []byte) error
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.mu.Lock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	m.mu.Unlock()
	return nil
}

func testOrder(id string, status orderstatus.Status, createdMinute int) order.Order {
	created := time.Date(2024, 5, 1, 12, createdMinute, 0, 0, time.UTC)
	return order.Order{
		ID:        id,
		Status:    status,
		CreatedAt: &created,
		Items: []order.Item{
			{DishID: 10, Name: "Feijoada", Quantity: 1, UnitPrice: decimal.NewFromInt(30)},
		},
	}
}
