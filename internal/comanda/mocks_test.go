package comanda

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/shopspring/decimal"
)

// MockOrders is a test mock for the orders backend as seen by every surface
type MockOrders struct {
	mu               sync.Mutex
	orders           map[string]order.Order
	StatusCalls      []string
	UpdateStatusFunc func(ctx context.Context, orderID string, status orderstatus.Status) error
	FinalizeFunc     func(ctx context.Context, orderID string) (order.Order, error)
}

func NewMockOrders(orders ...order.Order) *MockOrders {
	m := &MockOrders{orders: make(map[string]order.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *MockOrders) List(ctx context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	return out, nil
}

func (m *MockOrders) ListByStatus(ctx context.Context, statuses ...orderstatus.Status) ([]order.Order, error) {
	all, _ := m.List(ctx)
	var out []order.Order
	for _, o := range all {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (m *MockOrders) Get(ctx context.Context, id string) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (m *MockOrders) UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, orderID+":"+status.Code())
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, orderID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

func (m *MockOrders) CreateDraft(ctx context.Context, req order.DraftRequest) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := order.Order{ID: "77", Status: orderstatus.Statuses.Draft, Client: req.Client}
	m.orders[o.ID] = o
	return o, nil
}

func (m *MockOrders) AttachItem(ctx context.Context, orderID string, it order.Item) (order.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.Items = append(o.Items, it)
	m.orders[orderID] = o
	return it, nil
}

func (m *MockOrders) Finalize(ctx context.Context, orderID string) (order.Order, error) {
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.Status = orderstatus.Statuses.Received
	now := time.Now()
	o.CreatedAt = &now
	m.orders[orderID] = o
	return o.Clone(), nil
}

func testOrder(id string, status orderstatus.Status, minute int) order.Order {
	created := time.Date(2024, 5, 1, 12, minute, 0, 0, time.UTC)
	return order.Order{
		ID:        id,
		Status:    status,
		CreatedAt: &created,
		Items:     []order.Item{{DishID: 10, Quantity: 2, UnitPrice: decimal.NewFromInt(15)}},
	}
}
