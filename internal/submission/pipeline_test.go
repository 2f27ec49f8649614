package submission

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/shopspring/decimal"
)

// MockBackend is a test mock for Backend
type MockBackend struct {
	mu              sync.Mutex
	Calls           []string
	Attached        []order.Item
	CreateDraftFunc func(ctx context.Context, req order.DraftRequest) (order.Order, error)
	AttachItemFunc  func(ctx context.Context, orderID string, it order.Item) (order.Item, error)
	FinalizeFunc    func(ctx context.Context, orderID string) (order.Order, error)
}

func (m *MockBackend) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockBackend) CreateDraft(ctx context.Context, req order.DraftRequest) (order.Order, error) {
	m.record("create")
	if m.CreateDraftFunc != nil {
		return m.CreateDraftFunc(ctx, req)
	}
	return order.Order{ID: "77", Status: orderstatus.Statuses.Draft}, nil
}

func (m *MockBackend) AttachItem(ctx context.Context, orderID string, it order.Item) (order.Item, error) {
	m.record("attach")
	m.mu.Lock()
	m.Attached = append(m.Attached, it)
	m.mu.Unlock()
	if m.AttachItemFunc != nil {
		return m.AttachItemFunc(ctx, orderID, it)
	}
	return it, nil
}

func (m *MockBackend) Finalize(ctx context.Context, orderID string) (order.Order, error) {
	m.record("finalize")
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, orderID)
	}
	total := decimal.NewFromInt(30)
	return order.Order{ID: orderID, Status: orderstatus.Statuses.Received, BackendTotal: &total}, nil
}

// MockSeeder is a test mock for Seeder
type MockSeeder struct {
	Seeded []order.Order
	Fees   []*decimal.Decimal
}

func (m *MockSeeder) Seed(o order.Order, fee *decimal.Decimal) {
	m.Seeded = append(m.Seeded, o)
	m.Fees = append(m.Fees, fee)
}

func line(dishID int64, qty int, price string) CartLine {
	return CartLine{DishID: dishID, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestValidate(t *testing.T) {
	negativeFee := decimal.NewFromInt(-1)

	tests := []struct {
		name    string
		cart    Cart
		wantErr bool
	}{
		{name: "validCart", cart: Cart{Lines: []CartLine{line(10, 2, "15.0")}}},
		{name: "freeItem", cart: Cart{Lines: []CartLine{line(10, 1, "0")}}},
		{name: "emptyCart", cart: Cart{}, wantErr: true},
		{name: "zeroDishID", cart: Cart{Lines: []CartLine{line(10, 1, "5"), line(0, 1, "5")}}, wantErr: true},
		{name: "zeroQuantity", cart: Cart{Lines: []CartLine{line(10, 0, "5")}}, wantErr: true},
		{name: "negativePrice", cart: Cart{Lines: []CartLine{line(10, 1, "-5")}}, wantErr: true},
		{name: "negativeFee", cart: Cart{Lines: []CartLine{line(10, 1, "5")}, DeliveryFee: &negativeFee}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cart)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCart) {
					t.Errorf("Validate() error = %v, want ErrInvalidCart", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestSubmit(t *testing.T) {
	backend := &MockBackend{}
	seeder := &MockSeeder{}
	p := NewPipeline(backend, seeder, nil, nil)

	res, err := p.Submit(context.Background(), Cart{Lines: []CartLine{line(10, 2, "15.0")}})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	want := []string{"create", "attach", "finalize"}
	if len(backend.Calls) != len(want) {
		t.Fatalf("calls = %v, want %v", backend.Calls, want)
	}
	for i := range want {
		if backend.Calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, backend.Calls[i], want[i])
		}
	}

	if res.Order.ID != "77" || res.Order.Status != orderstatus.Statuses.Received {
		t.Errorf("order = %+v", res.Order)
	}
	if !res.Total.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Total = %s, want 30", res.Total)
	}
	if len(res.Order.Items) != 1 || res.Order.Items[0].DishID != 10 {
		t.Errorf("items = %+v, want attached items carried over", res.Order.Items)
	}

	if len(seeder.Seeded) != 1 || seeder.Seeded[0].ID != "77" {
		t.Errorf("seeded = %+v, want finalized order", seeder.Seeded)
	}
}

func TestSubmitInvalidCartMakesNoCalls(t *testing.T) {
	backend := &MockBackend{}
	p := NewPipeline(backend, nil, nil, nil)

	_, err := p.Submit(context.Background(), Cart{Lines: []CartLine{line(0, 1, "10")}})

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepValidate {
		t.Fatalf("Submit() error = %v, want validate StepError", err)
	}
	if !errors.Is(err, ErrInvalidCart) {
		t.Errorf("error should wrap ErrInvalidCart")
	}
	if len(backend.Calls) != 0 {
		t.Errorf("backend calls = %v, want none", backend.Calls)
	}
}

func TestSubmitFailures(t *testing.T) {
	boom := errors.New("unexpected status: 500")

	tests := []struct {
		name         string
		setup        func(m *MockBackend)
		wantStep     Step
		wantOrphaned bool
		wantCalls    int
	}{
		{
			name: "createDraftFails",
			setup: func(m *MockBackend) {
				m.CreateDraftFunc = func(ctx context.Context, req order.DraftRequest) (order.Order, error) {
					return order.Order{}, boom
				}
			},
			wantStep:  StepCreateDraft,
			wantCalls: 1,
		},
		{
			name: "attachFails",
			setup: func(m *MockBackend) {
				m.AttachItemFunc = func(ctx context.Context, orderID string, it order.Item) (order.Item, error) {
					if it.DishID == 11 {
						return order.Item{}, boom
					}
					return it, nil
				}
			},
			wantStep:     StepAttachItems,
			wantOrphaned: true,
			wantCalls:    4,
		},
		{
			name: "finalizeFails",
			setup: func(m *MockBackend) {
				m.FinalizeFunc = func(ctx context.Context, orderID string) (order.Order, error) {
					return order.Order{}, boom
				}
			},
			wantStep:     StepFinalize,
			wantOrphaned: true,
			wantCalls:    5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &MockBackend{}
			tt.setup(backend)
			seeder := &MockSeeder{}
			p := NewPipeline(backend, seeder, nil, nil)

			cart := Cart{Lines: []CartLine{line(10, 1, "5"), line(11, 1, "5"), line(12, 1, "5")}}
			_, err := p.Submit(context.Background(), cart)

			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				t.Fatalf("Submit() error = %v, want StepError", err)
			}
			if stepErr.Step != tt.wantStep {
				t.Errorf("Step = %s, want %s", stepErr.Step, tt.wantStep)
			}
			if stepErr.Orphaned != tt.wantOrphaned {
				t.Errorf("Orphaned = %v, want %v", stepErr.Orphaned, tt.wantOrphaned)
			}
			if tt.wantOrphaned && stepErr.OrderID != "77" {
				t.Errorf("OrderID = %q, want 77", stepErr.OrderID)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error should wrap the backend error")
			}
			if len(backend.Calls) != tt.wantCalls {
				t.Errorf("calls = %v, want %d", backend.Calls, tt.wantCalls)
			}
			if len(seeder.Seeded) != 0 {
				t.Error("failed submission must not seed tracking")
			}
		})
	}
}

func TestAttachItemsWaitsForAll(t *testing.T) {
	backend := &MockBackend{}
	backend.AttachItemFunc = func(ctx context.Context, orderID string, it order.Item) (order.Item, error) {
		if it.DishID == 1 {
			return order.Item{}, errors.New("rejected")
		}
		return order.Item{DishID: it.DishID, Name: "prato", Quantity: it.Quantity, UnitPrice: it.UnitPrice}, nil
	}
	p := NewPipeline(backend, nil, nil, nil)

	items := []order.Item{{DishID: 1, Quantity: 1}, {DishID: 2, Quantity: 1}, {DishID: 3, Quantity: 1}}
	if _, err := p.AttachItems(context.Background(), "77", items); err == nil {
		t.Fatal("AttachItems() should fail when one item fails")
	}
	if len(backend.Attached) != 3 {
		t.Errorf("attached %d items, want every item attempted", len(backend.Attached))
	}

	got, err := p.AttachItems(context.Background(), "77", items[1:])
	if err != nil {
		t.Fatalf("AttachItems() error = %v", err)
	}
	if len(got) != 2 || got[0].DishID != 2 || got[1].DishID != 3 {
		t.Errorf("AttachItems() = %+v, want input order kept", got)
	}
}

func TestSubmitCarriesDeliveryFee(t *testing.T) {
	backend := &MockBackend{}
	backend.FinalizeFunc = func(ctx context.Context, orderID string) (order.Order, error) {
		return order.Order{ID: orderID, Status: orderstatus.Statuses.Received}, nil
	}
	seeder := &MockSeeder{}
	p := NewPipeline(backend, seeder, nil, nil)

	fee := decimal.NewFromInt(10)
	res, err := p.Submit(context.Background(), Cart{
		Lines:       []CartLine{line(10, 2, "25")},
		DeliveryFee: &fee,
		Address:     "Rua das Flores, 10",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Total.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Total = %s, want 60", res.Total)
	}
	if res.Order.Destination.Address != "Rua das Flores, 10" {
		t.Errorf("address = %q", res.Order.Destination.Address)
	}
	if len(seeder.Fees) != 1 || seeder.Fees[0] == nil || !seeder.Fees[0].Equal(fee) {
		t.Errorf("seeded fee = %v, want 10", seeder.Fees)
	}
}
