package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnsupportedStatus = errors.New("status not accepted by backend")
)

// Order is a value type. Components copy it with Clone and never share a
// mutable instance.
type Order struct {
	ID          string
	Number      string
	Status      orderstatus.Status
	Items       []Item
	CreatedAt   *time.Time
	ReceivedAt  *time.Time
	DeliveredAt *time.Time
	UpdatedAt   *time.Time
	EtaMinutes  *int
	Destination Destination
	Client      *ClientRef

	// BackendTotal and DeliveryFee are only set when the backend sent them.
	BackendTotal *decimal.Decimal
	DeliveryFee  *decimal.Decimal
}

type Item struct {
	DishID    int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) Validate() error {
	if i.DishID <= 0 {
		return fmt.Errorf("dish id must be positive, got %d", i.DishID)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", i.Quantity)
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("price must not be negative, got %s", i.UnitPrice.String())
	}
	return nil
}

// Destination is a dine-in table or a delivery address, depending on surface.
type Destination struct {
	Table   string
	Address string
}

func (d Destination) IsZero() bool {
	return d.Table == "" && d.Address == ""
}

type ClientRef struct {
	ID   string
	Name string
}

func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make([]Item, len(o.Items))
		copy(c.Items, o.Items)
	}
	c.CreatedAt = cloneTime(o.CreatedAt)
	c.ReceivedAt = cloneTime(o.ReceivedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.UpdatedAt = cloneTime(o.UpdatedAt)
	if o.EtaMinutes != nil {
		v := *o.EtaMinutes
		c.EtaMinutes = &v
	}
	if o.Client != nil {
		cl := *o.Client
		c.Client = &cl
	}
	c.BackendTotal = cloneDecimal(o.BackendTotal)
	c.DeliveryFee = cloneDecimal(o.DeliveryFee)
	return c
}

// DisplayNumber is the human-facing number, distinct from ID.
func (o Order) DisplayNumber() string {
	if o.Number != "" {
		return o.Number
	}
	return fmt.Sprintf("Pedido Nº %s", o.ID)
}

// Received returns when the order was received, using creation time as a
// proxy when the backend does not track it.
func (o Order) Received() (time.Time, bool) {
	if o.ReceivedAt != nil {
		return *o.ReceivedAt, true
	}
	if o.CreatedAt != nil {
		return *o.CreatedAt, true
	}
	return time.Time{}, false
}

// ElapsedMinutes since the order was received. Closed orders stop counting at
// DeliveredAt when it is known.
func (o Order) ElapsedMinutes(now time.Time) (int, bool) {
	start, ok := o.Received()
	if !ok {
		return 0, false
	}
	end := now
	if o.DeliveredAt != nil {
		end = *o.DeliveredAt
	}
	if end.Before(start) {
		return 0, true
	}
	return int(end.Sub(start) / time.Minute), true
}

func (o Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// EffectiveFee is the backend fee when present, else the fee carried by the
// caller.
func (o Order) EffectiveFee(fallbackFee *decimal.Decimal) decimal.Decimal {
	if o.DeliveryFee != nil {
		return *o.DeliveryFee
	}
	if fallbackFee != nil {
		return *fallbackFee
	}
	return decimal.Zero
}

// Total uses the backend total when present, else items subtotal. The
// fallback fee is added only when the backend did not persist a fee itself.
func (o Order) Total(fallbackFee *decimal.Decimal) decimal.Decimal {
	if o.BackendTotal != nil {
		if o.DeliveryFee == nil && fallbackFee != nil {
			return o.BackendTotal.Add(*fallbackFee)
		}
		return *o.BackendTotal
	}
	return o.Subtotal().Add(o.EffectiveFee(fallbackFee))
}

// Validate checks the invariants of an order that has left DRAFT.
func (o Order) Validate() error {
	if o.Status == orderstatus.Statuses.Draft {
		return nil
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("order %s has no items", o.ID)
	}
	for i, it := range o.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("order %s item %d: quantity must be at least 1", o.ID, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("order %s item %d: negative price", o.ID, i)
		}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// TrackingPayload is the push message announcing the order's current state.
func (o Order) TrackingPayload(updatedAt time.Time) event.TrackingPayload {
	p := event.TrackingPayload{
		OrderID:       o.ID,
		Status:        o.Status.Code(),
		EtaMinutes:    o.EtaMinutes,
		LastUpdatedAt: updatedAt,
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, event.TrackingItem{
			DishID:    it.DishID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return p
}
