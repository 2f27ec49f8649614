package tracking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/shopspring/decimal"
)

// State is what the customer tracking screen renders for one order.
type State struct {
	Order         order.Order
	LastUpdatedAt *time.Time
	// ShippingFee is the fee carried from checkout, used only when the
	// backend did not persist one.
	ShippingFee *decimal.Decimal
}

// FromOrder builds a state from a full backend order.
func FromOrder(o order.Order, shippingFee *decimal.Decimal) State {
	s := State{Order: o.Clone(), ShippingFee: shippingFee}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		s.LastUpdatedAt = &t
	}
	return s
}

func (s State) Step() int {
	return orderstatus.StepIndex(s.Order.Status)
}

func (s State) Total() decimal.Decimal {
	return TotalWithFee(s.Order, s.ShippingFee)
}

// TotalWithFee is the displayed total. The carried fee is added only when
// the backend has no fee of its own.
func TotalWithFee(o order.Order, shippingFee *decimal.Decimal) decimal.Decimal {
	return o.Total(shippingFee)
}

type stateView struct {
	OrderID       string       `json:"orderId"`
	DisplayNumber string       `json:"displayNumber"`
	Status        string       `json:"status"`
	StatusLabel   string       `json:"statusLabel"`
	Step          int          `json:"step"`
	EtaMinutes    *int         `json:"etaMinutes,omitempty"`
	LastUpdatedAt *time.Time   `json:"lastUpdatedAt,omitempty"`
	ReceivedAt    *time.Time   `json:"receivedAt,omitempty"`
	DeliveredAt   *time.Time   `json:"deliveredAt,omitempty"`
	Address       string       `json:"address,omitempty"`
	Items         []order.Item `json:"items"`
	Subtotal      string       `json:"subtotal"`
	DeliveryFee   string       `json:"deliveryFee"`
	Total         string       `json:"total"`
}

func (s State) MarshalJSON() ([]byte, error) {
	o := s.Order
	v := stateView{
		OrderID:       o.ID,
		DisplayNumber: o.DisplayNumber(),
		Status:        o.Status.Code(),
		StatusLabel:   o.Status.Label(),
		Step:          s.Step(),
		EtaMinutes:    o.EtaMinutes,
		LastUpdatedAt: s.LastUpdatedAt,
		DeliveredAt:   o.DeliveredAt,
		Address:       o.Destination.Address,
		Items:         o.Items,
		Subtotal:      o.Subtotal().StringFixed(2),
		DeliveryFee:   o.EffectiveFee(s.ShippingFee).StringFixed(2),
		Total:         s.Total().StringFixed(2),
	}
	if received, ok := o.Received(); ok {
		v.ReceivedAt = &received
	}
	if v.Items == nil {
		v.Items = []order.Item{}
	}
	return json.Marshal(v)
}

// update is one incoming payload, from any channel.
type update struct {
	source string
	// full is set for whole backend orders (poll, seed); push payloads only
	// patch the fields they carry.
	full bool
	// confirmed updates come from a backend acknowledgement and skip the
	// staleness check.
	confirmed     bool
	order         order.Order
	hasItems      bool
	hasEta        bool
	lastUpdatedAt *time.Time
}

func fromFetch(source string, o order.Order) update {
	u := update{source: source, full: true, order: o.Clone(), hasItems: o.Items != nil, hasEta: o.EtaMinutes != nil}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		u.lastUpdatedAt = &t
	}
	return u
}

// merge applies the newest-wins rule. Payloads with an older timestamp than
// the current state are stale. When the two sides cannot be compared the
// payload's other fields still apply, but its status only when it moves
// the order forward.
func merge(current State, has bool, u update) (State, bool) {
	keepStatus := false
	if has && !u.confirmed {
		cur, next := current.LastUpdatedAt, u.lastUpdatedAt
		if cur != nil && next != nil {
			if next.Before(*cur) {
				return current, false
			}
		} else if from, to := current.Order.Status, u.order.Status; to != from && !orderstatus.Advances(from, to) {
			if from.IsTerminal() {
				return current, false
			}
			keepStatus = true
		}
	}

	next := current
	if u.full || !has {
		next.Order = u.order.Clone()
		if !u.hasItems && has {
			next.Order.Items = current.Order.Items
		}
		if !u.hasEta && has {
			next.Order.EtaMinutes = current.Order.EtaMinutes
		}
	} else {
		next.Order = current.Order.Clone()
		next.Order.Status = u.order.Status
		if u.hasEta {
			next.Order.EtaMinutes = u.order.EtaMinutes
		}
		if u.hasItems {
			next.Order.Items = u.order.Items
		}
		if u.order.DeliveredAt != nil {
			next.Order.DeliveredAt = u.order.DeliveredAt
		}
	}
	if next.Order.ID == "" {
		next.Order.ID = current.Order.ID
	}
	if keepStatus {
		next.Order.Status = current.Order.Status
		next.Order.DeliveredAt = current.Order.DeliveredAt
	}
	if u.lastUpdatedAt != nil {
		t := *u.lastUpdatedAt
		next.LastUpdatedAt = &t
		next.Order.UpdatedAt = &t
	}
	return next, true
}

// decodePush accepts a bare payload or one wrapped as {type, payload}.
func decodePush(data []byte) (update, error) {
	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	body := data
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Payload) > 0 {
		if envelope.Type != "" && envelope.Type != event.EventTrackingUpdate {
			return update{}, fmt.Errorf("unexpected tracking message type %q", envelope.Type)
		}
		body = envelope.Payload
	}

	o, err := order.Decode(body)
	if err != nil {
		return update{}, fmt.Errorf("decode tracking payload: %w", err)
	}

	u := update{
		source:   "push",
		order:    o,
		hasItems: o.Items != nil,
		hasEta:   o.EtaMinutes != nil,
	}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		u.lastUpdatedAt = &t
	}
	return u, nil
}
