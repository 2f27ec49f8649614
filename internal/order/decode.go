package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/shopspring/decimal"
)

// Backend payloads are not schema-guaranteed. Decoding accepts the field
// spellings seen across the backend versions and never fails on a missing
// optional field.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type fields map[string]json.RawMessage

func (f fields) raw(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func (f fields) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := f[k]; ok {
			return true
		}
	}
	return false
}

func (f fields) str(keys ...string) string {
	v, ok := f.raw(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(v))
}

func (f fields) integer(keys ...string) (int64, bool) {
	v, ok := f.raw(keys...)
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if fl, err := n.Float64(); err == nil {
			return int64(fl), true
		}
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (f fields) dec(keys ...string) *decimal.Decimal {
	v, ok := f.raw(keys...)
	if !ok {
		return nil
	}
	var d decimal.Decimal
	if err := json.Unmarshal(v, &d); err != nil {
		return nil
	}
	return &d
}

func (f fields) time(keys ...string) *time.Time {
	v, ok := f.raw(keys...)
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return &t
			}
		}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(v, &ms); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}

func (f fields) object(keys ...string) (fields, bool) {
	v, ok := f.raw(keys...)
	if !ok {
		return nil, false
	}
	var nested fields
	if err := json.Unmarshal(v, &nested); err != nil {
		return nil, false
	}
	return nested, true
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Decode parses one backend order object.
func Decode(data []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

// DecodeList parses an array of backend order objects.
func DecodeList(data []byte) ([]Order, error) {
	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (o *Order) UnmarshalJSON(data []byte) error {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}

	*o = Order{
		ID:           f.str("id", "orderId", "order_id", "pedidoId"),
		Number:       f.str("displayNumber", "number", "numero", "code", "codigo"),
		Status:       orderstatus.Normalize(f.str("status", "orderStatus", "situacao")),
		CreatedAt:    f.time("createdAt", "moment", "created_at", "dataPedido"),
		ReceivedAt:   f.time("receivedAt", "received_at"),
		DeliveredAt:  f.time("deliveredAt", "delivered_at"),
		UpdatedAt:    f.time("lastUpdatedAt", "updatedAt", "last_updated_at", "updated_at"),
		BackendTotal: f.dec("total", "price", "amount", "valorTotal"),
		DeliveryFee:  f.dec("deliveryFee", "shipping", "frete", "shippingValue", "taxaEntrega", "delivery_fee"),
	}

	if eta, ok := f.integer("etaMinutes", "eta_minutes", "eta"); ok {
		v := int(eta)
		o.EtaMinutes = &v
	}

	o.Destination.Table = f.str("table", "mesa", "tableNumber")
	if addr, ok := f.object("address", "endereco", "deliveryAddress"); ok {
		o.Destination.Address = joinAddress(addr)
	} else {
		o.Destination.Address = f.str("address", "endereco", "deliveryAddress")
	}

	if cl, ok := f.object("client", "cliente", "customer"); ok {
		o.Client = &ClientRef{
			ID:   cl.str("id", "clientId"),
			Name: cl.str("name", "nome"),
		}
	} else if id := f.str("clientId", "client_id"); id != "" {
		o.Client = &ClientRef{ID: id}
	}

	if f.has("items", "itens", "orderItems") {
		o.Items = []Item{}
		if raw, ok := f.raw("items", "itens", "orderItems"); ok {
			if err := json.Unmarshal(raw, &o.Items); err != nil {
				return fmt.Errorf("decode order items: %w", err)
			}
		}
	}

	return nil
}

func joinAddress(addr fields) string {
	var parts []string
	for _, keys := range [][]string{
		{"street", "logradouro", "rua"},
		{"number", "numero"},
		{"complement", "complemento"},
		{"neighborhood", "bairro"},
		{"city", "cidade", "localidade"},
	} {
		if v := addr.str(keys...); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode item: %w", err)
	}

	dish, hasDish := f.object("dish", "product", "prato")

	*i = Item{}
	if id, ok := f.integer("dishId", "dish_id", "productId"); ok {
		i.DishID = id
	} else if hasDish {
		i.DishID, _ = dish.integer("id")
	}

	i.Name = f.str("name", "dishName", "nome")
	if i.Name == "" && hasDish {
		i.Name = dish.str("name", "nome")
	}

	if q, ok := f.integer("quantity", "quantidade", "qty"); ok {
		i.Quantity = int(q)
	}

	if p := f.dec("unitPrice", "price", "preco", "unit_price"); p != nil {
		i.UnitPrice = *p
	} else if hasDish {
		if p := dish.dec("price", "preco"); p != nil {
			i.UnitPrice = *p
		}
	}

	return nil
}

type itemView struct {
	DishID    int64  `json:"dishId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemView{
		DishID:    i.DishID,
		Name:      i.Name,
		Quantity:  i.Quantity,
		UnitPrice: i.UnitPrice.StringFixed(2),
		Subtotal:  i.Subtotal().StringFixed(2),
	})
}

type clientView struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type orderView struct {
	ID            string      `json:"id"`
	DisplayNumber string      `json:"displayNumber"`
	Status        string      `json:"status"`
	StatusLabel   string      `json:"statusLabel"`
	Items         []Item      `json:"items"`
	CreatedAt     *time.Time  `json:"createdAt,omitempty"`
	ReceivedAt    *time.Time  `json:"receivedAt,omitempty"`
	DeliveredAt   *time.Time  `json:"deliveredAt,omitempty"`
	UpdatedAt     *time.Time  `json:"lastUpdatedAt,omitempty"`
	EtaMinutes    *int        `json:"etaMinutes,omitempty"`
	Table         string      `json:"table,omitempty"`
	Address       string      `json:"address,omitempty"`
	Client        *clientView `json:"client,omitempty"`
	Subtotal      string      `json:"subtotal"`
	DeliveryFee   string      `json:"deliveryFee,omitempty"`
	Total         string      `json:"total"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	v := orderView{
		ID:            o.ID,
		DisplayNumber: o.DisplayNumber(),
		Status:        o.Status.Code(),
		StatusLabel:   o.Status.Label(),
		Items:         o.Items,
		CreatedAt:     o.CreatedAt,
		ReceivedAt:    o.ReceivedAt,
		DeliveredAt:   o.DeliveredAt,
		UpdatedAt:     o.UpdatedAt,
		EtaMinutes:    o.EtaMinutes,
		Table:         o.Destination.Table,
		Address:       o.Destination.Address,
		Subtotal:      o.Subtotal().StringFixed(2),
		Total:         o.Total(nil).StringFixed(2),
	}
	if v.Items == nil {
		v.Items = []Item{}
	}
	if o.DeliveryFee != nil {
		v.DeliveryFee = o.DeliveryFee.StringFixed(2)
	}
	if o.Client != nil {
		v.Client = &clientView{ID: o.Client.ID, Name: o.Client.Name}
	}
	return json.Marshal(v)
}
