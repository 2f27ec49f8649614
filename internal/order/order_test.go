package order

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestOrderTotal(t *testing.T) {
	items := []Item{
		{DishID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("15")},
		{DishID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("20")},
	}

	tests := []struct {
		name     string
		order    Order
		stateFee *decimal.Decimal
		want     string
	}{
		{
			name:     "untrackedShippingAddedFromState",
			order:    Order{Items: items},
			stateFee: dec("10"),
			want:     "60.00",
		},
		{
			name:     "backendFeeWinsOverState",
			order:    Order{Items: items, DeliveryFee: dec("5")},
			stateFee: dec("10"),
			want:     "55.00",
		},
		{
			name:     "backendTotalAlreadyHasFee",
			order:    Order{Items: items, BackendTotal: dec("55"), DeliveryFee: dec("5")},
			stateFee: dec("10"),
			want:     "55.00",
		},
		{
			name:     "backendTotalWithoutFee",
			order:    Order{Items: items, BackendTotal: dec("50")},
			stateFee: dec("10"),
			want:     "60.00",
		},
		{
			name:  "noFeeAnywhere",
			order: Order{Items: items},
			want:  "50.00",
		},
		{
			name:  "emptyOrder",
			order: Order{},
			want:  "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.order.Total(tt.stateFee).StringFixed(2)
			if got != tt.want {
				t.Errorf("Total() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrderDisplayNumber(t *testing.T) {
	if got := (Order{ID: "5"}).DisplayNumber(); got != "Pedido Nº 5" {
		t.Errorf("DisplayNumber() = %q", got)
	}
	if got := (Order{ID: "5", Number: "A-12"}).DisplayNumber(); got != "A-12" {
		t.Errorf("DisplayNumber() = %q, want A-12", got)
	}
}

func TestOrderElapsedMinutes(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	received := created.Add(2 * time.Minute)
	now := created.Add(30 * time.Minute)

	tests := []struct {
		name   string
		order  Order
		want   int
		wantOK bool
	}{
		{name: "noTimestamps", order: Order{}, wantOK: false},
		{name: "createdAsProxy", order: Order{CreatedAt: &created}, want: 30, wantOK: true},
		{name: "receivedPreferred", order: Order{CreatedAt: &created, ReceivedAt: &received}, want: 28, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.order.ElapsedMinutes(now)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ElapsedMinutes() = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestOrderCloneIsIndependent(t *testing.T) {
	created := time.Now()
	o := Order{
		ID:        "1",
		Items:     []Item{{DishID: 1, Quantity: 1}},
		CreatedAt: &created,
		Client:    &ClientRef{ID: "c1"},
	}

	c := o.Clone()
	c.Items[0].Quantity = 9
	*c.CreatedAt = created.Add(time.Hour)
	c.Client.ID = "c2"

	if o.Items[0].Quantity != 1 {
		t.Error("Clone() shares items with the original")
	}
	if !o.CreatedAt.Equal(created) {
		t.Error("Clone() shares timestamps with the original")
	}
	if o.Client.ID != "c1" {
		t.Error("Clone() shares client with the original")
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name    string
		order   Order
		wantErr bool
	}{
		{name: "draftWithoutItems", order: Order{Status: orderstatus.Statuses.Draft}, wantErr: false},
		{name: "receivedWithoutItems", order: Order{Status: orderstatus.Statuses.Received}, wantErr: true},
		{name: "zeroQuantity", order: Order{Status: orderstatus.Statuses.Ready, Items: []Item{{DishID: 1}}}, wantErr: true},
		{name: "valid", order: Order{Status: orderstatus.Statuses.Ready, Items: []Item{{DishID: 1, Quantity: 1}}}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.order.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{name: "valid", item: Item{DishID: 10, Quantity: 2, UnitPrice: decimal.RequireFromString("15")}},
		{name: "freeItem", item: Item{DishID: 10, Quantity: 1}},
		{name: "zeroDish", item: Item{DishID: 0, Quantity: 1}, wantErr: true},
		{name: "negativeDish", item: Item{DishID: -3, Quantity: 1}, wantErr: true},
		{name: "zeroQuantity", item: Item{DishID: 10}, wantErr: true},
		{name: "negativePrice", item: Item{DishID: 10, Quantity: 1, UnitPrice: decimal.RequireFromString("-1")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.item.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeBackendShapes(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantID    string
		status    orderstatus.Status
		items     int
		wantTotal string
		check     func(t *testing.T, o Order)
	}{
		{
			name:      "numericIdAndMoment",
			payload:   `{"id":5,"status":"RECEIVED","moment":"2024-05-01T12:00:00Z","items":[{"quantity":2,"price":15.0,"dish":{"id":10,"name":"Feijoada"}}]}`,
			wantID:    "5",
			status:    orderstatus.Statuses.Received,
			items:     1,
			wantTotal: "30.00",
			check: func(t *testing.T, o Order) {
				if o.CreatedAt == nil {
					t.Fatal("moment should populate CreatedAt")
				}
				if o.Items[0].DishID != 10 || o.Items[0].Name != "Feijoada" {
					t.Errorf("nested dish not decoded: %+v", o.Items[0])
				}
			},
		},
		{
			name:      "backendAliasesAndFrete",
			payload:   `{"id":"77","status":"out_for_delivery","amount":"42.50","frete":"7.5","itens":[{"dishId":"3","quantidade":1,"preco":35}]}`,
			wantID:    "77",
			status:    orderstatus.Statuses.OnTheWay,
			items:     1,
			wantTotal: "42.50",
			check: func(t *testing.T, o Order) {
				if o.DeliveryFee == nil || o.DeliveryFee.StringFixed(2) != "7.50" {
					t.Errorf("frete not decoded as delivery fee: %v", o.DeliveryFee)
				}
			},
		},
		{
			name:      "unknownStatusAndNulls",
			payload:   `{"id":9,"status":"weird","total":null,"deliveryFee":null,"createdAt":"2024-05-01T12:00:00"}`,
			wantID:    "9",
			status:    orderstatus.Statuses.Received,
			items:     0,
			wantTotal: "0.00",
			check: func(t *testing.T, o Order) {
				if o.BackendTotal != nil || o.DeliveryFee != nil {
					t.Error("null money fields should stay absent")
				}
				if o.Items != nil {
					t.Error("absent items should decode as nil")
				}
				if o.CreatedAt == nil {
					t.Error("zone-less timestamp should parse")
				}
			},
		},
		{
			name:      "trackingPayload",
			payload:   `{"orderId":"12","status":"EM PREPARO","etaMinutes":15,"lastUpdatedAt":1714564800000}`,
			wantID:    "12",
			status:    orderstatus.Statuses.InPreparation,
			wantTotal: "0.00",
			check: func(t *testing.T, o Order) {
				if o.EtaMinutes == nil || *o.EtaMinutes != 15 {
					t.Errorf("EtaMinutes = %v", o.EtaMinutes)
				}
				if o.UpdatedAt == nil || o.UpdatedAt.UnixMilli() != 1714564800000 {
					t.Errorf("UpdatedAt = %v", o.UpdatedAt)
				}
			},
		},
		{
			name:      "addressObjectAndClient",
			payload:   `{"id":1,"endereco":{"logradouro":"Rua A","numero":"10","bairro":"Centro"},"cliente":{"id":4,"nome":"Ana"},"items":[]}`,
			wantID:    "1",
			status:    orderstatus.Statuses.Received,
			wantTotal: "0.00",
			check: func(t *testing.T, o Order) {
				if o.Destination.Address != "Rua A, 10, Centro" {
					t.Errorf("Address = %q", o.Destination.Address)
				}
				if o.Client == nil || o.Client.ID != "4" || o.Client.Name != "Ana" {
					t.Errorf("Client = %+v", o.Client)
				}
				if o.Items == nil {
					t.Error("present empty items should decode as empty, not nil")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if o.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", o.ID, tt.wantID)
			}
			if o.Status != tt.status {
				t.Errorf("Status = %q, want %q", o.Status.Name, tt.status.Name)
			}
			if len(o.Items) != tt.items {
				t.Errorf("len(Items) = %d, want %d", len(o.Items), tt.items)
			}
			if got := o.Total(nil).StringFixed(2); got != tt.wantTotal {
				t.Errorf("Total() = %s, want %s", got, tt.wantTotal)
			}
			if tt.check != nil {
				tt.check(t, o)
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Decode() should fail on invalid JSON")
	}
	if _, err := DecodeList([]byte(`{"id":1}`)); err == nil {
		t.Error("DecodeList() should fail on a non-array")
	}
}

func TestMarshalJSONIsDecodable(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := Order{
		ID:        "77",
		Status:    orderstatus.Statuses.InPreparation,
		CreatedAt: &created,
		Items:     []Item{{DishID: 10, Name: "Feijoada", Quantity: 2, UnitPrice: decimal.RequireFromString("15")}},
	}

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var view map[string]interface{}
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if view["statusLabel"] != "EM PREPARO" {
		t.Errorf("statusLabel = %v", view["statusLabel"])
	}
	if view["total"] != "30.00" {
		t.Errorf("total = %v", view["total"])
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if back.ID != o.ID || back.Status != o.Status || len(back.Items) != 1 {
		t.Errorf("Decode(Marshal(o)) = %+v", back)
	}
	if !back.Items[0].UnitPrice.Equal(o.Items[0].UnitPrice) {
		t.Errorf("UnitPrice = %s", back.Items[0].UnitPrice)
	}
}
