package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 10 * time.Second

// backendStatuses are the values the status endpoint accepts.
var backendStatuses = map[orderstatus.Status]bool{
	orderstatus.Statuses.Received:      true,
	orderstatus.Statuses.InPreparation: true,
	orderstatus.Statuses.Ready:         true,
	orderstatus.Statuses.OnTheWay:      true,
	orderstatus.Statuses.Delivered:     true,
}

// OrderDataAccess calls the orders backend. Responses are bare JSON, not
// wrapped in a data envelope.
type OrderDataAccess struct {
	httpClient *http.Client
	baseURL    string
	logger     aqm.Logger
}

func NewOrderDataAccess(config *aqm.Config, logger aqm.Logger) (*OrderDataAccess, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	baseURL, _ := config.GetString("services.orders.url")
	if baseURL == "" {
		return nil, fmt.Errorf("services.orders.url not configured")
	}

	timeout := defaultTimeout
	if raw, ok := config.GetString("services.orders.timeout"); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid services.orders.timeout: %w", err)
		}
		timeout = d
	}

	return &OrderDataAccess{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}, nil
}

func (da *OrderDataAccess) List(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := da.do(ctx, http.MethodGet, "/orders", nil, nil, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (da *OrderDataAccess) ListByStatus(ctx context.Context, statuses ...orderstatus.Status) ([]Order, error) {
	query := url.Values{}
	for _, s := range statuses {
		query.Add("status", s.Code())
	}
	var orders []Order
	if err := da.do(ctx, http.MethodGet, "/orders", query, nil, &orders); err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	return orders, nil
}

func (da *OrderDataAccess) Get(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, fmt.Errorf("order id is required")
	}
	var o Order
	if err := da.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &o); err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

type DraftRequest struct {
	Client *ClientRef
	Items  []Item
}

type draftBody struct {
	Items  []itemBody  `json:"items"`
	Client *clientBody `json:"client,omitempty"`
}

type clientBody struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type itemBody struct {
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
	DishID   int64       `json:"dishId"`
}

func newItemBody(it Item) itemBody {
	return itemBody{
		Quantity: it.Quantity,
		Price:    json.Number(it.UnitPrice.String()),
		DishID:   it.DishID,
	}
}

// CreateDraft posts a minimal order shell and returns it with the assigned id.
func (da *OrderDataAccess) CreateDraft(ctx context.Context, req DraftRequest) (Order, error) {
	body := draftBody{Items: []itemBody{}}
	for _, it := range req.Items {
		body.Items = append(body.Items, newItemBody(it))
	}
	if req.Client != nil {
		body.Client = &clientBody{ID: req.Client.ID, Name: req.Client.Name}
	}

	var o Order
	if err := da.do(ctx, http.MethodPost, "/orders", nil, body, &o); err != nil {
		return Order{}, fmt.Errorf("create draft: %w", err)
	}
	if o.ID == "" {
		return Order{}, fmt.Errorf("create draft: backend returned no id")
	}
	return o, nil
}

func (da *OrderDataAccess) AttachItem(ctx context.Context, orderID string, it Item) (Item, error) {
	if orderID == "" {
		return Item{}, fmt.Errorf("order id is required")
	}
	var out Item
	path := "/orders/" + url.PathEscape(orderID) + "/items"
	if err := da.do(ctx, http.MethodPost, path, nil, newItemBody(it), &out); err != nil {
		return Item{}, fmt.Errorf("attach dish %d to order %s: %w", it.DishID, orderID, err)
	}
	return out, nil
}

func (da *OrderDataAccess) Finalize(ctx context.Context, orderID string) (Order, error) {
	if orderID == "" {
		return Order{}, fmt.Errorf("order id is required")
	}
	var o Order
	path := "/orders/" + url.PathEscape(orderID) + "/finalize"
	if err := da.do(ctx, http.MethodPost, path, nil, nil, &o); err != nil {
		return Order{}, fmt.Errorf("finalize order %s: %w", orderID, err)
	}
	return o, nil
}

func (da *OrderDataAccess) UpdateStatus(ctx context.Context, orderID string, status orderstatus.Status) error {
	if orderID == "" {
		return fmt.Errorf("order id is required")
	}
	if !backendStatuses[status] {
		return fmt.Errorf("%w: %s", ErrUnsupportedStatus, status.Code())
	}
	query := url.Values{"status": []string{status.Code()}}
	path := "/orders/" + url.PathEscape(orderID) + "/status"
	if err := da.do(ctx, http.MethodPatch, path, query, nil, nil); err != nil {
		return fmt.Errorf("update order %s status: %w", orderID, err)
	}
	return nil
}

type Dish struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Category string
}

func (d *Dish) UnmarshalJSON(data []byte) error {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode dish: %w", err)
	}
	*d = Dish{
		Name:     f.str("name", "nome"),
		Category: f.str("category", "categoria"),
	}
	d.ID, _ = f.integer("id")
	if p := f.dec("price", "preco"); p != nil {
		d.Price = *p
	}
	return nil
}

func (da *OrderDataAccess) GetDish(ctx context.Context, id int64) (Dish, error) {
	if id <= 0 {
		return Dish{}, fmt.Errorf("dish id must be positive")
	}
	var d Dish
	if err := da.do(ctx, http.MethodGet, fmt.Sprintf("/dishes/%d", id), nil, nil, &d); err != nil {
		return Dish{}, fmt.Errorf("get dish %d: %w", id, err)
	}
	return d, nil
}

func (da *OrderDataAccess) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if da == nil || da.httpClient == nil {
		return fmt.Errorf("orders client not configured")
	}

	target := da.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := da.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		da.log().Debug("orders backend rejected request", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: empty body")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (da *OrderDataAccess) log() aqm.Logger {
	if da.logger == nil {
		return aqm.NewNoopLogger()
	}
	return da.logger
}
