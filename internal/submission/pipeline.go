package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/comanda/internal/metrics"
	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const defaultAttachLimit = 4

var ErrInvalidCart = errors.New("invalid cart")

type Step string

const (
	StepValidate    Step = "validate"
	StepCreateDraft Step = "create-draft"
	StepAttachItems Step = "attach-items"
	StepFinalize    Step = "finalize"
)

// StepError reports the step that failed. Orphaned is set when a draft was
// already created and is left behind on the backend.
type StepError struct {
	Step     Step
	OrderID  string
	Orphaned bool
	Err      error
}

func (e *StepError) Error() string {
	if e.Orphaned {
		return fmt.Sprintf("%s failed, draft %s left orphaned: %v", e.Step, e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Backend interface {
	CreateDraft(ctx context.Context, req order.DraftRequest) (order.Order, error)
	AttachItem(ctx context.Context, orderID string, it order.Item) (order.Item, error)
	Finalize(ctx context.Context, orderID string) (order.Order, error)
}

// Seeder receives the finalized order, usually the tracking hub.
type Seeder interface {
	Seed(o order.Order, shippingFee *decimal.Decimal)
}

type CartLine struct {
	DishID   int64           `json:"dishId"`
	Name     string          `json:"name,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (l CartLine) Item() order.Item {
	return order.Item{
		DishID:    l.DishID,
		Name:      l.Name,
		Quantity:  l.Quantity,
		UnitPrice: l.Price,
	}
}

type Cart struct {
	Client      *order.ClientRef `json:"client,omitempty"`
	Lines       []CartLine       `json:"lines"`
	DeliveryFee *decimal.Decimal `json:"deliveryFee,omitempty"`
	Address     string           `json:"address,omitempty"`
}

func (c Cart) Items() []order.Item {
	items := make([]order.Item, len(c.Lines))
	for i, l := range c.Lines {
		items[i] = l.Item()
	}
	return items
}

// Result is what the customer surface needs after a successful submit.
type Result struct {
	Order       order.Order
	DeliveryFee *decimal.Decimal
	Total       decimal.Decimal
}

type Pipeline struct {
	backend     Backend
	seeder      Seeder
	metrics     *metrics.Registry
	logger      aqm.Logger
	attachLimit int
}

func NewPipeline(backend Backend, seeder Seeder, m *metrics.Registry, logger aqm.Logger) *Pipeline {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Pipeline{
		backend:     backend,
		seeder:      seeder,
		metrics:     m,
		logger:      logger,
		attachLimit: defaultAttachLimit,
	}
}

// Validate checks every line locally. Nothing reaches the backend for an
// invalid cart.
func Validate(cart Cart) error {
	if len(cart.Lines) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}
	for i, l := range cart.Lines {
		if err := l.Item().Validate(); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidCart, i+1, err)
		}
	}
	if cart.DeliveryFee != nil && cart.DeliveryFee.IsNegative() {
		return fmt.Errorf("%w: delivery fee must not be negative", ErrInvalidCart)
	}
	return nil
}

func (p *Pipeline) CreateDraft(ctx context.Context, client *order.ClientRef) (order.Order, error) {
	draft, err := p.backend.CreateDraft(ctx, order.DraftRequest{Client: client})
	if err != nil {
		return order.Order{}, err
	}
	return draft, nil
}

// AttachItems writes every item in parallel and waits for all of them, even
// after a failure, so the caller knows the draft is no longer being written.
func (p *Pipeline) AttachItems(ctx context.Context, orderID string, items []order.Item) ([]order.Item, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	attached := make([]order.Item, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(p.attachLimit)
	for i, it := range items {
		g.Go(func() error {
			out, err := p.backend.AttachItem(ctx, orderID, it)
			if err != nil {
				errs[i] = err
				return err
			}
			attached[i] = mergeAttached(it, out)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return attached, nil
}

func (p *Pipeline) Finalize(ctx context.Context, orderID string) (order.Order, error) {
	if orderID == "" {
		return order.Order{}, fmt.Errorf("order id is required")
	}
	return p.backend.Finalize(ctx, orderID)
}

// Submit runs validate, create draft, attach items and finalize. Steps are
// never retried or compensated.
func (p *Pipeline) Submit(ctx context.Context, cart Cart) (Result, error) {
	log := p.logger.With("submission_id", uuid.NewString())

	if err := Validate(cart); err != nil {
		p.metrics.Submission("invalid")
		log.Info("cart rejected", "error", err)
		return Result{}, &StepError{Step: StepValidate, Err: err}
	}
	if p.backend == nil {
		return Result{}, &StepError{Step: StepCreateDraft, Err: fmt.Errorf("orders backend not configured")}
	}

	draft, err := p.CreateDraft(ctx, cart.Client)
	if err != nil {
		p.metrics.Submission("draft_failed")
		log.Error("cannot create draft", "error", err)
		return Result{}, &StepError{Step: StepCreateDraft, Err: err}
	}
	log = log.With("order_id", draft.ID)

	items, err := p.AttachItems(ctx, draft.ID, cart.Items())
	if err != nil {
		p.metrics.Submission("attach_failed")
		log.Error("cannot attach items, draft orphaned", "error", err)
		return Result{}, &StepError{Step: StepAttachItems, OrderID: draft.ID, Orphaned: true, Err: err}
	}

	final, err := p.Finalize(ctx, draft.ID)
	if err != nil {
		p.metrics.Submission("finalize_failed")
		log.Error("cannot finalize draft, draft orphaned", "error", err)
		return Result{}, &StepError{Step: StepFinalize, OrderID: draft.ID, Orphaned: true, Err: err}
	}

	final = complete(final, draft.ID, items, cart)

	if p.seeder != nil {
		p.seeder.Seed(final, cart.DeliveryFee)
	}

	p.metrics.Submission("ok")
	log.Info("order submitted", "status", final.Status.Code(), "items", len(items))

	return Result{
		Order:       final,
		DeliveryFee: cart.DeliveryFee,
		Total:       final.Total(cart.DeliveryFee),
	}, nil
}

// complete fills what a terse finalize response leaves out.
func complete(final order.Order, draftID string, items []order.Item, cart Cart) order.Order {
	if final.ID == "" {
		final.ID = draftID
	}
	if final.Status.IsZero() || final.Status == orderstatus.Statuses.Draft {
		final.Status = orderstatus.Statuses.Received
	}
	if len(final.Items) == 0 {
		final.Items = items
	}
	if final.Client == nil && cart.Client != nil {
		c := *cart.Client
		final.Client = &c
	}
	if final.Destination.Address == "" {
		final.Destination.Address = cart.Address
	}
	return final
}

func mergeAttached(sent, got order.Item) order.Item {
	if got.DishID == 0 {
		got.DishID = sent.DishID
	}
	if got.Quantity == 0 {
		got.Quantity = sent.Quantity
	}
	if got.UnitPrice.IsZero() {
		got.UnitPrice = sent.UnitPrice
	}
	if got.Name == "" {
		got.Name = sent.Name
	}
	return got
}
