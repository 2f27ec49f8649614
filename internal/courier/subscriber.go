package courier

import (
	"context"
	"encoding/json"

	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
)

type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error
}

// StatusSubscriber keeps the pool current when orders become READY or are
// closed elsewhere.
type StatusSubscriber struct {
	subscriber Subscriber
	flow       *Flow
	logger     aqm.Logger
}

func NewStatusSubscriber(sub Subscriber, flow *Flow, logger aqm.Logger) *StatusSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &StatusSubscriber{
		subscriber: sub,
		flow:       flow,
		logger:     logger,
	}
}

func (s *StatusSubscriber) Start(ctx context.Context) error {
	s.logger.Info("starting courier status subscriber", "topic", event.OrderStatusTopic)
	if s.flow != nil {
		if err := s.flow.Refresh(ctx); err != nil {
			s.logger.Info("courier pool warmup failed", "error", err)
		}
	}
	if s.subscriber == nil {
		return nil
	}
	return s.subscriber.Subscribe(ctx, event.OrderStatusTopic, s.handleEvent)
}

func (s *StatusSubscriber) Stop(ctx context.Context) error {
	return nil
}

func (s *StatusSubscriber) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.OrderStatusChangedEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		s.logger.Info("invalid order status event", "error", err)
		return nil
	}
	if evt.OrderID == "" {
		s.logger.Info("order status event without order id")
		return nil
	}

	status := orderstatus.Normalize(evt.Status)
	switch status {
	case orderstatus.Statuses.Ready:
		if err := s.flow.Refresh(ctx); err != nil {
			s.logger.Error("cannot refresh courier pool", "order_id", evt.OrderID, "error", err)
		}
	case orderstatus.Statuses.Cancelled:
		if s.flow.Drop(evt.OrderID) {
			s.logger.Info("cancelled order removed from courier", "order_id", evt.OrderID)
		}
	case orderstatus.Statuses.Delivered, orderstatus.Statuses.OnTheWay:
		// finished by someone else; deliveries taken here stay until finished
		if evt.Source != announceSource {
			s.flow.dropAvailable(evt.OrderID)
		}
	}
	return nil
}
