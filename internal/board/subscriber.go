package board

import (
	"context"
	"encoding/json"

	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
)

type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error
}

// StatusSubscriber reloads the board when another surface changes an order,
// e.g. a courier finishing a delivery.
type StatusSubscriber struct {
	subscriber Subscriber
	store      *Store
	logger     aqm.Logger
}

func NewStatusSubscriber(sub Subscriber, store *Store, logger aqm.Logger) *StatusSubscriber {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &StatusSubscriber{
		subscriber: sub,
		store:      store,
		logger:     logger,
	}
}

// Start loads the board once and, when a subscriber is configured, follows
// status changes.
func (s *StatusSubscriber) Start(ctx context.Context) error {
	if err := s.store.LoadAll(ctx); err != nil {
		s.logger.Info("initial board load failed", "error", err)
	}
	if s.subscriber == nil {
		return nil
	}
	s.logger.Info("starting board status subscriber", "topic", event.OrderStatusTopic)
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
	if evt.Source == announceSource {
		return nil
	}

	if err := s.store.LoadAll(ctx); err != nil {
		s.logger.Error("cannot reload board", "order_id", evt.OrderID, "error", err)
	}
	return nil
}
