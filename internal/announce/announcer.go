package announce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/appetiteclub/comanda/internal/order"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/appetiteclub/comanda/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
)

// Announcer publishes confirmed status changes to the status topic and to the
// order's tracking subject. Publishing is best effort: the backend already
// holds the change, so failures are only logged.
type Announcer struct {
	publisher      events.Publisher
	trackingPrefix string
	logger         aqm.Logger
	now            func() time.Time
}

// New returns nil when there is no publisher; a nil Announcer is a no-op.
func New(publisher events.Publisher, config *aqm.Config, logger aqm.Logger) *Announcer {
	if publisher == nil {
		return nil
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	a := &Announcer{
		publisher:      publisher,
		trackingPrefix: event.TrackingTopicPrefix,
		logger:         logger,
		now:            time.Now,
	}
	if config != nil {
		if v, ok := config.GetString("tracking.push.subject"); ok && v != "" {
			a.trackingPrefix = v
		}
	}
	return a
}

func (a *Announcer) StatusChanged(ctx context.Context, o order.Order, prev orderstatus.Status, source string) {
	if a == nil {
		return
	}

	occurred := a.now()
	a.publish(ctx, event.OrderStatusTopic, event.OrderStatusChangedEvent{
		EventType:      event.EventOrderStatusChanged,
		OccurredAt:     occurred,
		OrderID:        o.ID,
		Status:         o.Status.Code(),
		PreviousStatus: prev.Code(),
		Source:         source,
	})
	a.publish(ctx, event.TrackingSubject(a.trackingPrefix, o.ID), event.TrackingEnvelope{
		Type:    event.EventTrackingUpdate,
		Payload: o.TrackingPayload(occurred),
	})
}

func (a *Announcer) publish(ctx context.Context, topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("cannot marshal event", "topic", topic, "error", err)
		return
	}
	if err := a.publisher.Publish(ctx, topic, data); err != nil {
		a.logger.Error("cannot publish event", "topic", topic, "error", err)
	}
}
