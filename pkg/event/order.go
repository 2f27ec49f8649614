package event

import (
	"fmt"
	"time"
)

const (
	// OrderStatusTopic carries every confirmed status change.
	OrderStatusTopic = "orders.status"
	// TrackingTopicPrefix is the per-order push subject prefix.
	TrackingTopicPrefix = "orders.tracking"

	EventOrderStatusChanged = "order.status.changed"
	EventTrackingUpdate     = "rastreio:update"
)

// TrackingSubject returns the push subject for a single order.
func TrackingSubject(prefix, orderID string) string {
	if prefix == "" {
		prefix = TrackingTopicPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, orderID)
}

// OrderStatusChangedEvent is published after the backend acknowledged a
// status update issued from the kitchen board or the courier app.
type OrderStatusChangedEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	OrderID        string    `json:"order_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Source         string    `json:"source,omitempty"`
}

// TrackingPayload is the message pushed to a tracking subject. Field names
// follow the customer tracker contract.
type TrackingPayload struct {
	OrderID       string         `json:"orderId"`
	Status        string         `json:"status"`
	EtaMinutes    *int           `json:"etaMinutes,omitempty"`
	LastUpdatedAt time.Time      `json:"lastUpdatedAt"`
	Items         []TrackingItem `json:"items,omitempty"`
}

type TrackingItem struct {
	DishID    int64  `json:"dishId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

// TrackingEnvelope wraps a payload the way the push channel sends it.
type TrackingEnvelope struct {
	Type    string          `json:"type"`
	Payload TrackingPayload `json:"payload"`
}
