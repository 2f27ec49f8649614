package pkg

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm/events"
	"github.com/nats-io/nats.go"
)

const (
	reconnectWait = 2 * time.Second
)

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber delivers messages from core NATS subjects. Subscriptions
// end when the context passed to Subscribe is done.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string) (*NATSSubscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: conn}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		_ = handler(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return nil
}

// Connected reports whether the underlying connection is currently up.
// Subscriptions are restored by the client after a reconnect.
func (s *NATSSubscriber) Connected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
