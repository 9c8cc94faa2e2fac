package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes notifications as JSON to a NATS subject, for platform
// layers that fan alerts out to device push or browser notifications.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = "newswire.alerts"
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Dispatch(_ context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (s *NATSSink) Close() {
	s.nc.Close()
}
