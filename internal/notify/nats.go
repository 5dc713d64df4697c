package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/inkwell-notes/inkwell/internal/config"
)

const (
	// StreamEvents retains notification events for downstream consumers
	// (the mailer service subscribes here).
	StreamEvents = "INKWELL_EVENTS"

	SubjectUsageAlert = "inkwell.events.usage.alert"
)

// NATSNotifier publishes notification events to a JetStream stream.
type NATSNotifier struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

var _ Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier connects to NATS and ensures the events stream exists.
func NewNATSNotifier(ctx context.Context, cfg config.NATSConfig) (*NATSNotifier, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamEvents,
		Subjects:  []string{"inkwell.events.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring events stream: %w", err)
	}

	slog.Info("connected to NATS", "url", cfg.URL)
	return &NATSNotifier{conn: nc, js: js}, nil
}

func (n *NATSNotifier) PublishUsageAlert(ctx context.Context, alert UsageAlert) error {
	return n.publish(ctx, SubjectUsageAlert, alert)
}

func (n *NATSNotifier) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := n.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Healthy returns true if the NATS connection is active.
func (n *NATSNotifier) Healthy() bool {
	return n.conn.IsConnected()
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		slog.Warn("draining NATS connection", "error", err)
	}
}
