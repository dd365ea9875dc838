// Package broker relays in-process domain events to an external message
// broker so other services can follow shipment and payment progress.
package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/frahmantamala/courier-fulfillment/internal/core/events"
)

// Sink is a topic-addressed message producer.
type Sink interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
	Close() error
}

// Message is the wire form of a relayed event.
type Message struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type Forwarder struct {
	sink   Sink
	prefix string
	logger *slog.Logger
}

func NewForwarder(sink Sink, topicPrefix string, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		sink:   sink,
		prefix: strings.TrimSuffix(topicPrefix, "."),
		logger: logger.With("component", "event_forwarder"),
	}
}

// Register subscribes the forwarder to every event type the service emits.
func (f *Forwarder) Register(bus *events.EventBus) {
	for _, t := range events.Types {
		bus.Subscribe(t, f.Forward)
	}
}

func (f *Forwarder) Topic(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

// Forward publishes e keyed by its shipment so one shipment's events stay
// ordered within a partition.
func (f *Forwarder) Forward(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(Message{
		ID:         e.EventID(),
		Type:       e.EventType(),
		OccurredAt: e.OccurredAt(),
		Data:       e.Payload(),
	})
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	topic := f.Topic(e.EventType())
	if err := f.sink.Publish(ctx, topic, []byte(keyOf(e)), body); err != nil {
		return errors.Wrapf(err, "forward %s", e.EventID())
	}

	f.logger.DebugContext(ctx, "event forwarded", "topic", topic, "event_id", e.EventID())
	return nil
}

func keyOf(e events.Event) string {
	switch ev := e.(type) {
	case *events.ShipmentStatusChangedEvent:
		return strconv.FormatInt(ev.ShipmentID, 10)
	case *events.PaymentStatusChangedEvent:
		return strconv.FormatInt(ev.ShipmentID, 10)
	}
	return e.EventID()
}
