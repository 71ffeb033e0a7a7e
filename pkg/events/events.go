// Package events publishes domain events after state changes are persisted.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	ProductCreated = "product.created"
	ProductUpdated = "product.updated"
	OrderCreated   = "order.created"
	OrderUpdated   = "order.updated"
	OrderDeleted   = "order.deleted"
)

// Event describes a completed mutation.
type Event struct {
	Type       string    `json:"type"`
	ID         int       `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// Kafka writes events to a topic, keyed by entity type and ID so that events
// for the same record keep their order.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a synchronous producer for topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish encodes ev as JSON and writes it.
func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	return errors.Wrapf(k.writer.WriteMessages(ctx, msg), "publish %s", ev.Type)
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Encode builds the Kafka message for ev.
func Encode(ev Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, errors.Wrapf(err, "encode %s", ev.Type)
	}
	return kafka.Message{
		Key:   []byte(entity(ev.Type) + ":" + strconv.Itoa(ev.ID)),
		Value: value,
		Time:  ev.OccurredAt,
	}, nil
}

func entity(eventType string) string {
	e, _, _ := strings.Cut(eventType, ".")
	return e
}
