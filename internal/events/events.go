// Package events publishes payment lifecycle events. Creation and state
// changes go to Kafka; terminal outcomes are also announced on NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// KafkaPublisher routes each event to the topic named by its type.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", event.Type, event.PaymentID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessage(event models.PaymentEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Topic: event.Type,
		Key:   []byte(event.PaymentID),
		Value: value,
	}, nil
}

// NATSPublisher announces terminal outcomes only; other events are ignored.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn, subject: models.EventPaymentTerminal}
}

func (p *NATSPublisher) Publish(ctx context.Context, event models.PaymentEvent) error {
	if !event.Status.IsTerminal() {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode terminal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish terminal event for %s: %w", event.PaymentID, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []interfaces.EventPublisher

func (m Multi) Publish(ctx context.Context, event models.PaymentEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, models.PaymentEvent) error { return nil }
func (Nop) Close() error                                       { return nil }

// Logged wraps a publisher so failures are logged instead of returned.
// Payment flows never fail because the event bus is down.
type Logged struct {
	Next interfaces.EventPublisher
}

func (l Logged) Publish(ctx context.Context, event models.PaymentEvent) error {
	if err := l.Next.Publish(ctx, event); err != nil {
		telemetry.Logger.Error("Failed to publish payment event",
			zap.String("payment_id", event.PaymentID),
			zap.String("event", event.Type),
			zap.Error(err),
		)
	}
	return nil
}

func (l Logged) Close() error {
	return l.Next.Close()
}
