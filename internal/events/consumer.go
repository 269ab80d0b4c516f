package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

type Handler func(event models.PaymentEvent) error

// ConsumeStateChanges reads payment.state.changed until ctx ends.
// Undecodable messages are logged and skipped.
func ConsumeStateChanges(ctx context.Context, brokers []string, groupID string, handle Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    models.EventPaymentStateChanged,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	telemetry.Logger.Info("Started consuming payment.state.changed events", zap.String("group_id", groupID))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read state change: %w", err)
		}

		event, err := decode(msg.Value)
		if err != nil {
			telemetry.Logger.Error("Error unmarshaling event", zap.Error(err))
			continue
		}
		if err := handle(event); err != nil {
			return err
		}
	}
}

// SubscribeTerminal delivers every terminal outcome announced on NATS.
func SubscribeTerminal(conn *nats.Conn, handle Handler) (*nats.Subscription, error) {
	return conn.Subscribe(models.EventPaymentTerminal, func(msg *nats.Msg) {
		event, err := decode(msg.Data)
		if err != nil {
			telemetry.Logger.Error("Error unmarshaling terminal event", zap.Error(err))
			return
		}
		if err := handle(event); err != nil {
			telemetry.Logger.Warn("Terminal event handler failed",
				zap.String("payment_id", event.PaymentID),
				zap.Error(err),
			)
		}
	})
}

func decode(data []byte) (models.PaymentEvent, error) {
	var event models.PaymentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return event, err
	}
	return event, nil
}
