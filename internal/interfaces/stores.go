package interfaces

import (
	"context"
	"time"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// PreferenceStore keeps small per-user flags such as dismissed guides.
// Get returns an error wrapping apperr.ErrNotFound for unset keys.
type PreferenceStore interface {
	Get(ctx context.Context, userID, key string) (string, error)
	Set(ctx context.Context, userID, key, value string) error
}

// ResponseCache stores replayable responses keyed by idempotency key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
	Close() error
}
