package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// PaymentRepository defines the contract for payment request storage.
// Lookups of unknown ids return an error wrapping apperr.ErrNotFound.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.PaymentRequest) error
	GetByID(ctx context.Context, id string) (*models.PaymentRequest, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.PaymentRequest, error)

	// Transition moves a payment from -> to only if it is still in from.
	// A lost race returns an error wrapping apperr.ErrInvalidTransition.
	Transition(ctx context.Context, id string, from, to models.Status, message string) (*models.PaymentRequest, error)

	// RecordPoll counts a status query and returns the new total.
	RecordPoll(ctx context.Context, id string) (int, error)

	// List returns one page of payments matching filter, newest first,
	// together with the number of matches across all pages.
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentRequest, int, error)
}
