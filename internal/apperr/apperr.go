// Package apperr classifies gateway and client errors into the codes carried
// on the wire and the HTTP statuses returned by the gateway.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyTerminal   = errors.New("payment already in a terminal state")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrDuplicateKey      = errors.New("duplicate idempotency key")
)

// Wire codes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodePaymentFailed   = "PAYMENT_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyTerminal = "ALREADY_TERMINAL"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeTimeout         = "TIMEOUT"
	CodeCanceled        = "CANCELED"
	CodeInternal        = "INTERNAL"
)

// Validationf returns an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return CodeValidation

	case errors.Is(err, ErrPaymentFailed):
		return CodePaymentFailed

	case errors.Is(err, ErrNotFound):
		return CodeNotFound

	case errors.Is(err, ErrAlreadyTerminal),
		errors.Is(err, ErrInvalidTransition):
		return CodeAlreadyTerminal

	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized

	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout

	case errors.Is(err, context.Canceled):
		return CodeCanceled

	default:
		return CodeInternal
	}
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case CodeValidation:
		return http.StatusBadRequest
	case CodePaymentFailed:
		return http.StatusPaymentRequired
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyTerminal:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// remoteError is an error decoded from a gateway response.
type remoteError struct {
	code    string
	message string
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Kind() string  { return e.code }

func (e *remoteError) Unwrap() error {
	switch e.code {
	case CodeValidation:
		return ErrValidation
	case CodePaymentFailed:
		return ErrPaymentFailed
	case CodeNotFound:
		return ErrNotFound
	case CodeAlreadyTerminal:
		return ErrAlreadyTerminal
	case CodeUnauthorized:
		return ErrUnauthorized
	case CodeTimeout:
		return context.DeadlineExceeded
	case CodeCanceled:
		return context.Canceled
	default:
		return nil
	}
}

// FromCode rebuilds an error from a wire code so callers on the client side
// can keep using errors.Is against the sentinels above.
func FromCode(code, message string) error {
	if message == "" {
		message = "request failed"
	}
	return &remoteError{code: code, message: message}
}
