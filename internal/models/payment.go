package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a PaymentRequest.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> target is a legal edge.
// PENDING -> PENDING is allowed and is a no-op for callers.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusCreated:
		return target == StatusPending || target == StatusFailed || target == StatusCancelled
	case StatusPending:
		return target == StatusPending || target.IsTerminal()
	default:
		return false
	}
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusCreated, StatusPending, StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// Method is a payment-method tag.
type Method string

const (
	MethodCard         Method = "card"
	MethodMobileMoney  Method = "mobile_money"
	MethodCrypto       Method = "crypto"
	MethodQR           Method = "qr"
	MethodBankTransfer Method = "bank_transfer"
	MethodPayPal       Method = "paypal"
)

// Methods lists the closed set of payment methods.
var Methods = []Method{MethodCard, MethodMobileMoney, MethodCrypto, MethodQR, MethodBankTransfer, MethodPayPal}

// ParseMethod normalises tags such as "CARD" or "mobile-money".
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// DefaultTTL is the client-side expiry for requests of this method.
// Zero means the method carries no TTL of its own.
func (m Method) DefaultTTL() time.Duration {
	switch m {
	case MethodQR:
		return 300 * time.Second
	case MethodCrypto:
		return 900 * time.Second
	default:
		return 0
	}
}

// SettlesSynchronously reports whether the sandbox resolves a create call
// for this method without any status polling.
func (m Method) SettlesSynchronously() bool {
	return m == MethodCard || m == MethodPayPal
}

// PaymentRequest is a single logical payment attempt.
type PaymentRequest struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         Method          `json:"paymentMethod"`
	Status         Status          `json:"status"`
	Message        string          `json:"message,omitempty"`
	MerchantID     string          `json:"merchantId,omitempty"`
	CustomerEmail  string          `json:"customerEmail,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ExpiredAt reports whether the request has an expiry that lies at or before now.
func (p *PaymentRequest) ExpiredAt(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// PaymentEvent is published on every creation and state change.
type PaymentEvent struct {
	Type           string          `json:"type"`
	PaymentID      string          `json:"payment_id"`
	Status         Status          `json:"status"`
	PreviousStatus Status          `json:"previous_status,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         Method          `json:"payment_method"`
	Message        string          `json:"message,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

const (
	EventPaymentCreated      = "payment.created"
	EventPaymentStateChanged = "payment.state.changed"
	EventPaymentTerminal     = "payments.terminal"
)
