package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
)

const (
	DefaultTransactionLimit = 20
	MaxTransactionLimit     = 100
)

// TransactionFilter narrows GET /transactions. Zero values match everything.
type TransactionFilter struct {
	Status     Status    `form:"status"`
	Method     Method    `form:"method"`
	MerchantID string    `form:"merchantId"`
	From       time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int       `form:"limit"`
	Offset     int       `form:"offset"`
}

// Normalize canonicalises the status and method and applies the page
// defaults. From is inclusive and To exclusive.
func (f *TransactionFilter) Normalize() error {
	if f.Status != "" {
		status, err := ParseStatus(string(f.Status))
		if err != nil {
			return apperr.Validationf("%s", err.Error())
		}
		f.Status = status
	}
	if f.Method != "" {
		method, err := ParseMethod(string(f.Method))
		if err != nil {
			return apperr.Validationf("%s", err.Error())
		}
		f.Method = method
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return apperr.Validationf("from must be before to")
	}
	if f.Offset < 0 {
		return apperr.Validationf("offset must not be negative")
	}
	switch {
	case f.Limit < 0:
		return apperr.Validationf("limit must not be negative")
	case f.Limit == 0:
		f.Limit = DefaultTransactionLimit
	case f.Limit > MaxTransactionLimit:
		f.Limit = MaxTransactionLimit
	}
	return nil
}

// Matches reports whether p passes every filter except paging.
func (f TransactionFilter) Matches(p *PaymentRequest) bool {
	switch {
	case f.Status != "" && p.Status != f.Status:
		return false
	case f.Method != "" && p.Method != f.Method:
		return false
	case f.MerchantID != "" && p.MerchantID != f.MerchantID:
		return false
	case !f.From.IsZero() && p.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && !p.CreatedAt.Before(f.To):
		return false
	}
	return true
}

// Transaction is one entry of a transaction listing.
type Transaction struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod Method          `json:"paymentMethod"`
	Status        Status          `json:"status"`
	Message       string          `json:"message,omitempty"`
	MerchantID    string          `json:"merchantId,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

func NewTransaction(p *PaymentRequest) Transaction {
	return Transaction{
		TransactionID: p.ID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: p.Method,
		Status:        p.Status,
		Message:       p.Message,
		MerchantID:    p.MerchantID,
		CustomerEmail: p.CustomerEmail,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
