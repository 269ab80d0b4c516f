package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardDetails struct {
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiryMonth"`
	ExpiryYear  int    `json:"expiryYear"`
	CVV         string `json:"cvv"`
	HolderName  string `json:"holderName,omitempty"`
}

type MobileMoneyDetails struct {
	Provider string `json:"provider"`
	Phone    string `json:"phone"`
}

type CryptoDetails struct {
	CryptoCurrency string `json:"cryptoCurrency"`
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	PaymentMethod Method              `json:"paymentMethod"`
	Card          *CardDetails        `json:"card,omitempty"`
	MobileMoney   *MobileMoneyDetails `json:"mobileMoney,omitempty"`
	Crypto        *CryptoDetails      `json:"crypto,omitempty"`
	Customer      *Customer           `json:"customer,omitempty"`
	MerchantID    string              `json:"merchantId,omitempty"`
}

type CreatePaymentResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId,omitempty"`
	Status        Status          `json:"status,omitempty"`
	Message       string          `json:"message,omitempty"`
	ErrorCode     string          `json:"errorCode,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	PaymentMethod Method          `json:"paymentMethod,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	ExpiresIn     int             `json:"expiresIn,omitempty"` // seconds
}

// StatusResponse answers a status poll for any payment-request id.
type StatusResponse struct {
	TransactionID string    `json:"transactionId"`
	Status        Status    `json:"status"`
	Message       string    `json:"message,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type QRType string

const (
	QRTypeDynamic QRType = "DYNAMIC"
	QRTypeStatic  QRType = "STATIC"
)

type QRCodeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          QRType          `json:"type"`
	ExpiryMinutes int             `json:"expiryMinutes"`
	MerchantID    string          `json:"merchantId,omitempty"`
}

type QRCodeResponse struct {
	Success    bool       `json:"success"`
	QRID       string     `json:"qrId"`
	QRContent  string     `json:"qrContent"`
	QRImageURL string     `json:"qrImageUrl"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	Message    string     `json:"message,omitempty"`
}

type CryptoPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CryptoCurrency string          `json:"cryptoCurrency"`
	Customer       *Customer       `json:"customer,omitempty"`
	MerchantID     string          `json:"merchantId,omitempty"`
}

type CryptoPaymentResponse struct {
	Success        bool            `json:"success"`
	PaymentID      string          `json:"paymentId"`
	WalletAddress  string          `json:"walletAddress"`
	CryptoAmount   decimal.Decimal `json:"cryptoAmount"`
	CryptoCurrency string          `json:"cryptoCurrency"`
	ExpirySeconds  int             `json:"expirySeconds"`
	Message        string          `json:"message,omitempty"`
}

// ErrorResponse is the body of every non-2xx gateway response.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

type PreferenceValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
