package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
)

var now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func validCard() *CardDetails {
	return &CardDetails{Number: "4242 4242 4242 4242", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "123"}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusPending, true},
		{StatusCreated, StatusCancelled, true},
		{StatusCreated, StatusFailed, true},
		{StatusCreated, StatusCompleted, false},
		{StatusPending, StatusPending, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusCancelled, true},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusExpired, StatusCompleted, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{in: "card", want: MethodCard},
		{in: "CARD", want: MethodCard},
		{in: "mobile-money", want: MethodMobileMoney},
		{in: " qr ", want: MethodQR},
		{in: "cheque", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMethod(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMethod(%q): expected %s, got %s (err=%v)", tt.in, tt.want, got, err)
		}
	}
}

func TestMethodDefaultTTL(t *testing.T) {
	t.Parallel()

	if got := MethodQR.DefaultTTL(); got != 300*time.Second {
		t.Fatalf("qr ttl: got %v", got)
	}
	if got := MethodCrypto.DefaultTTL(); got != 900*time.Second {
		t.Fatalf("crypto ttl: got %v", got)
	}
	if got := MethodCard.DefaultTTL(); got != 0 {
		t.Fatalf("card ttl: got %v", got)
	}
}

func TestCreatePaymentRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     CreatePaymentRequest
		wantErr bool
	}{
		{
			name: "valid_card",
			req:  CreatePaymentRequest{Amount: decimal.NewFromInt(100), Currency: "USD", PaymentMethod: "CARD", Card: validCard()},
		},
		{
			name:    "zero_amount",
			req:     CreatePaymentRequest{Amount: decimal.Zero, Currency: "USD", PaymentMethod: MethodCard, Card: validCard()},
			wantErr: true,
		},
		{
			name:    "missing_currency",
			req:     CreatePaymentRequest{Amount: decimal.NewFromInt(5), PaymentMethod: MethodCard, Card: validCard()},
			wantErr: true,
		},
		{
			name:    "unknown_method",
			req:     CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "USD", PaymentMethod: "cheque"},
			wantErr: true,
		},
		{
			name: "bad_luhn",
			req: CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "USD", PaymentMethod: MethodCard,
				Card: &CardDetails{Number: "4242424242424241", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "123"}},
			wantErr: true,
		},
		{
			name: "expired_card",
			req: CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "USD", PaymentMethod: MethodCard,
				Card: &CardDetails{Number: "4242424242424242", ExpiryMonth: 2, ExpiryYear: 26, CVV: "123"}},
			wantErr: true,
		},
		{
			name: "card_valid_through_expiry_month",
			req: CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "USD", PaymentMethod: MethodCard,
				Card: &CardDetails{Number: "4242424242424242", ExpiryMonth: 3, ExpiryYear: 26, CVV: "123"}},
		},
		{
			name: "mobile_money",
			req: CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "KES", PaymentMethod: MethodMobileMoney,
				MobileMoney: &MobileMoneyDetails{Provider: "mpesa", Phone: "+254 700000000"}},
		},
		{
			name: "mobile_money_no_phone",
			req: CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "KES", PaymentMethod: MethodMobileMoney,
				MobileMoney: &MobileMoneyDetails{Provider: "mpesa"}},
			wantErr: true,
		},
		{
			name: "crypto_bad_chain",
			req: CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "USD", PaymentMethod: MethodCrypto,
				Crypto: &CryptoDetails{CryptoCurrency: "DOGE"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate(now)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNormalCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"USD", "USD", false},
		{" kes ", "KES", false},
		{"ÄB", "", true},
		{"US1", "", true},
		{"USDT", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := normalCurrency(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCreatePaymentRequestValidate_UppercasesCurrency(t *testing.T) {
	t.Parallel()

	req := CreatePaymentRequest{Amount: decimal.NewFromInt(5), Currency: "eur", PaymentMethod: MethodCard, Card: validCard()}
	if err := req.Validate(now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Currency != "EUR" {
		t.Fatalf("expected EUR, got %v", req.Currency)
	}
}

func TestQRCodeRequestValidate(t *testing.T) {
	t.Parallel()

	static := QRCodeRequest{Type: "static"}
	if err := static.Validate(); err != nil {
		t.Fatalf("static QR without amount: %v", err)
	}

	dynamic := QRCodeRequest{Currency: "USD"}
	if err := dynamic.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for dynamic QR without amount, got %v", err)
	}
	if dynamic.Type != QRTypeDynamic {
		t.Fatalf("expected default type DYNAMIC, got %s", dynamic.Type)
	}
}

func TestCryptoPaymentRequestDefaults(t *testing.T) {
	t.Parallel()

	req := CryptoPaymentRequest{Amount: decimal.NewFromInt(10), Currency: "USD"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.CryptoCurrency != "BTC" {
		t.Fatalf("expected BTC default, got %s", req.CryptoCurrency)
	}
}

func TestAmountAcceptsNumbersAndStrings(t *testing.T) {
	t.Parallel()

	var req CreatePaymentRequest
	if err := json.Unmarshal([]byte(`{"amount":100,"currency":"USD","paymentMethod":"card"}`), &req); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if !req.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", req.Amount)
	}
	if err := json.Unmarshal([]byte(`{"amount":"750.50"}`), &req); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if req.Amount.String() != "750.5" {
		t.Fatalf("expected 750.5, got %s", req.Amount)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rows := []BulkRow{{Status: RowValid}, {Status: RowValid}, {Status: RowWarning}, {Status: RowError}}
	got := Summarize(rows)
	if got != (ValidationSummary{Valid: 2, Warnings: 1, Errors: 1}) {
		t.Fatalf("unexpected summary %+v", got)
	}
}
