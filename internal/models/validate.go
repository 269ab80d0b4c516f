package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
)

// CryptoCurrencies supported by crypto payments.
var CryptoCurrencies = []string{"BTC", "ETH", "USDT", "USDC"}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validationf("amount must be positive")
	}
	return nil
}

// normalCurrency upper-cases an ISO 4217 style code and checks it is three
// ASCII letters.
func normalCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return "", apperr.Validationf("currency is required")
	}
	if len(code) != 3 {
		return "", apperr.Validationf("currency %q must be a 3-letter code", currency)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", apperr.Validationf("currency %q must be a 3-letter code", currency)
		}
	}
	return code, nil
}

// IsCryptoCurrency reports whether code is a supported crypto asset.
func IsCryptoCurrency(code string) bool {
	for _, c := range CryptoCurrencies {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

// Validate checks a create-payment request before it leaves the client.
func (r *CreatePaymentRequest) Validate(now time.Time) error {
	if err := validAmount(r.Amount); err != nil {
		return err
	}
	currency, err := normalCurrency(r.Currency)
	if err != nil {
		return err
	}
	r.Currency = currency
	if r.PaymentMethod == "" {
		return apperr.Validationf("payment method is required")
	}
	method, err := ParseMethod(string(r.PaymentMethod))
	if err != nil {
		return apperr.Validationf("%s", err.Error())
	}
	r.PaymentMethod = method

	switch method {
	case MethodCard:
		if r.Card == nil {
			return apperr.Validationf("card details are required")
		}
		return r.Card.Validate(now)
	case MethodMobileMoney:
		if r.MobileMoney == nil || r.MobileMoney.Provider == "" {
			return apperr.Validationf("mobile money provider is required")
		}
		if !validPhone(r.MobileMoney.Phone) {
			return apperr.Validationf("mobile money phone number is invalid")
		}
	case MethodCrypto:
		if r.Crypto == nil || !IsCryptoCurrency(r.Crypto.CryptoCurrency) {
			return apperr.Validationf("crypto target currency must be one of %s", strings.Join(CryptoCurrencies, ", "))
		}
	}
	return nil
}

// Validate checks number, expiry and CVV. now decides whether the card has expired.
func (c *CardDetails) Validate(now time.Time) error {
	number := strings.ReplaceAll(strings.ReplaceAll(c.Number, " ", ""), "-", "")
	if len(number) < 13 || len(number) > 19 || !luhn(number) {
		return apperr.Validationf("card number is invalid")
	}
	if c.ExpiryMonth < 1 || c.ExpiryMonth > 12 {
		return apperr.Validationf("card expiry month is invalid")
	}
	year := c.ExpiryYear
	if year < 100 {
		year += 2000
	}
	// a card is valid through the last day of its expiry month
	expires := time.Date(year, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(expires) {
		return apperr.Validationf("card has expired")
	}
	if len(c.CVV) < 3 || len(c.CVV) > 4 || !allDigits(c.CVV) {
		return apperr.Validationf("card CVV is invalid")
	}
	return nil
}

// Validate checks a QR request. Static codes carry no amount.
func (r *QRCodeRequest) Validate() error {
	if r.Type == "" {
		r.Type = QRTypeDynamic
	}
	r.Type = QRType(strings.ToUpper(string(r.Type)))
	switch r.Type {
	case QRTypeStatic:
		return nil
	case QRTypeDynamic:
	default:
		return apperr.Validationf("unknown QR type %q", r.Type)
	}
	if err := validAmount(r.Amount); err != nil {
		return err
	}
	currency, err := normalCurrency(r.Currency)
	if err != nil {
		return err
	}
	r.Currency = currency
	if r.ExpiryMinutes < 0 {
		return apperr.Validationf("expiry minutes must not be negative")
	}
	return nil
}

func (r *CryptoPaymentRequest) Validate() error {
	if err := validAmount(r.Amount); err != nil {
		return err
	}
	currency, err := normalCurrency(r.Currency)
	if err != nil {
		return err
	}
	r.Currency = currency
	if r.CryptoCurrency == "" {
		r.CryptoCurrency = "BTC"
	}
	if !IsCryptoCurrency(r.CryptoCurrency) {
		return apperr.Validationf("crypto currency must be one of %s", strings.Join(CryptoCurrencies, ", "))
	}
	r.CryptoCurrency = strings.ToUpper(r.CryptoCurrency)
	return nil
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := number[i]
		if d < '0' || d > '9' {
			return false
		}
		n := int(d - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func validPhone(phone string) bool {
	p := strings.TrimPrefix(strings.ReplaceAll(phone, " ", ""), "+")
	return len(p) >= 7 && len(p) <= 15 && allDigits(p)
}
