package sandbox

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// Sandbox quotes in fiat units per coin.
var cryptoRates = map[string]decimal.Decimal{
	"BTC":  decimal.NewFromInt(65000),
	"ETH":  decimal.NewFromInt(3500),
	"USDT": decimal.NewFromInt(1),
	"USDC": decimal.NewFromInt(1),
}

// CreateCryptoPayment quotes the crypto amount and issues a deposit address.
func (s *Simulator) CreateCryptoPayment(ctx context.Context, req *models.CryptoPaymentRequest) (*models.CryptoPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	p := s.newPayment("CRYPTO", req.Amount, req.Currency, models.MethodCrypto, req.MerchantID, req.Customer)
	ttl := models.MethodCrypto.DefaultTTL()
	p.ExpiresAt = p.CreatedAt.Add(ttl)
	if err := s.insert(ctx, p); err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, p, models.StatusPending, "Waiting for the deposit"); err != nil {
		return nil, err
	}

	return &models.CryptoPaymentResponse{
		Success:        true,
		PaymentID:      p.ID,
		WalletAddress:  walletAddress(req.CryptoCurrency),
		CryptoAmount:   QuoteCrypto(req.Amount, req.CryptoCurrency),
		CryptoCurrency: req.CryptoCurrency,
		ExpirySeconds:  int(ttl.Seconds()),
	}, nil
}

// QuoteCrypto converts a fiat amount into coin, rounded to 8 places.
func QuoteCrypto(amount decimal.Decimal, coin string) decimal.Decimal {
	rate, ok := cryptoRates[strings.ToUpper(coin)]
	if !ok {
		return decimal.Zero
	}
	return amount.DivRound(rate, 8)
}

func walletAddress(coin string) string {
	a, b := uuid.New(), uuid.New()
	raw := hex.EncodeToString(append(a[:], b[:]...))
	if strings.EqualFold(coin, "BTC") {
		return "bc1q" + raw[:38]
	}
	return "0x" + raw[:40]
}
