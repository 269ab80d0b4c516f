package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/paystatus"
	"github.com/akylbek/payment-system/sunny-gateway/internal/sdk"
)

const cancelTimeout = 5 * time.Second

func newPayCommand(a *app) *cobra.Command {
	var (
		amount, currency, method string
		cardNumber, expiry, cvv  string
		provider, phone, coin    string
		email, idempotencyKey    string
		ttl                      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Create a payment and follow it until it settles",
		Example: `  sunny pay --amount 25 --currency USD --method card --card-number 4242424242424242 --expiry 12/29 --cvv 123
  sunny pay --amount 250 --currency KES --method mobile_money --provider mpesa --phone +254712345678`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}

			req := &models.CreatePaymentRequest{
				Amount:        value,
				Currency:      strings.ToUpper(currency),
				PaymentMethod: models.Method(method),
			}
			if email != "" {
				req.Customer = &models.Customer{Email: email}
			}
			if cardNumber != "" {
				month, year, err := parseExpiry(expiry)
				if err != nil {
					return err
				}
				req.Card = &models.CardDetails{Number: cardNumber, ExpiryMonth: month, ExpiryYear: year, CVV: cvv}
			}
			if provider != "" || phone != "" {
				req.MobileMoney = &models.MobileMoneyDetails{Provider: provider, Phone: phone}
			}
			if coin != "" {
				req.Crypto = &models.CryptoDetails{CryptoCurrency: strings.ToUpper(coin)}
			}

			ctx := cmd.Context()
			session, err := a.client.Pay(ctx, req, idempotencyKey, sdk.Hooks{TTL: ttl})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Payment %s created\n", session.ID())
			return a.follow(ctx, session)
		},
	}

	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "Amount in major units")
	f.StringVar(&currency, "currency", "USD", "ISO currency code")
	f.StringVar(&method, "method", "card", "card, mobile_money, crypto, qr, bank_transfer or paypal")
	f.StringVar(&cardNumber, "card-number", "", "Card number")
	f.StringVar(&expiry, "expiry", "", "Card expiry as MM/YY")
	f.StringVar(&cvv, "cvv", "", "Card CVV")
	f.StringVar(&provider, "provider", "", "Mobile money provider")
	f.StringVar(&phone, "phone", "", "Mobile money phone number")
	f.StringVar(&coin, "coin", "", "Crypto currency for crypto payments")
	f.StringVar(&email, "email", "", "Customer email")
	f.StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key")
	f.DurationVar(&ttl, "ttl", 0, "Client-side expiry when the backend sets none")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseExpiry(s string) (int, int, error) {
	month, year, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("expiry must be MM/YY, got %q", s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil {
		return 0, 0, fmt.Errorf("expiry must be MM/YY, got %q", s)
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return 0, 0, fmt.Errorf("expiry must be MM/YY, got %q", s)
	}
	return m, y, nil
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status of a payment, QR code or crypto payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			resp, err := a.client.Backend().GetTransactionStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(a.out, resp)
			return nil
		},
	}
}

func newCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an open payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			resp, err := a.client.Backend().CancelPayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(a.out, resp)
			return nil
		},
	}
}

func newQRCommand(a *app) *cobra.Command {
	var (
		amount, currency, qrType, out string
		expiryMinutes                 int
	)

	cmd := &cobra.Command{
		Use:   "qr",
		Short: "Issue a QR code and wait for it to be paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			req := &models.QRCodeRequest{
				Currency:      strings.ToUpper(currency),
				Type:          models.QRType(qrType),
				ExpiryMinutes: expiryMinutes,
			}
			if amount != "" {
				value, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q", amount)
				}
				req.Amount = value
			}

			ctx := cmd.Context()
			session, qr, err := a.client.PayQR(ctx, req, sdk.Hooks{})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "QR %s\n%s\n", qr.QRID, qr.QRContent)
			if out != "" {
				if err := writeDataURL(out, qr.QRImageURL); err != nil {
					session.Close()
					return err
				}
				fmt.Fprintf(a.out, "Image written to %s\n", out)
			}
			return a.follow(ctx, session)
		},
	}

	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "Amount; omitted for static codes")
	f.StringVar(&currency, "currency", "USD", "ISO currency code")
	f.StringVar(&qrType, "type", string(models.QRTypeDynamic), "DYNAMIC or STATIC")
	f.IntVar(&expiryMinutes, "expiry-minutes", 0, "Minutes before a dynamic code expires (default 5)")
	f.StringVar(&out, "out", "", "Write the QR image as PNG to this file")
	return cmd
}

func writeDataURL(path, dataURL string) error {
	_, encoded, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return fmt.Errorf("unexpected image url")
	}
	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return os.WriteFile(path, png, 0o644)
}

func newCryptoCommand(a *app) *cobra.Command {
	var amount, currency, coin string

	cmd := &cobra.Command{
		Use:   "crypto",
		Short: "Quote a crypto payment and wait for the deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadSDK(); err != nil {
				return err
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}

			ctx := cmd.Context()
			session, quote, err := a.client.PayCrypto(ctx, &models.CryptoPaymentRequest{
				Amount:         value,
				Currency:       strings.ToUpper(currency),
				CryptoCurrency: coin,
			}, sdk.Hooks{})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Send %s %s to %s\n", quote.CryptoAmount, quote.CryptoCurrency, quote.WalletAddress)
			return a.follow(ctx, session)
		},
	}

	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "Fiat amount")
	f.StringVar(&currency, "currency", "USD", "Fiat currency")
	f.StringVar(&coin, "coin", "BTC", "BTC, ETH, USDT or USDC")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// follow prints the session once a second until it settles. Interrupting
// cancels the request on the backend.
func (a *app) follow(ctx context.Context, session *paystatus.Session) error {
	defer session.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-session.Done():
			req := session.Request()
			fmt.Fprintf(a.out, "%s %s %s\n", req.ID, req.Status, req.Message)
			if req.Status != models.StatusCompleted {
				return fmt.Errorf("payment %s", strings.ToLower(string(req.Status)))
			}
			return nil

		case <-ctx.Done():
			cancelCtx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
			defer cancel()
			if err := a.client.Cancel(cancelCtx, session); err != nil {
				fmt.Fprintf(a.out, "cancel %s: %v\n", session.ID(), err)
			}
			return ctx.Err()

		case <-ticker.C:
			line := string(session.Status())
			if session.Degraded() {
				line = "status unknown, retrying"
			}
			if session.TimeLeft() > 0 {
				line += " " + paystatus.FormatCountdown(session.TimeLeft())
			}
			fmt.Fprintf(a.out, "%s %s\n", session.ID(), line)
		}
	}
}

func printStatus(w io.Writer, resp *models.StatusResponse) {
	fmt.Fprintf(w, "%s %s", resp.TransactionID, resp.Status)
	if resp.Message != "" {
		fmt.Fprintf(w, " %s", resp.Message)
	}
	fmt.Fprintln(w)
}
