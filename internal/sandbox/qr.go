package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

const (
	qrContentPrefix = "sunny://pay/"
	qrImageSize     = 256
)

type qrPayload struct {
	MerchantID string           `json:"m"`
	Amount     *decimal.Decimal `json:"a,omitempty"`
	Currency   string           `json:"c,omitempty"`
	Type       models.QRType    `json:"t"`
}

// CreateQRCode issues a QR payment request. Dynamic codes expire after
// ExpiryMinutes (5 by default); static codes carry no amount and never expire.
func (s *Simulator) CreateQRCode(ctx context.Context, req *models.QRCodeRequest) (*models.QRCodeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	payload := qrPayload{MerchantID: req.MerchantID, Type: req.Type}
	if req.Type == models.QRTypeDynamic {
		amount := req.Amount
		payload.Amount = &amount
		payload.Currency = req.Currency
	}
	content, err := encodeQRContent(payload)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(content, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	p := s.newPayment("QR", req.Amount, req.Currency, models.MethodQR, req.MerchantID, nil)
	var expiresAt *time.Time
	if req.Type == models.QRTypeDynamic {
		ttl := models.MethodQR.DefaultTTL()
		if req.ExpiryMinutes > 0 {
			ttl = time.Duration(req.ExpiryMinutes) * time.Minute
		}
		p.ExpiresAt = p.CreatedAt.Add(ttl)
		expiresAt = &p.ExpiresAt
	}
	if err := s.insert(ctx, p); err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, p, models.StatusPending, "Waiting for the customer to scan"); err != nil {
		return nil, err
	}

	return &models.QRCodeResponse{
		Success:    true,
		QRID:       p.ID,
		QRContent:  content,
		QRImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		ExpiresAt:  expiresAt,
	}, nil
}

func encodeQRContent(payload qrPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return qrContentPrefix + base64.StdEncoding.EncodeToString(data), nil
}
