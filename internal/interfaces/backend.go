package interfaces

import (
	"context"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// PaymentBackend is everything the gateway exposes over REST.
// The sandbox simulator implements it; so do the SDK transports.
type PaymentBackend interface {
	CreatePayment(ctx context.Context, req *models.CreatePaymentRequest, idempotencyKey string) (*models.CreatePaymentResponse, error)
	GetTransactionStatus(ctx context.Context, id string) (*models.StatusResponse, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) (*models.TransactionList, error)
	CancelPayment(ctx context.Context, id string) (*models.StatusResponse, error)
	CreateQRCode(ctx context.Context, req *models.QRCodeRequest) (*models.QRCodeResponse, error)
	CreateCryptoPayment(ctx context.Context, req *models.CryptoPaymentRequest) (*models.CryptoPaymentResponse, error)
	StartBulkJob(ctx context.Context, rows []models.BulkRow, merchantID string) (*models.BulkJobResponse, error)
	GetBulkJob(ctx context.Context, id string) (*models.BulkJobResponse, error)
}
