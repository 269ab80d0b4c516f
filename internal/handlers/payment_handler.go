package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

type PaymentHandler struct {
	backend interfaces.PaymentBackend
}

func NewPaymentHandler(backend interfaces.PaymentBackend) *PaymentHandler {
	return &PaymentHandler{backend: backend}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Warn("Invalid payment request", zap.Error(err))
		respondError(c, apperr.Validationf("invalid request body: %v", err))
		return
	}

	resp, err := h.backend.CreatePayment(ctx, &req, c.GetString("idempotency_key"))
	if err != nil {
		respondError(c, err)
		return
	}

	telemetry.Logger.Info("Payment created",
		zap.String("payment_id", resp.TransactionID),
		zap.String("payment_method", string(resp.PaymentMethod)),
		zap.String("status", string(resp.Status)),
		zap.String("amount", resp.Amount.String()),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	if !resp.Success {
		c.JSON(http.StatusPaymentRequired, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetTransaction answers status polls for payments, QR codes and crypto payments alike.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	resp, err := h.backend.GetTransactionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	var filter models.TransactionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, apperr.Validationf("invalid query: %v", err))
		return
	}

	list, err := h.backend.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	id := c.Param("id")

	resp, err := h.backend.CancelPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	telemetry.Logger.Info("Payment cancelled", zap.String("payment_id", id))
	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) CreateQRCode(c *gin.Context) {
	var req models.QRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validationf("invalid request body: %v", err))
		return
	}

	resp, err := h.backend.CreateQRCode(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	telemetry.Logger.Info("QR code created", zap.String("qr_id", resp.QRID), zap.String("type", string(req.Type)))
	c.JSON(http.StatusCreated, resp)
}

func (h *PaymentHandler) CreateCryptoPayment(c *gin.Context) {
	var req models.CryptoPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validationf("invalid request body: %v", err))
		return
	}

	resp, err := h.backend.CreateCryptoPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	telemetry.Logger.Info("Crypto payment created",
		zap.String("payment_id", resp.PaymentID),
		zap.String("crypto_currency", resp.CryptoCurrency),
	)
	c.JSON(http.StatusCreated, resp)
}
