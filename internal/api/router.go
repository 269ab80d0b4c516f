package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/sunny-gateway/internal/handlers"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/middleware"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

type Dependencies struct {
	Backend     interfaces.PaymentBackend
	Preferences interfaces.PreferenceStore
	Cache       interfaces.ResponseCache
	APIKeys     []string
	Environment string
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sunny-gateway", "environment": deps.Environment})
	})

	authed := r.Group("", middleware.APIKeyMiddleware(deps.APIKeys))

	paymentHandler := handlers.NewPaymentHandler(deps.Backend)
	payments := authed.Group("/payments")
	{
		payments.POST("", middleware.IdempotencyMiddleware(deps.Cache), paymentHandler.CreatePayment)
		payments.POST("/:id/cancel", paymentHandler.CancelPayment)
	}
	authed.GET("/transactions", paymentHandler.ListTransactions)
	authed.GET("/transactions/:id", paymentHandler.GetTransaction)

	authed.POST("/qr-codes", paymentHandler.CreateQRCode)
	authed.GET("/qr-codes/:id/status", paymentHandler.GetTransaction)

	authed.POST("/crypto-payments", paymentHandler.CreateCryptoPayment)
	authed.GET("/crypto-payments/:id/status", paymentHandler.GetTransaction)

	bulkHandler := handlers.NewBulkHandler(deps.Backend)
	bulkJobs := authed.Group("/bulk-jobs")
	{
		bulkJobs.POST("", bulkHandler.StartJob)
		bulkJobs.POST("/validate", bulkHandler.Validate)
		bulkJobs.GET("/:id", bulkHandler.GetJob)
	}

	prefs := handlers.NewPreferencesHandler(deps.Preferences)
	authed.GET("/users/:id/preferences/:key", prefs.Get)
	authed.PUT("/users/:id/preferences/:key", prefs.Put)

	return r
}
