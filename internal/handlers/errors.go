package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		telemetry.Logger.Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		message = "internal error"
	}
	c.JSON(status, models.ErrorResponse{
		Error:     message,
		ErrorCode: apperr.Kind(err),
	})
}
