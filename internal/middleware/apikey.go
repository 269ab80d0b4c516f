package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// APIKeyMiddleware requires "Authorization: Bearer <key>" with one of keys.
// With no keys configured every request is allowed.
func APIKeyMiddleware(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if ok && validKey(strings.TrimSpace(token), keys) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:     "missing or invalid API key",
			ErrorCode: apperr.CodeUnauthorized,
		})
	}
}

func validKey(token string, keys []string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(token), []byte(k)) == 1 {
			return true
		}
	}
	return false
}
