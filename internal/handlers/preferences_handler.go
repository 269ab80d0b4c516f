package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

type PreferencesHandler struct {
	store interfaces.PreferenceStore
}

func NewPreferencesHandler(store interfaces.PreferenceStore) *PreferencesHandler {
	return &PreferencesHandler{store: store}
}

func (h *PreferencesHandler) Get(c *gin.Context) {
	key := c.Param("key")
	value, err := h.store.Get(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PreferenceValue{Key: key, Value: value})
}

func (h *PreferencesHandler) Put(c *gin.Context) {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperr.Validationf("invalid request body: %v", err))
		return
	}

	key := c.Param("key")
	if err := h.store.Set(c.Request.Context(), c.Param("id"), key, body.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PreferenceValue{Key: key, Value: body.Value})
}
