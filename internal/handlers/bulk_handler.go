package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/bulk"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

const maxUploadBytes = 10 << 20

type BulkHandler struct {
	backend interfaces.PaymentBackend
}

func NewBulkHandler(backend interfaces.PaymentBackend) *BulkHandler {
	return &BulkHandler{backend: backend}
}

func readUpload(c *gin.Context) ([]models.BulkRow, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, apperr.Validationf("upload exceeds %d MiB", maxUploadBytes>>20)
	}
	if err != nil {
		return nil, apperr.Validationf("multipart field \"file\" is required")
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bulk.Parse(header.Filename, f)
}

// Validate previews an upload without starting a job.
func (h *BulkHandler) Validate(c *gin.Context) {
	rows, err := readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.BulkValidationResponse{Rows: rows, Summary: models.Summarize(rows)})
}

func (h *BulkHandler) StartJob(c *gin.Context) {
	rows, err := readUpload(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summary := models.Summarize(rows)
	if summary.Errors > 0 {
		c.JSON(http.StatusUnprocessableEntity, models.BulkValidationResponse{Rows: rows, Summary: summary})
		return
	}

	job, err := h.backend.StartBulkJob(c.Request.Context(), rows, c.PostForm("merchantId"))
	if err != nil {
		respondError(c, err)
		return
	}

	telemetry.Logger.Info("Bulk job started", zap.String("job_id", job.JobID), zap.Int("rows", len(rows)))
	c.JSON(http.StatusAccepted, job)
}

func (h *BulkHandler) GetJob(c *gin.Context) {
	job, err := h.backend.GetBulkJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
