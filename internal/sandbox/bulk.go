package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// bulkSteps is the fixed progression of a bulk job, one step per poll.
var bulkSteps = []struct {
	status   models.BulkStatus
	progress int
}{
	{models.BulkQueued, 0},
	{models.BulkProcessing, 30},
	{models.BulkValidating, 60},
	{models.BulkExecuting, 90},
	{models.BulkCompleted, 100},
}

type bulkJob struct {
	mu         sync.Mutex
	step       int
	merchantID string
	job        models.BulkJob
}

func (j *bulkJob) response() *models.BulkJobResponse {
	return &models.BulkJobResponse{
		JobID:     j.job.JobID,
		Status:    j.job.Status,
		Progress:  j.job.Progress,
		Processed: j.job.Processed,
		Error:     j.job.Error,
	}
}

// StartBulkJob queues validated rows for execution. Files with error rows are rejected.
func (s *Simulator) StartBulkJob(ctx context.Context, rows []models.BulkRow, merchantID string) (*models.BulkJobResponse, error) {
	if len(rows) == 0 {
		return nil, apperr.Validationf("bulk file has no payment rows")
	}
	if n := models.Summarize(rows).Errors; n > 0 {
		return nil, apperr.Validationf("bulk file has %d invalid rows", n)
	}
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	j := &bulkJob{
		merchantID: merchantID,
		job: models.BulkJob{
			JobID:     "job-" + uuid.New().String(),
			Status:    models.BulkQueued,
			Rows:      rows,
			CreatedAt: s.now(),
		},
	}

	s.mu.Lock()
	s.jobs[j.job.JobID] = j
	s.mu.Unlock()

	telemetry.BulkJobs.WithLabelValues("started").Inc()
	telemetry.Logger.Info("Bulk job queued", zap.String("job_id", j.job.JobID), zap.Int("rows", len(rows)))
	return j.response(), nil
}

// GetBulkJob advances the job one step and reports it. Reaching completed
// executes every row as a bank transfer.
func (s *Simulator) GetBulkJob(ctx context.Context, id string) (*models.BulkJobResponse, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: bulk job %s", apperr.ErrNotFound, id)
	}
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.job.Status.IsTerminal() {
		return j.response(), nil
	}

	if s.opts.BulkFailureRate > 0 && s.rng.Float64() < s.opts.BulkFailureRate {
		s.failJob(j, fmt.Sprintf("bulk job failed while %s", j.job.Status))
		return j.response(), nil
	}

	j.step++
	next := bulkSteps[j.step]
	if next.status == models.BulkCompleted {
		// a poll that times out must not abandon a half-executed job
		processed, err := s.executeBulk(context.WithoutCancel(ctx), j)
		j.job.Processed = processed
		if err != nil {
			s.failJob(j, err.Error())
			return j.response(), nil
		}
		telemetry.BulkJobs.WithLabelValues("completed").Inc()
		telemetry.Logger.Info("Bulk job completed", zap.String("job_id", id), zap.Int("processed", processed))
	}
	j.job.Status = next.status
	j.job.Progress = next.progress
	return j.response(), nil
}

func (s *Simulator) failJob(j *bulkJob, reason string) {
	j.job.Status = models.BulkFailed
	j.job.Error = reason
	telemetry.BulkJobs.WithLabelValues("failed").Inc()
	telemetry.Logger.Warn("Bulk job failed", zap.String("job_id", j.job.JobID), zap.String("reason", reason))
}

func (s *Simulator) executeBulk(ctx context.Context, j *bulkJob) (int, error) {
	var processed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BulkConcurrency)

	for _, row := range j.job.Rows {
		if row.Status == models.RowError {
			continue
		}
		row := row
		g.Go(func() error {
			amount, err := decimal.NewFromString(strings.TrimSpace(row.Field(models.ColAmount)))
			if err != nil {
				return fmt.Errorf("row %d: invalid amount: %w", row.ID, err)
			}
			customer := &models.Customer{
				Name:  row.Field(models.ColRecipient),
				Email: row.Field(models.ColEmail),
			}
			currency := strings.ToUpper(strings.TrimSpace(row.Field(models.ColCurrency)))

			p := s.newPayment("TXN", amount, currency, models.MethodBankTransfer, j.merchantID, customer)
			if err := s.insert(ctx, p); err != nil {
				return fmt.Errorf("row %d: %w", row.ID, err)
			}
			if p, err = s.transition(ctx, p, models.StatusPending, ""); err != nil {
				return fmt.Errorf("row %d: %w", row.ID, err)
			}
			if _, err = s.transition(ctx, p, models.StatusCompleted, "Bulk payment executed"); err != nil {
				return fmt.Errorf("row %d: %w", row.ID, err)
			}
			processed.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(processed.Load()), err
}
