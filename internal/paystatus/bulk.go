package paystatus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

type BulkFetchFunc func(ctx context.Context, jobID string) (*models.BulkJobResponse, error)

type BulkFlow struct {
	JobID      string
	Fetch      BulkFetchFunc
	OnProgress func(job models.BulkJobResponse)
	OnTerminal func(job models.BulkJobResponse)
	OnDegraded func(job models.BulkJobResponse)
}

var ErrIncompleteBulkFlow = errors.New("paystatus: bulk flow needs a job id and Fetch")

// BulkTracker follows a bulk job until it completes or fails.
// Reported progress never decreases.
type BulkTracker struct {
	mu       sync.Mutex
	job      models.BulkJobResponse
	degraded bool

	flow   BulkFlow
	cfg    Config
	logger *zap.Logger

	once     sync.Once
	cancel   context.CancelFunc
	pollDone chan struct{}
	done     chan struct{}
	polls    atomic.Int64
}

func (c *Client) TrackBulk(ctx context.Context, flow BulkFlow) (*BulkTracker, error) {
	if flow.JobID == "" || flow.Fetch == nil {
		return nil, ErrIncompleteBulkFlow
	}

	t := &BulkTracker{
		job:      models.BulkJobResponse{JobID: flow.JobID, Status: models.BulkQueued},
		flow:     flow,
		cfg:      c.cfg,
		logger:   c.logger().With(zap.String("job_id", flow.JobID)),
		pollDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	pollCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	go t.run(pollCtx)
	return t, nil
}

func (t *BulkTracker) run(ctx context.Context) {
	defer close(t.pollDone)

	timer := time.NewTimer(t.cfg.PollInterval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if t.poll(ctx, &failures) {
			return
		}
		timer.Reset(t.cfg.PollInterval)
	}
}

// poll reports whether the job reached a terminal state.
func (t *BulkTracker) poll(ctx context.Context, failures *int) bool {
	pollCtx, cancel := context.WithTimeout(ctx, t.cfg.PollTimeout)
	defer cancel()

	t.polls.Add(1)
	resp, err := t.flow.Fetch(pollCtx, t.flow.JobID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		*failures++
		telemetry.StatusPolls.WithLabelValues("error").Inc()
		t.logger.Warn("Bulk job poll failed", zap.Int("consecutive_failures", *failures), zap.Error(err))
		if *failures >= t.cfg.MaxPollFailures {
			t.mu.Lock()
			changed := !t.degraded
			t.degraded = true
			snapshot := t.job
			t.mu.Unlock()
			if changed && t.flow.OnDegraded != nil {
				t.flow.OnDegraded(snapshot)
			}
		}
		return false
	}
	telemetry.StatusPolls.WithLabelValues("ok").Inc()
	*failures = 0
	if resp == nil {
		return false
	}

	t.mu.Lock()
	t.degraded = false
	progress := t.job.Progress
	if resp.Progress > progress {
		progress = resp.Progress
	}
	if progress > 100 {
		progress = 100
	}
	t.job = *resp
	t.job.Progress = progress
	snapshot := t.job
	t.mu.Unlock()

	if t.flow.OnProgress != nil {
		t.flow.OnProgress(snapshot)
	}

	if !snapshot.Status.IsTerminal() {
		return false
	}
	t.finish(snapshot)
	return true
}

func (t *BulkTracker) finish(job models.BulkJobResponse) {
	t.once.Do(func() {
		t.logger.Info("Bulk job finished", zap.String("status", string(job.Status)), zap.Int("processed", job.Processed))
		if t.flow.OnTerminal != nil {
			t.flow.OnTerminal(job)
		}
		close(t.done)
	})
}

// Job returns the last observed job state.
func (t *BulkTracker) Job() models.BulkJobResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job
}

func (t *BulkTracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

func (t *BulkTracker) Polls() int64 {
	return t.polls.Load()
}

// Close stops polling and waits for the poller to exit.
func (t *BulkTracker) Close() {
	t.cancel()
	<-t.pollDone
}

// Done is closed after OnTerminal returned.
func (t *BulkTracker) Done() <-chan struct{} {
	return t.done
}

func (t *BulkTracker) Wait(ctx context.Context) (models.BulkJobResponse, error) {
	select {
	case <-t.done:
		return t.Job(), nil
	case <-ctx.Done():
		return t.Job(), ctx.Err()
	}
}
