package paystatus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// Config tunes polling for every session started by a Client.
type Config struct {
	PollInterval    time.Duration
	PollTimeout     time.Duration // per fetch; defaults to PollInterval
	MaxPollFailures int           // consecutive failures before the status is reported unknown
	DefaultTTL      time.Duration // used when neither backend, flow nor method sets one
	Logger          *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Second,
		MaxPollFailures: 3,
		DefaultTTL:      10 * time.Minute,
	}
}

// Created is what the backend returns for a successful create call.
type Created struct {
	ID        string
	Status    models.Status
	ExpiresIn time.Duration
	Message   string
}

// InitiateFunc sends the create request. It is called exactly once.
type InitiateFunc func(ctx context.Context) (Created, error)

// FetchFunc queries the backend for the status of a request.
type FetchFunc func(ctx context.Context, id string) (*models.StatusResponse, error)

// Flow describes one payment attempt.
type Flow struct {
	Amount     decimal.Decimal
	Currency   string
	Method     models.Method
	TTL        time.Duration
	NoExpiry   bool // static QR codes stay open until settled or cancelled
	Initiate   InitiateFunc
	Fetch      FetchFunc
	OnTerminal ResultFunc
	OnDegraded func(req models.PaymentRequest)
}

var ErrIncompleteFlow = errors.New("paystatus: flow needs both Initiate and Fetch")

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = cfg.PollInterval
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = def.MaxPollFailures
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	return &Client{cfg: cfg}
}

func (c *Client) logger() *zap.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return telemetry.Logger
}

// Session is one live payment request: its machine, its poller and its expiry timer.
type Session struct {
	machine    *Machine
	expiry     *ExpiryTimer
	fetch      FetchFunc
	onDegraded func(models.PaymentRequest)
	cfg        Config
	logger     *zap.Logger

	cancel   context.CancelFunc
	pollDone chan struct{}
	polls    atomic.Int64
}

// Start creates the payment and begins tracking it. A failed create returns
// the error unchanged and starts nothing. Cancelling ctx tears the session
// down and cancels the request if it is still open.
func (c *Client) Start(ctx context.Context, flow Flow) (*Session, error) {
	if flow.Initiate == nil || flow.Fetch == nil {
		return nil, ErrIncompleteFlow
	}

	created, err := flow.Initiate(ctx)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.New("paystatus: backend returned no request id")
	}

	now := time.Now()
	var ttl time.Duration
	if !flow.NoExpiry {
		ttl = ResolveTTL(created.ExpiresIn, flow.TTL, flow.Method, c.cfg.DefaultTTL)
	}
	req := models.PaymentRequest{
		ID:        created.ID,
		Amount:    flow.Amount,
		Currency:  flow.Currency,
		Method:    flow.Method,
		Message:   created.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		req.ExpiresAt = now.Add(ttl)
	}

	logger := c.logger().With(zap.String("payment_id", created.ID))
	onTerminal := flow.OnTerminal
	s := &Session{
		machine: NewMachine(req, func(status models.Status, final models.PaymentRequest) {
			logger.Info("Payment request reached terminal state", zap.String("status", string(status)))
			if onTerminal != nil {
				onTerminal(status, final)
			}
		}),
		fetch:      flow.Fetch,
		onDegraded: flow.OnDegraded,
		cfg:        c.cfg,
		logger:     logger,
		pollDone:   make(chan struct{}),
	}
	s.machine.Start()

	s.expiry = StartExpiry(ttl, func() {
		if s.machine.Expire() {
			logger.Info("Payment request expired", zap.Duration("ttl", ttl))
		}
	})

	if created.Status.IsTerminal() {
		s.machine.Apply(created.Status, created.Message)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(pollCtx)

	return s, nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.pollDone)
	defer s.expiry.Stop()

	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			if s.machine.Cancel() {
				s.logger.Info("Payment request cancelled on teardown")
			}
			return
		case <-s.machine.Terminated():
			return
		case <-timer.C:
		}

		// the next select observes whichever of these fired alongside the timer
		if ctx.Err() != nil || s.machine.Status().IsTerminal() {
			continue
		}

		s.poll(ctx, &failures)
		timer.Reset(s.cfg.PollInterval)
	}
}

func (s *Session) poll(ctx context.Context, failures *int) {
	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()

	s.polls.Add(1)
	resp, err := s.fetch(pollCtx, s.ID())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		*failures++
		telemetry.StatusPolls.WithLabelValues("error").Inc()
		s.logger.Warn("Status poll failed",
			zap.Int("consecutive_failures", *failures),
			zap.Error(err),
		)
		if *failures >= s.cfg.MaxPollFailures && s.machine.SetDegraded(true) {
			s.logger.Warn("Payment status unknown, backend unreachable")
			if s.onDegraded != nil {
				s.onDegraded(s.machine.Request())
			}
		}
		return
	}

	telemetry.StatusPolls.WithLabelValues("ok").Inc()
	*failures = 0
	s.machine.SetDegraded(false)
	if resp != nil {
		s.machine.Apply(resp.Status, resp.Message)
	}
}

func (s *Session) ID() string {
	return s.machine.Request().ID
}

func (s *Session) Status() models.Status {
	return s.machine.Status()
}

func (s *Session) Request() models.PaymentRequest {
	return s.machine.Request()
}

// Degraded reports whether the status is currently unknown.
func (s *Session) Degraded() bool {
	return s.machine.Degraded()
}

func (s *Session) TimeLeft() time.Duration {
	return s.expiry.TimeLeft()
}

// Polls returns how many status fetches the session has issued.
func (s *Session) Polls() int64 {
	return s.polls.Load()
}

// Cancel moves an open request to CANCELLED and stops its timers.
// It reports whether the request was still open.
func (s *Session) Cancel() bool {
	ok := s.machine.Cancel()
	s.cancel()
	s.expiry.Stop()
	return ok
}

// Close cancels the session and waits for the poller to exit, so no fetch is
// issued after it returns.
func (s *Session) Close() {
	s.Cancel()
	<-s.pollDone
}

// Done is closed once the terminal callback has returned.
func (s *Session) Done() <-chan struct{} {
	return s.machine.Dispatched()
}

// Wait blocks until the terminal result was dispatched or ctx ends.
func (s *Session) Wait(ctx context.Context) (models.Status, error) {
	select {
	case <-s.Done():
		return s.Status(), nil
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}
