// Package sandbox is the simulated payment backend. It settles card and
// PayPal payments immediately with a configurable success rate, settles
// asynchronous methods after a number of status polls, and expires them
// server-side once their TTL has passed.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/events"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// Random is the simulator's source of randomness.
type Random interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a goroutine-safe Random seeded with seed.
func NewRandom(seed int64) Random {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

var declineMessages = []string{
	"Payment declined by issuer",
	"Insufficient funds",
	"Payment processing failed",
}

type Options struct {
	SuccessRate      float64       // immediate methods
	AsyncSuccessRate float64       // asynchronous methods, decided when they settle
	PollsToSettle    int           // status polls before an asynchronous payment settles
	BulkFailureRate  float64       // chance per bulk poll that the job fails
	BulkConcurrency  int           // payments created in parallel when a bulk job completes
	Latency          time.Duration // simulated network delay per call
	Random           Random
}

func DefaultOptions() Options {
	return Options{
		SuccessRate:      0.95,
		AsyncSuccessRate: 0.95,
		PollsToSettle:    3,
		BulkConcurrency:  8,
	}
}

type Simulator struct {
	repo   interfaces.PaymentRepository
	events interfaces.EventPublisher
	opts   Options
	rng    Random
	now    func() time.Time

	mu   sync.Mutex
	jobs map[string]*bulkJob
}

// New returns a simulator backed by repo. A nil publisher drops events.
func New(repo interfaces.PaymentRepository, publisher interfaces.EventPublisher, opts Options) *Simulator {
	def := DefaultOptions()
	if opts.PollsToSettle <= 0 {
		opts.PollsToSettle = def.PollsToSettle
	}
	if opts.BulkConcurrency <= 0 {
		opts.BulkConcurrency = def.BulkConcurrency
	}
	rng := opts.Random
	if rng == nil {
		rng = NewRandom(time.Now().UnixNano())
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Simulator{
		repo:   repo,
		events: publisher,
		opts:   opts,
		rng:    rng,
		now:    time.Now,
		jobs:   make(map[string]*bulkJob),
	}
}

// CreatePayment validates and processes a payment. A decline is reported in
// the response with Success false, not as an error.
func (s *Simulator) CreatePayment(ctx context.Context, req *models.CreatePaymentRequest, idempotencyKey string) (*models.CreatePaymentResponse, error) {
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return s.createResponse(existing), nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	p := s.newPayment("TXN", req.Amount, req.Currency, req.PaymentMethod, req.MerchantID, req.Customer)
	p.IdempotencyKey = idempotencyKey
	if ttl := req.PaymentMethod.DefaultTTL(); ttl > 0 && !req.PaymentMethod.SettlesSynchronously() {
		p.ExpiresAt = p.CreatedAt.Add(ttl)
	}
	if err := s.insert(ctx, p); err != nil {
		if !errors.Is(err, apperr.ErrDuplicateKey) {
			return nil, err
		}
		// a concurrent request with the same key inserted first
		existing, getErr := s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		return s.createResponse(existing), nil
	}

	var err error
	if req.PaymentMethod.SettlesSynchronously() {
		if s.rng.Float64() < s.opts.SuccessRate {
			if p, err = s.transition(ctx, p, models.StatusPending, ""); err == nil {
				p, err = s.transition(ctx, p, models.StatusCompleted, "Payment processed successfully")
			}
		} else {
			msg := declineMessages[s.rng.Intn(len(declineMessages))]
			p, err = s.transition(ctx, p, models.StatusFailed, msg)
		}
	} else {
		p, err = s.transition(ctx, p, models.StatusPending, "Payment initiated, awaiting confirmation")
	}
	if err != nil {
		return nil, err
	}

	return s.createResponse(p), nil
}

func (s *Simulator) createResponse(p *models.PaymentRequest) *models.CreatePaymentResponse {
	resp := &models.CreatePaymentResponse{
		Success:       p.Status != models.StatusFailed,
		TransactionID: p.ID,
		Status:        p.Status,
		Message:       p.Message,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: p.Method,
		Timestamp:     p.UpdatedAt,
	}
	if !resp.Success {
		resp.ErrorCode = apperr.CodePaymentFailed
	}
	if !p.ExpiresAt.IsZero() && !p.Status.IsTerminal() {
		if left := p.ExpiresAt.Sub(s.now()); left > 0 {
			resp.ExpiresIn = int((left + time.Second - 1) / time.Second)
		}
	}
	return resp
}

// GetTransactionStatus answers a status poll for any payment, QR or crypto id.
// Each poll of an open request counts towards settling it.
func (s *Simulator) GetTransactionStatus(ctx context.Context, id string) (*models.StatusResponse, error) {
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return statusResponse(p), nil
	}

	if p.ExpiredAt(s.now()) {
		return s.settle(ctx, p, models.StatusExpired, "payment request expired")
	}

	polls, err := s.repo.RecordPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	if polls < s.opts.PollsToSettle {
		return statusResponse(p), nil
	}

	if s.rng.Float64() < s.opts.AsyncSuccessRate {
		return s.settle(ctx, p, models.StatusCompleted, "Payment completed")
	}
	return s.settle(ctx, p, models.StatusFailed, "Payment was not confirmed")
}

// ListTransactions pages through stored payments, newest first.
func (s *Simulator) ListTransactions(ctx context.Context, filter models.TransactionFilter) (*models.TransactionList, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	if err := s.delay(ctx); err != nil {
		return nil, err
	}

	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	list := &models.TransactionList{
		Transactions: make([]models.Transaction, 0, len(payments)),
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	for _, p := range payments {
		list.Transactions = append(list.Transactions, models.NewTransaction(p))
	}
	return list, nil
}

// settle applies a terminal status; losing the race to another writer
// returns whatever state won.
func (s *Simulator) settle(ctx context.Context, p *models.PaymentRequest, to models.Status, message string) (*models.StatusResponse, error) {
	updated, err := s.transition(ctx, p, to, message)
	if errors.Is(err, apperr.ErrInvalidTransition) {
		current, getErr := s.repo.GetByID(ctx, p.ID)
		if getErr != nil {
			return nil, getErr
		}
		return statusResponse(current), nil
	}
	if err != nil {
		return nil, err
	}
	return statusResponse(updated), nil
}

// CancelPayment cancels an open payment.
func (s *Simulator) CancelPayment(ctx context.Context, id string) (*models.StatusResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: payment %s is %s", apperr.ErrAlreadyTerminal, id, p.Status)
	}

	updated, err := s.transition(ctx, p, models.StatusCancelled, "payment request cancelled")
	if errors.Is(err, apperr.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: payment %s settled before cancel", apperr.ErrAlreadyTerminal, id)
	}
	if err != nil {
		return nil, err
	}
	return statusResponse(updated), nil
}

func statusResponse(p *models.PaymentRequest) *models.StatusResponse {
	return &models.StatusResponse{
		TransactionID: p.ID,
		Status:        p.Status,
		Message:       p.Message,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (s *Simulator) newPayment(prefix string, amount decimal.Decimal, currency string, method models.Method, merchantID string, customer *models.Customer) *models.PaymentRequest {
	now := s.now()
	p := &models.PaymentRequest{
		ID:         fmt.Sprintf("%s-%s", prefix, uuid.New().String()),
		Amount:     amount,
		Currency:   currency,
		Method:     method,
		Status:     models.StatusCreated,
		MerchantID: merchantID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if customer != nil {
		p.CustomerEmail = customer.Email
	}
	return p
}

func (s *Simulator) insert(ctx context.Context, p *models.PaymentRequest) error {
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, apperr.ErrDuplicateKey) {
			return err
		}
		telemetry.Logger.Error("Failed to save payment",
			zap.String("payment_id", p.ID),
			zap.Error(err),
		)
		return err
	}
	telemetry.PaymentsCreated.WithLabelValues(string(p.Method)).Inc()
	s.publish(ctx, event(models.EventPaymentCreated, p, ""))
	return nil
}

// transition moves p from its current status to to, publishing the change.
func (s *Simulator) transition(ctx context.Context, p *models.PaymentRequest, to models.Status, message string) (*models.PaymentRequest, error) {
	from := p.Status
	updated, err := s.repo.Transition(ctx, p.ID, from, to, message)
	if err != nil {
		return nil, err
	}

	telemetry.Logger.Info("Payment state transition",
		zap.String("payment_id", p.ID),
		zap.String("from_state", string(from)),
		zap.String("to_state", string(to)),
	)
	s.publish(ctx, event(models.EventPaymentStateChanged, updated, from))
	return updated, nil
}

func (s *Simulator) publish(ctx context.Context, e models.PaymentEvent) {
	if err := s.events.Publish(ctx, e); err != nil {
		telemetry.Logger.Warn("Failed to publish payment event",
			zap.String("payment_id", e.PaymentID),
			zap.String("event", e.Type),
			zap.Error(err),
		)
	}
}

func event(typ string, p *models.PaymentRequest, previous models.Status) models.PaymentEvent {
	return models.PaymentEvent{
		Type:           typ,
		PaymentID:      p.ID,
		Status:         p.Status,
		PreviousStatus: previous,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         p.Method,
		Message:        p.Message,
		Timestamp:      p.UpdatedAt,
	}
}

func (s *Simulator) delay(ctx context.Context) error {
	if s.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
