package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// MemoryPaymentRepository is used when no DATABASE_URL is configured and by
// the in-process sandbox transport.
type MemoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*models.PaymentRequest
	byKey    map[string]string
	polls    map[string]int
}

func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{
		payments: make(map[string]*models.PaymentRequest),
		byKey:    make(map[string]string),
		polls:    make(map[string]int),
	}
}

func (r *MemoryPaymentRepository) Create(ctx context.Context, p *models.PaymentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[p.ID]; ok {
		return fmt.Errorf("insert payment %s: duplicate id", p.ID)
	}
	if p.IdempotencyKey != "" {
		if _, ok := r.byKey[p.IdempotencyKey]; ok {
			return fmt.Errorf("%w: payment %s", apperr.ErrDuplicateKey, p.IdempotencyKey)
		}
		r.byKey[p.IdempotencyKey] = p.ID
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *MemoryPaymentRepository) GetByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.PaymentRequest, error) {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, key)
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryPaymentRepository) Transition(ctx context.Context, id string, from, to models.Status, message string) (*models.PaymentRequest, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s for payment %s", apperr.ErrInvalidTransition, from, to, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, id)
	}
	if p.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s for payment %s", apperr.ErrInvalidTransition, from, to, id)
	}
	p.Status = to
	if message != "" {
		p.Message = message
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (r *MemoryPaymentRepository) RecordPoll(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[id]; !ok {
		return 0, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, id)
	}
	r.polls[id]++
	return r.polls[id], nil
}

func (r *MemoryPaymentRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentRequest, int, error) {
	r.mu.RLock()
	matched := make([]*models.PaymentRequest, 0, len(r.payments))
	for _, p := range r.payments {
		if filter.Matches(p) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*models.PaymentRequest{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}
