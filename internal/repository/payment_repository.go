package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

const uniqueViolation = "23505"

const paymentColumns = `id, amount, currency, method, status, message, merchant_id, customer_email,
	idempotency_key, created_at, expires_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(255) PRIMARY KEY,
			amount NUMERIC(20,8) NOT NULL,
			currency VARCHAR(8) NOT NULL,
			method VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			previous_status VARCHAR(32),
			message TEXT NOT NULL DEFAULT '',
			merchant_id VARCHAR(255) NOT NULL DEFAULT '',
			customer_email VARCHAR(255) NOT NULL DEFAULT '',
			idempotency_key VARCHAR(255) UNIQUE,
			poll_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_idempotency_key ON payments(idempotency_key)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, amount, currency, method, status, message, merchant_id,
			customer_email, idempotency_key, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.Amount, p.Currency, string(p.Method), string(p.Status), p.Message, p.MerchantID,
		p.CustomerEmail, nullString(p.IdempotencyKey), p.CreatedAt, nullTime(p), p.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "idempotency_key") {
		return fmt.Errorf("%w: payment %s", apperr.ErrDuplicateKey, p.IdempotencyKey)
	}
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", p.ID, err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.PaymentRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row, id)
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.PaymentRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	return scanPayment(row, key)
}

func (r *PaymentRepository) Transition(ctx context.Context, id string, from, to models.Status, message string) (*models.PaymentRequest, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s for payment %s", apperr.ErrInvalidTransition, from, to, id)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE payments
		SET status = $1, previous_status = $2, message = COALESCE(NULLIF($3::text, ''), message), updated_at = NOW()
		WHERE id = $4 AND status = $2
		RETURNING `+paymentColumns, string(to), string(from), message, id)

	p, err := scanPayment(row, id)
	if errors.Is(err, apperr.ErrNotFound) {
		// either the id is unknown or another writer moved it first
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s -> %s for payment %s", apperr.ErrInvalidTransition, from, to, id)
	}
	return p, err
}

func (r *PaymentRepository) RecordPoll(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`UPDATE payments SET poll_count = poll_count + 1 WHERE id = $1 RETURNING poll_count`, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("record poll for %s: %w", id, err)
	}
	return count, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.PaymentRequest, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Method != "" {
		add("method = $%d", string(filter.Method))
	}
	if filter.MerchantID != "" {
		add("merchant_id = $%d", filter.MerchantID)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	query := `SELECT ` + paymentColumns + ` FROM payments` + cond + ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := []*models.PaymentRequest{}
	for rows.Next() {
		p, err := scanPayment(rows, "list")
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return payments, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner, ref string) (*models.PaymentRequest, error) {
	var (
		p         models.PaymentRequest
		method    string
		status    string
		idemKey   sql.NullString
		expiresAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Amount, &p.Currency, &method, &status, &p.Message, &p.MerchantID,
		&p.CustomerEmail, &idemKey, &p.CreatedAt, &expiresAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", ref, err)
	}
	p.Method = models.Method(method)
	p.Status = models.Status(status)
	p.IdempotencyKey = idemKey.String
	if expiresAt.Valid {
		p.ExpiresAt = expiresAt.Time
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(p *models.PaymentRequest) sql.NullTime {
	return sql.NullTime{Time: p.ExpiresAt, Valid: !p.ExpiresAt.IsZero()}
}
