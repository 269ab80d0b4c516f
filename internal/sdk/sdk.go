// Package sdk is the client side of the Sunny gateway. It pairs a transport
// (the in-process sandbox or the REST API) with the payment-status client, so
// every payment it starts comes back as a live session.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/config"
	"github.com/akylbek/payment-system/sunny-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/paystatus"
	"github.com/akylbek/payment-system/sunny-gateway/internal/repository"
	"github.com/akylbek/payment-system/sunny-gateway/internal/sandbox"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

var ErrMissingAPIKey = errors.New("sdk: api key is required")

type Config struct {
	APIKey       string
	Environment  string // sandbox or production
	MerchantID   string
	BaseURL      string // production only
	PollInterval time.Duration
	HTTPClient   *http.Client
	Sandbox      sandbox.Options // sandbox only
}

// FromClientConfig maps the CLI configuration onto an SDK config.
func FromClientConfig(c *config.Client) Config {
	return Config{
		APIKey:       c.APIKey,
		Environment:  c.Environment,
		MerchantID:   c.MerchantID,
		BaseURL:      c.BaseURL,
		PollInterval: c.PollInterval,
		Sandbox:      sandbox.DefaultOptions(),
	}
}

type SDK struct {
	cfg     Config
	backend interfaces.PaymentBackend
	status  *paystatus.Client
}

func New(cfg Config) (*SDK, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Environment == "" {
		cfg.Environment = config.EnvSandbox
	}

	var backend interfaces.PaymentBackend
	switch cfg.Environment {
	case config.EnvSandbox:
		backend = sandbox.New(repository.NewMemoryPaymentRepository(), nil, cfg.Sandbox)
	case config.EnvProduction:
		if cfg.BaseURL == "" {
			return nil, errors.New("sdk: base url is required in production")
		}
		backend = NewHTTPTransport(cfg.BaseURL, cfg.APIKey, cfg.HTTPClient)
	default:
		return nil, fmt.Errorf("sdk: unknown environment %q", cfg.Environment)
	}

	return &SDK{
		cfg:     cfg,
		backend: backend,
		status:  paystatus.NewClient(paystatus.Config{PollInterval: cfg.PollInterval}),
	}, nil
}

func (s *SDK) Environment() string {
	return s.cfg.Environment
}

// Backend exposes the raw transport for one-shot calls.
func (s *SDK) Backend() interfaces.PaymentBackend {
	return s.backend
}

// Hooks are the callbacks of one watched payment.
type Hooks struct {
	TTL        time.Duration
	OnTerminal paystatus.ResultFunc
	OnDegraded func(req models.PaymentRequest)
}

// Pay creates a payment and tracks it until it settles. A declined payment
// returns an error wrapping apperr.ErrPaymentFailed and no session.
func (s *SDK) Pay(ctx context.Context, req *models.CreatePaymentRequest, idempotencyKey string, hooks Hooks) (*paystatus.Session, error) {
	if req.MerchantID == "" {
		req.MerchantID = s.cfg.MerchantID
	}
	if err := req.Validate(time.Now()); err != nil {
		return nil, err
	}

	return s.status.Start(ctx, paystatus.Flow{
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.PaymentMethod,
		TTL:      hooks.TTL,
		Initiate: func(ctx context.Context) (paystatus.Created, error) {
			resp, err := s.backend.CreatePayment(ctx, req, idempotencyKey)
			if err != nil {
				return paystatus.Created{}, err
			}
			if !resp.Success {
				return paystatus.Created{}, fmt.Errorf("%w: %s", apperr.ErrPaymentFailed, resp.Message)
			}
			return paystatus.Created{
				ID:        resp.TransactionID,
				Status:    resp.Status,
				ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
				Message:   resp.Message,
			}, nil
		},
		Fetch:      s.backend.GetTransactionStatus,
		OnTerminal: hooks.OnTerminal,
		OnDegraded: hooks.OnDegraded,
	})
}

// PayQR issues a QR code and tracks it. Static codes never expire.
func (s *SDK) PayQR(ctx context.Context, req *models.QRCodeRequest, hooks Hooks) (*paystatus.Session, *models.QRCodeResponse, error) {
	if req.MerchantID == "" {
		req.MerchantID = s.cfg.MerchantID
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	var qr *models.QRCodeResponse
	session, err := s.status.Start(ctx, paystatus.Flow{
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   models.MethodQR,
		TTL:      hooks.TTL,
		NoExpiry: req.Type == models.QRTypeStatic,
		Initiate: func(ctx context.Context) (paystatus.Created, error) {
			resp, err := s.backend.CreateQRCode(ctx, req)
			if err != nil {
				return paystatus.Created{}, err
			}
			qr = resp
			created := paystatus.Created{ID: resp.QRID, Status: models.StatusPending, Message: resp.Message}
			if resp.ExpiresAt != nil {
				created.ExpiresIn = time.Until(*resp.ExpiresAt)
			}
			return created, nil
		},
		Fetch:      s.backend.GetTransactionStatus,
		OnTerminal: hooks.OnTerminal,
		OnDegraded: hooks.OnDegraded,
	})
	if err != nil {
		return nil, nil, err
	}
	return session, qr, nil
}

// PayCrypto creates a crypto payment and tracks the deposit.
func (s *SDK) PayCrypto(ctx context.Context, req *models.CryptoPaymentRequest, hooks Hooks) (*paystatus.Session, *models.CryptoPaymentResponse, error) {
	if req.MerchantID == "" {
		req.MerchantID = s.cfg.MerchantID
	}
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	var quote *models.CryptoPaymentResponse
	session, err := s.status.Start(ctx, paystatus.Flow{
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   models.MethodCrypto,
		TTL:      hooks.TTL,
		Initiate: func(ctx context.Context) (paystatus.Created, error) {
			resp, err := s.backend.CreateCryptoPayment(ctx, req)
			if err != nil {
				return paystatus.Created{}, err
			}
			quote = resp
			return paystatus.Created{
				ID:        resp.PaymentID,
				Status:    models.StatusPending,
				ExpiresIn: time.Duration(resp.ExpirySeconds) * time.Second,
				Message:   resp.Message,
			}, nil
		},
		Fetch:      s.backend.GetTransactionStatus,
		OnTerminal: hooks.OnTerminal,
		OnDegraded: hooks.OnDegraded,
	})
	if err != nil {
		return nil, nil, err
	}
	return session, quote, nil
}

// Cancel cancels the request on the backend, then tears the session down.
func (s *SDK) Cancel(ctx context.Context, session *paystatus.Session) error {
	if _, err := s.backend.CancelPayment(ctx, session.ID()); err != nil {
		return err
	}
	session.Cancel()
	telemetry.Logger.Info("Payment cancelled", zap.String("payment_id", session.ID()))
	return nil
}

// Transactions lists payments, newest first. An empty merchant filter
// falls back to the configured merchant.
func (s *SDK) Transactions(ctx context.Context, filter models.TransactionFilter) (*models.TransactionList, error) {
	if filter.MerchantID == "" {
		filter.MerchantID = s.cfg.MerchantID
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	return s.backend.ListTransactions(ctx, filter)
}

// BulkHooks are the callbacks of one watched bulk job.
type BulkHooks struct {
	OnProgress func(job models.BulkJobResponse)
	OnTerminal func(job models.BulkJobResponse)
	OnDegraded func(job models.BulkJobResponse)
}

// StartBulk submits validated rows and tracks the resulting job.
func (s *SDK) StartBulk(ctx context.Context, rows []models.BulkRow, hooks BulkHooks) (*paystatus.BulkTracker, error) {
	job, err := s.backend.StartBulkJob(ctx, rows, s.cfg.MerchantID)
	if err != nil {
		return nil, err
	}
	return s.WatchBulk(ctx, job.JobID, hooks)
}

// WatchBulk tracks an existing bulk job.
func (s *SDK) WatchBulk(ctx context.Context, jobID string, hooks BulkHooks) (*paystatus.BulkTracker, error) {
	return s.status.TrackBulk(ctx, paystatus.BulkFlow{
		JobID:      jobID,
		Fetch:      s.backend.GetBulkJob,
		OnProgress: hooks.OnProgress,
		OnTerminal: hooks.OnTerminal,
		OnDegraded: hooks.OnDegraded,
	})
}
