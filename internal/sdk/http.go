package sdk

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// HTTPTransport talks to a running gateway over its REST API.
type HTTPTransport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL, apiKey string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (t *HTTPTransport) CreatePayment(ctx context.Context, req *models.CreatePaymentRequest, idempotencyKey string) (*models.CreatePaymentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var resp models.CreatePaymentResponse
	// a decline comes back as 402 with a regular payment response
	if err := t.do(ctx, http.MethodPost, "/payments", bytes.NewReader(body), headers, &resp, http.StatusPaymentRequired); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) GetTransactionStatus(ctx context.Context, id string) (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := t.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) ListTransactions(ctx context.Context, filter models.TransactionFilter) (*models.TransactionList, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Method != "" {
		q.Set("method", string(filter.Method))
	}
	if filter.MerchantID != "" {
		q.Set("merchantId", filter.MerchantID)
	}
	if !filter.From.IsZero() {
		q.Set("from", filter.From.Format(time.RFC3339))
	}
	if !filter.To.IsZero() {
		q.Set("to", filter.To.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	path := "/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp models.TransactionList
	if err := t.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) CancelPayment(ctx context.Context, id string) (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := t.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(id)+"/cancel", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) CreateQRCode(ctx context.Context, req *models.QRCodeRequest) (*models.QRCodeResponse, error) {
	var resp models.QRCodeResponse
	if err := t.postJSON(ctx, "/qr-codes", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) CreateCryptoPayment(ctx context.Context, req *models.CryptoPaymentRequest) (*models.CryptoPaymentResponse, error) {
	var resp models.CryptoPaymentResponse
	if err := t.postJSON(ctx, "/crypto-payments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartBulkJob uploads rows as a CSV file.
func (t *HTTPTransport) StartBulkJob(ctx context.Context, rows []models.BulkRow, merchantID string) (*models.BulkJobResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if merchantID != "" {
		if err := mw.WriteField("merchantId", merchantID); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", "bulk.csv")
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(part)
	if err := w.Write(models.BulkHeaders); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row.Data); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var resp models.BulkJobResponse
	headers := map[string]string{"Content-Type": mw.FormDataContentType()}
	if err := t.do(ctx, http.MethodPost, "/bulk-jobs", &buf, headers, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) GetBulkJob(ctx context.Context, id string) (*models.BulkJobResponse, error) {
	var resp models.BulkJobResponse
	if err := t.do(ctx, http.MethodGet, "/bulk-jobs/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return t.do(ctx, http.MethodPost, path, bytes.NewReader(body), map[string]string{"Content-Type": "application/json"}, out)
}

// do sends one request and decodes a 2xx (or an extra accepted status) into
// out. Any other status becomes an apperr error rebuilt from the body.
func (t *HTTPTransport) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string, out any, accept ...int) error {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if accepted(resp.StatusCode, accept) {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return decodeError(resp.StatusCode, data)
}

func accepted(status int, extra []int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	for _, s := range extra {
		if s == status {
			return true
		}
	}
	return false
}

func decodeError(status int, data []byte) error {
	var body models.ErrorResponse
	_ = json.Unmarshal(data, &body)
	if body.ErrorCode != "" {
		return apperr.FromCode(body.ErrorCode, body.Error)
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.Validationf("gateway rejected the request (%d)", status)
	case http.StatusUnauthorized:
		return apperr.FromCode(apperr.CodeUnauthorized, "invalid API key")
	case http.StatusNotFound:
		return apperr.FromCode(apperr.CodeNotFound, "not found")
	default:
		return fmt.Errorf("gateway returned status %d", status)
	}
}
