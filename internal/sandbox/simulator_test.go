package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/sunny-gateway/internal/apperr"
	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/repository"
)

// scriptedRandom replays fixed values; once exhausted it returns zero.
type scriptedRandom struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

func (r *scriptedRandom) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *scriptedRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	i := r.ints[0] % n
	r.ints = r.ints[1:]
	return i
}

type capture struct {
	mu     sync.Mutex
	events []models.PaymentEvent
}

func (c *capture) Publish(ctx context.Context, e models.PaymentEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capture) Close() error { return nil }

func newSimulator(rng Random, opts Options) (*Simulator, *repository.MemoryPaymentRepository, *capture) {
	repo := repository.NewMemoryPaymentRepository()
	pub := &capture{}
	if opts.SuccessRate == 0 {
		opts.SuccessRate = 0.95
	}
	if opts.AsyncSuccessRate == 0 {
		opts.AsyncSuccessRate = 0.95
	}
	opts.Random = rng
	return New(repo, pub, opts), repo, pub
}

func cardPayment() *models.CreatePaymentRequest {
	return &models.CreatePaymentRequest{
		Amount:        decimal.NewFromInt(100),
		Currency:      "USD",
		PaymentMethod: models.MethodCard,
		Card: &models.CardDetails{
			Number:      "4242424242424242",
			ExpiryMonth: 12,
			ExpiryYear:  2099,
			CVV:         "123",
		},
	}
}

func mobileMoneyPayment() *models.CreatePaymentRequest {
	return &models.CreatePaymentRequest{
		Amount:        decimal.NewFromInt(250),
		Currency:      "KES",
		PaymentMethod: models.MethodMobileMoney,
		MobileMoney:   &models.MobileMoneyDetails{Provider: "mpesa", Phone: "254712345678"},
	}
}

func TestCreatePayment_CardBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		roll        float64
		pick        int
		wantSuccess bool
		wantStatus  models.Status
		wantMessage string
	}{
		{"approved", 0.10, 0, true, models.StatusCompleted, "Payment processed successfully"},
		{"approved at the edge", 0.9499, 0, true, models.StatusCompleted, "Payment processed successfully"},
		{"declined by issuer", 0.95, 0, false, models.StatusFailed, "Payment declined by issuer"},
		{"insufficient funds", 0.99, 1, false, models.StatusFailed, "Insufficient funds"},
		{"processing failed", 0.97, 2, false, models.StatusFailed, "Payment processing failed"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim, repo, _ := newSimulator(&scriptedRandom{floats: []float64{tt.roll}, ints: []int{tt.pick}}, Options{})
			resp, err := sim.CreatePayment(context.Background(), cardPayment(), "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Success != tt.wantSuccess {
				t.Fatalf("expected success %v, got %v", tt.wantSuccess, resp.Success)
			}
			if resp.TransactionID == "" {
				t.Fatalf("expected a transaction id")
			}
			if resp.Message != tt.wantMessage {
				t.Fatalf("expected message %q, got %q", tt.wantMessage, resp.Message)
			}
			if tt.wantSuccess {
				if resp.Status != models.StatusCompleted || resp.ErrorCode != "" {
					t.Fatalf("unexpected approved response: %+v", resp)
				}
			} else if resp.ErrorCode != apperr.CodePaymentFailed {
				t.Fatalf("expected error code %q, got %q", apperr.CodePaymentFailed, resp.ErrorCode)
			}

			stored, err := repo.GetByID(context.Background(), resp.TransactionID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stored.Status != tt.wantStatus {
				t.Fatalf("expected stored status %v, got %v", tt.wantStatus, stored.Status)
			}
		})
	}
}

func TestCreatePayment_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	sim, _, pub := newSimulator(&scriptedRandom{}, Options{})
	req := cardPayment()
	req.Card.Number = "4242424242424241"

	_, err := sim.CreatePayment(context.Background(), req, "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected %v, got %v", apperr.ErrValidation, err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events, got %d", len(pub.events))
	}
}

func TestCreatePayment_Idempotent(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{floats: []float64{0.1, 0.99}}, Options{})
	first, err := sim.CreatePayment(context.Background(), cardPayment(), "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := sim.CreatePayment(context.Background(), cardPayment(), "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TransactionID != second.TransactionID || !second.Success {
		t.Fatalf("expected replay of %s, got %+v", first.TransactionID, second)
	}
}

func TestCreatePayment_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{floats: []float64{0.1, 0.1}}, Options{Latency: 20 * time.Millisecond})

	var (
		wg    sync.WaitGroup
		ids   [2]string
		errs  [2]error
		start = make(chan struct{})
	)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resp, err := sim.CreatePayment(context.Background(), cardPayment(), "same-key")
			errs[i] = err
			if resp != nil {
				ids[i] = resp.TransactionID
			}
		}()
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("expected one payment for both requests, got %v", ids)
	}
}

func TestListTransactions(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{floats: []float64{0.1, 0.99}}, Options{})
	ctx := context.Background()
	approved, err := sim.CreatePayment(ctx, cardPayment(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sim.CreatePayment(ctx, cardPayment(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := sim.ListTransactions(ctx, models.TransactionFilter{Status: "completed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Total != 1 || list.Transactions[0].TransactionID != approved.TransactionID {
		t.Fatalf("expected only %s, got %+v", approved.TransactionID, list)
	}
	if list.Limit != models.DefaultTransactionLimit {
		t.Fatalf("expected default limit %d, got %d", models.DefaultTransactionLimit, list.Limit)
	}

	all, err := sim.ListTransactions(ctx, models.TransactionFilter{Limit: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all.Total != 2 || all.Limit != models.MaxTransactionLimit {
		t.Fatalf("unexpected list %+v", all)
	}

	if _, err := sim.ListTransactions(ctx, models.TransactionFilter{Status: "SETTLED"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected %v, got %v", apperr.ErrValidation, err)
	}
}

func TestAsyncPayment_SettlesAfterPolls(t *testing.T) {
	t.Parallel()

	sim, _, pub := newSimulator(&scriptedRandom{floats: []float64{0.5}}, Options{PollsToSettle: 3})
	ctx := context.Background()

	resp, err := sim.CreatePayment(ctx, mobileMoneyPayment(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != models.StatusPending || !resp.Success {
		t.Fatalf("expected pending create, got %+v", resp)
	}
	if resp.ExpiresIn != 0 {
		t.Fatalf("expected no backend expiry for mobile money, got %d", resp.ExpiresIn)
	}

	for i := 1; i <= 2; i++ {
		st, err := sim.GetTransactionStatus(ctx, resp.TransactionID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.Status != models.StatusPending {
			t.Fatalf("poll %d: expected %v, got %v", i, models.StatusPending, st.Status)
		}
	}
	st, err := sim.GetTransactionStatus(ctx, resp.TransactionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != models.StatusCompleted {
		t.Fatalf("expected %v, got %v", models.StatusCompleted, st.Status)
	}

	// terminal states are sticky
	st, _ = sim.GetTransactionStatus(ctx, resp.TransactionID)
	if st.Status != models.StatusCompleted {
		t.Fatalf("expected %v, got %v", models.StatusCompleted, st.Status)
	}

	var types []string
	for _, e := range pub.events {
		types = append(types, e.Type+":"+string(e.Status))
	}
	want := []string{"payment.created:CREATED", "payment.state.changed:PENDING", "payment.state.changed:COMPLETED"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("expected events %v, got %v", want, types)
	}
}

func TestAsyncPayment_ExpiresServerSide(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{PollsToSettle: 100})
	ctx := context.Background()

	resp, err := sim.CreatePayment(ctx, &models.CreatePaymentRequest{
		Amount:        decimal.NewFromInt(10),
		Currency:      "USD",
		PaymentMethod: models.MethodQR,
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ExpiresIn != 300 {
		t.Fatalf("expected expiresIn 300, got %d", resp.ExpiresIn)
	}

	later := time.Now().Add(301 * time.Second)
	sim.now = func() time.Time { return later }

	st, err := sim.GetTransactionStatus(ctx, resp.TransactionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != models.StatusExpired {
		t.Fatalf("expected %v, got %v", models.StatusExpired, st.Status)
	}
}

func TestCancelPayment(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{})
	ctx := context.Background()

	resp, err := sim.CreatePayment(ctx, mobileMoneyPayment(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := sim.CancelPayment(ctx, resp.TransactionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != models.StatusCancelled {
		t.Fatalf("expected %v, got %v", models.StatusCancelled, st.Status)
	}

	if _, err := sim.CancelPayment(ctx, resp.TransactionID); !errors.Is(err, apperr.ErrAlreadyTerminal) {
		t.Fatalf("expected %v, got %v", apperr.ErrAlreadyTerminal, err)
	}
	if _, err := sim.CancelPayment(ctx, "TXN-missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected %v, got %v", apperr.ErrNotFound, err)
	}
}

func TestCreateQRCode(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{})
	ctx := context.Background()

	resp, err := sim.CreateQRCode(ctx, &models.QRCodeRequest{
		Amount:     decimal.RequireFromString("12.50"),
		Currency:   "USD",
		MerchantID: "merchant_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp.QRContent, "sunny://pay/") {
		t.Fatalf("unexpected content %q", resp.QRContent)
	}
	if !strings.HasPrefix(resp.QRImageURL, "data:image/png;base64,") {
		t.Fatalf("unexpected image url prefix")
	}
	if resp.ExpiresAt == nil || time.Until(*resp.ExpiresAt) > 5*time.Minute {
		t.Fatalf("expected a 5 minute expiry, got %v", resp.ExpiresAt)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.QRContent, "sunny://pay/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["m"] != "merchant_1" || payload["c"] != "USD" || payload["t"] != "DYNAMIC" {
		t.Fatalf("unexpected payload %v", payload)
	}

	st, err := sim.GetTransactionStatus(ctx, resp.QRID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Status != models.StatusPending {
		t.Fatalf("expected %v, got %v", models.StatusPending, st.Status)
	}
}

func TestCreateQRCode_StaticNeverExpires(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{})
	resp, err := sim.CreateQRCode(context.Background(), &models.QRCodeRequest{Type: "static", MerchantID: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ExpiresAt != nil {
		t.Fatalf("expected no expiry, got %v", resp.ExpiresAt)
	}
}

func TestCreateCryptoPayment(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{})

	tests := []struct {
		coin       string
		amount     string
		wantAmount string
		prefix     string
		length     int
	}{
		{"", "130", "0.002", "bc1q", 42},
		{"eth", "7000", "2", "0x", 42},
		{"USDT", "99.99", "99.99", "0x", 42},
	}
	for _, tt := range tests {
		resp, err := sim.CreateCryptoPayment(context.Background(), &models.CryptoPaymentRequest{
			Amount:         decimal.RequireFromString(tt.amount),
			Currency:       "USD",
			CryptoCurrency: tt.coin,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.coin, err)
		}
		if !resp.CryptoAmount.Equal(decimal.RequireFromString(tt.wantAmount)) {
			t.Fatalf("%s: expected %s, got %s", tt.coin, tt.wantAmount, resp.CryptoAmount)
		}
		if !strings.HasPrefix(resp.WalletAddress, tt.prefix) || len(resp.WalletAddress) != tt.length {
			t.Fatalf("%s: unexpected wallet %q", tt.coin, resp.WalletAddress)
		}
		if resp.ExpirySeconds != 900 {
			t.Fatalf("%s: expected 900s expiry, got %d", tt.coin, resp.ExpirySeconds)
		}
	}
}

func bulkRows() []models.BulkRow {
	return []models.BulkRow{
		{ID: 1, Data: []string{"John Smith", "john@example.com", "500.00", "USD"}, Status: models.RowValid},
		{ID: 2, Data: []string{"Acme Corp", "", "1200.00", "gbp"}, Status: models.RowWarning, Errors: []string{"Email is required"}},
	}
}

func TestBulkJob_Progression(t *testing.T) {
	t.Parallel()

	sim, _, pub := newSimulator(&scriptedRandom{}, Options{})
	ctx := context.Background()

	job, err := sim.StartBulkJob(ctx, bulkRows(), "merchant_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != models.BulkQueued || job.Progress != 0 {
		t.Fatalf("expected queued at 0, got %+v", job)
	}

	want := []struct {
		status   models.BulkStatus
		progress int
	}{
		{models.BulkProcessing, 30},
		{models.BulkValidating, 60},
		{models.BulkExecuting, 90},
		{models.BulkCompleted, 100},
		{models.BulkCompleted, 100},
	}
	for i, w := range want {
		got, err := sim.GetBulkJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != w.status || got.Progress != w.progress {
			t.Fatalf("poll %d: expected %s at %d, got %s at %d", i+1, w.status, w.progress, got.Status, got.Progress)
		}
	}

	final, _ := sim.GetBulkJob(ctx, job.JobID)
	if final.Processed != 2 {
		t.Fatalf("expected 2 processed rows, got %d", final.Processed)
	}

	completed := 0
	for _, e := range pub.events {
		if e.Status == models.StatusCompleted && e.Method == models.MethodBankTransfer {
			completed++
			if e.Currency != "USD" && e.Currency != "GBP" {
				t.Fatalf("unexpected currency %q", e.Currency)
			}
		}
	}
	if completed != 2 {
		t.Fatalf("expected 2 completed bank transfers, got %d", completed)
	}
}

// cancellingRepo cancels the polling request on the first insert and then
// refuses any write made under a cancelled context.
type cancellingRepo struct {
	*repository.MemoryPaymentRepository
	once   sync.Once
	cancel context.CancelFunc
}

func (r *cancellingRepo) Create(ctx context.Context, p *models.PaymentRequest) error {
	r.once.Do(r.cancel)
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryPaymentRepository.Create(ctx, p)
}

func TestBulkJob_ExecutionOutlivesPoll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	repo := &cancellingRepo{MemoryPaymentRepository: repository.NewMemoryPaymentRepository(), cancel: cancel}
	sim := New(repo, &capture{}, Options{SuccessRate: 0.95, AsyncSuccessRate: 0.95, Random: &scriptedRandom{}})

	job, err := sim.StartBulkJob(ctx, bulkRows(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := sim.GetBulkJob(ctx, job.JobID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	final, err := sim.GetBulkJob(pollCtx, job.JobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != models.BulkCompleted || final.Processed != 2 {
		t.Fatalf("expected completed job with 2 payments, got %+v", final)
	}
}

func TestBulkJob_RejectsErrorRows(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{})
	rows := append(bulkRows(), models.BulkRow{ID: 3, Data: []string{"Tech", "t@t.io", "-50", "USD"}, Status: models.RowError})

	if _, err := sim.StartBulkJob(context.Background(), rows, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected %v, got %v", apperr.ErrValidation, err)
	}
	if _, err := sim.StartBulkJob(context.Background(), nil, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected %v, got %v", apperr.ErrValidation, err)
	}
}

func TestBulkJob_FailureInjection(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{floats: []float64{0.9, 0.1}}, Options{BulkFailureRate: 0.5})
	ctx := context.Background()

	job, err := sim.StartBulkJob(ctx, bulkRows(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := sim.GetBulkJob(ctx, job.JobID)
	if first.Status != models.BulkProcessing {
		t.Fatalf("expected %v, got %v", models.BulkProcessing, first.Status)
	}
	second, _ := sim.GetBulkJob(ctx, job.JobID)
	if second.Status != models.BulkFailed || second.Error == "" {
		t.Fatalf("expected failed job with a reason, got %+v", second)
	}
	if second.Progress != 30 {
		t.Fatalf("expected progress to stay at 30, got %d", second.Progress)
	}
}

func TestGetBulkJob_NotFound(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{})
	if _, err := sim.GetBulkJob(context.Background(), "job-missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected %v, got %v", apperr.ErrNotFound, err)
	}
}

func TestLatencyHonoursContext(t *testing.T) {
	t.Parallel()

	sim, _, _ := newSimulator(&scriptedRandom{}, Options{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := sim.CreatePayment(ctx, cardPayment(), ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected %v, got %v", context.DeadlineExceeded, err)
	}
}
