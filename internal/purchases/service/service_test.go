package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	amigoclient "datavend_backend/internal/amigo/client"
	"datavend_backend/internal/catalog"
	"datavend_backend/internal/events"
	paymentsclient "datavend_backend/internal/payments/client"
	"datavend_backend/internal/purchases/repository"
	"datavend_backend/internal/purchases/transport"
	"datavend_backend/platform/apperr"
	"datavend_backend/platform/logger"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	mu          sync.Mutex
	rows        map[string]repository.Transaction
	acquireErr  error
	existsErr   error
	claimErr    error
	completeErr error
	// stealOnClaim simulates a concurrent request claiming the reference
	// between the exists check and the claim.
	stealOnClaim bool

	acquired    int
	released    int
	existsCalls int
	claims      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]repository.Transaction{}}
}

func (f *fakeStore) Acquire(context.Context) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	f.acquired++
	return &fakeSession{store: f}, nil
}

func (f *fakeStore) Get(_ context.Context, reference string) (repository.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.rows[reference]
	if !ok {
		return repository.Transaction{}, repository.ErrNotFound
	}
	return tx, nil
}

func (f *fakeStore) row(reference string) (repository.Transaction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.rows[reference]
	return tx, ok
}

type fakeSession struct {
	store    *fakeStore
	released bool
}

func (s *fakeSession) Exists(_ context.Context, reference string) (bool, error) {
	f := s.store
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.rows[reference]
	return ok, nil
}

func (s *fakeSession) Claim(_ context.Context, tx repository.Transaction) (bool, error) {
	f := s.store
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.stealOnClaim {
		f.rows[tx.Reference] = repository.Transaction{Reference: tx.Reference, Status: repository.StatusPending}
	}
	if _, ok := f.rows[tx.Reference]; ok {
		return false, nil
	}
	tx.Status = repository.StatusPending
	f.rows[tx.Reference] = tx
	return true, nil
}

func (s *fakeSession) Complete(_ context.Context, reference string, status repository.Status, raw json.RawMessage) error {
	f := s.store
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	tx, ok := f.rows[reference]
	if !ok || tx.Status != repository.StatusPending {
		return errors.New("no pending row")
	}
	tx.Status = status
	tx.APIResponse = raw
	f.rows[reference] = tx
	return nil
}

func (s *fakeSession) Release() {
	if s.released {
		return
	}
	s.released = true
	s.store.mu.Lock()
	s.store.released++
	s.store.mu.Unlock()
}

type fakeVerifier struct {
	mu     sync.Mutex
	result paymentsclient.Verification
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(context.Context, string) (paymentsclient.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

type fakeDispenser struct {
	mu       sync.Mutex
	delivery amigoclient.Delivery
	err      error
	orders   []amigoclient.Order
}

func (f *fakeDispenser) Dispense(_ context.Context, order amigoclient.Order) (amigoclient.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return f.delivery, f.err
}

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.published))
	for _, e := range b.published {
		names = append(names, e.EventName())
	}
	return names
}

type harness struct {
	svc       *Service
	store     *fakeStore
	verifier  *fakeVerifier
	dispenser *fakeDispenser
	bus       *recordingBus
}

func paid(amount int64) paymentsclient.Verification {
	return paymentsclient.Verification{
		Status:        paymentsclient.StatusSuccess,
		PaymentStatus: paymentsclient.PaymentSuccessful,
		Amount:        decimal.NewFromInt(amount),
		Currency:      "NGN",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newFakeStore(),
		verifier: &fakeVerifier{result: paid(500)},
		dispenser: &fakeDispenser{delivery: amigoclient.Delivery{
			Success: true,
			Message: "Dispensed",
			Raw:     json.RawMessage(`{"success":true,"message":"Dispensed"}`),
		}},
		bus: &recordingBus{},
	}
	h.svc = New(h.store, h.verifier, h.dispenser, catalog.Default(), h.bus, logger.Discard(), "NG")
	return h
}

func validRequest() transport.PurchaseRequest {
	return transport.PurchaseRequest{
		TransactionID: "4567890",
		TxRef:         "client-ref-1",
		MobileNumber:  "0803 123 4567",
		Network:       "1",
		PlanID:        "mtn-1gb",
		Ported:        false,
	}
}

func (h *harness) assertReleased(t *testing.T) {
	t.Helper()
	if h.store.acquired != h.store.released {
		t.Fatalf("expected every session to be released, acquired=%d released=%d", h.store.acquired, h.store.released)
	}
}

func TestPurchaseSuccessRecordsOneSuccessRow(t *testing.T) {
	h := newHarness(t)

	msg, err := h.svc.Purchase(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}
	if msg != "Data Sent Successfully!" {
		t.Fatalf("unexpected message %q", msg)
	}

	row, ok := h.store.row("4567890")
	if !ok || row.Status != repository.StatusSuccess {
		t.Fatalf("expected one success row, got %+v (found=%v)", row, ok)
	}
	if string(row.APIResponse) != `{"success":true,"message":"Dispensed"}` {
		t.Fatalf("expected vendor response kept verbatim, got %s", row.APIResponse)
	}
	if row.PhoneNumber != "0803 123 4567" || row.Network != "1" || row.PlanID != "mtn-1gb" {
		t.Fatalf("expected request fields stored as submitted, got %+v", row)
	}
	if len(h.dispenser.orders) != 1 {
		t.Fatalf("expected exactly one dispense call, got %d", len(h.dispenser.orders))
	}
	h.assertReleased(t)

	names := h.bus.names()
	if len(names) != 1 || names[0] != "purchases.data.dispensed" {
		t.Fatalf("expected dispensed event, got %v", names)
	}
}

func TestPurchaseBuildsVendorOrderFromCatalog(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.Network = "9"
	req.Ported = true

	if _, err := h.svc.Purchase(context.Background(), req); err != nil {
		t.Fatalf("Purchase returned error: %v", err)
	}

	order := h.dispenser.orders[0]
	if order.NetworkCode != 1 || order.PlanCode != 1001 || !order.Ported {
		t.Fatalf("unexpected vendor order %+v", order)
	}
	if order.PhoneNumber != "08031234567" {
		t.Fatalf("expected national digits for the vendor, got %q", order.PhoneNumber)
	}
}

func TestPurchaseMissingDetailsMakesNoCalls(t *testing.T) {
	for name, mutate := range map[string]func(*transport.PurchaseRequest){
		"no reference": func(r *transport.PurchaseRequest) { r.TransactionID = "" },
		"no phone":     func(r *transport.PurchaseRequest) { r.MobileNumber = "" },
		"blank phone":  func(r *transport.PurchaseRequest) { r.MobileNumber = "   " },
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			req := validRequest()
			mutate(&req)

			_, err := h.svc.Purchase(context.Background(), req)
			if !errors.Is(err, ErrMissingDetails) {
				t.Fatalf("expected missing details, got %v", err)
			}
			if h.store.acquired != 0 || h.verifier.calls != 0 || len(h.dispenser.orders) != 0 {
				t.Fatal("expected no store or remote calls")
			}
		})
	}
}

func TestPurchaseUnknownPlanRejectedBeforeAnyCall(t *testing.T) {
	h := newHarness(t)
	req := validRequest()
	req.PlanID = "glo-10gb"

	_, err := h.svc.Purchase(context.Background(), req)
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected unknown plan, got %v", err)
	}
	if h.store.acquired != 0 || h.verifier.calls != 0 {
		t.Fatal("expected no store or remote calls")
	}
}

func TestPurchaseAlreadyProcessedSkipsVerification(t *testing.T) {
	h := newHarness(t)
	h.store.rows["4567890"] = repository.Transaction{Reference: "4567890", Status: repository.StatusFailed}

	_, err := h.svc.Purchase(context.Background(), validRequest())
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
	if h.verifier.calls != 0 || len(h.dispenser.orders) != 0 {
		t.Fatal("expected no verification or dispensing")
	}
	h.assertReleased(t)
}

func TestPurchaseVerificationFailure(t *testing.T) {
	cases := map[string]paymentsclient.Verification{
		"call error":      {Status: "error", PaymentStatus: "", Amount: decimal.NewFromInt(500)},
		"payment pending": {Status: "success", PaymentStatus: "pending", Amount: decimal.NewFromInt(500)},
		"payment failed":  {Status: "success", PaymentStatus: "failed", Amount: decimal.NewFromInt(500)},
	}
	for name, result := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.verifier.result = result

			_, err := h.svc.Purchase(context.Background(), validRequest())
			if !errors.Is(err, ErrVerificationFailed) {
				t.Fatalf("expected verification failed, got %v", err)
			}
			if len(h.dispenser.orders) != 0 || h.store.claims != 0 {
				t.Fatal("expected no dispensing and no record")
			}
			h.assertReleased(t)
		})
	}
}

func TestPurchaseVerifierErrorIsInfrastructureFailure(t *testing.T) {
	h := newHarness(t)
	h.verifier.err = errors.New("dial tcp: timeout")

	_, err := h.svc.Purchase(context.Background(), validRequest())
	if apperr.GetKind(err) != apperr.KindInternal {
		t.Fatalf("expected infrastructure failure, got %v", err)
	}
	if errors.Is(err, ErrVerificationFailed) {
		t.Fatal("transport failure must not look like a failed payment")
	}
	if len(h.dispenser.orders) != 0 {
		t.Fatal("expected no dispensing")
	}
	h.assertReleased(t)
}

func TestPurchaseUnderpaidRejected(t *testing.T) {
	h := newHarness(t)
	h.verifier.result = paid(300)

	_, err := h.svc.Purchase(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Message != "Amount paid is less than plan price" {
		t.Fatalf("expected underpayment rejection, got %v", err)
	}
	if len(h.dispenser.orders) != 0 {
		t.Fatal("expected no dispensing")
	}
	if _, ok := h.store.row("4567890"); ok {
		t.Fatal("expected no record to be written")
	}
	h.assertReleased(t)
}

func TestPurchaseComparesAmountsExactly(t *testing.T) {
	h := newHarness(t)
	h.verifier.result = paid(500)
	h.verifier.result.Amount = decimal.RequireFromString("500.00")

	if _, err := h.svc.Purchase(context.Background(), validRequest()); err != nil {
		t.Fatalf("expected exact price to pass, got %v", err)
	}

	h = newHarness(t)
	h.verifier.result.Amount = decimal.RequireFromString("499.99")
	if _, err := h.svc.Purchase(context.Background(), validRequest()); !errors.Is(err, ErrAmountTooLow) {
		t.Fatalf("expected 499.99 to be rejected, got %v", err)
	}
}

func TestPurchaseVendorRefusalRecordsFailedRow(t *testing.T) {
	h := newHarness(t)
	h.dispenser.delivery = amigoclient.Delivery{
		Success: false,
		Message: "Insufficient balance",
		Raw:     json.RawMessage(`{"success":false,"message":"Insufficient balance"}`),
	}

	_, err := h.svc.Purchase(context.Background(), validRequest())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindRejected {
		t.Fatalf("expected domain rejection, got %v", err)
	}
	if appErr.Message != "Payment received, but Data failed: Insufficient balance" {
		t.Fatalf("unexpected message %q", appErr.Message)
	}

	row, ok := h.store.row("4567890")
	if !ok || row.Status != repository.StatusFailed {
		t.Fatalf("expected one failed row, got %+v", row)
	}
	if !strings.Contains(string(row.APIResponse), "Insufficient balance") {
		t.Fatalf("expected vendor response retained, got %s", row.APIResponse)
	}
	h.assertReleased(t)

	names := h.bus.names()
	if len(names) != 1 || names[0] != "purchases.data.failed" {
		t.Fatalf("expected failed event, got %v", names)
	}
}

func TestPurchaseIsIdempotentAcrossResubmission(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Purchase(context.Background(), validRequest()); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	_, err := h.svc.Purchase(context.Background(), validRequest())
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected resubmission to be rejected, got %v", err)
	}
	if len(h.dispenser.orders) != 1 || len(h.store.rows) != 1 {
		t.Fatalf("expected one dispense and one row, got %d and %d", len(h.dispenser.orders), len(h.store.rows))
	}
	h.assertReleased(t)
}

func TestPurchaseLosingClaimDoesNotDispense(t *testing.T) {
	h := newHarness(t)
	h.store.stealOnClaim = true

	_, err := h.svc.Purchase(context.Background(), validRequest())
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected already processed after losing the claim, got %v", err)
	}
	if len(h.dispenser.orders) != 0 {
		t.Fatal("expected no dispensing for the losing request")
	}
	h.assertReleased(t)
}

func TestPurchaseConcurrentSubmissionsDispenseOnce(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.Purchase(context.Background(), validRequest()); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

func TestPurchaseDispenseErrorLeavesPendingRow(t *testing.T) {
	h := newHarness(t)
	h.dispenser.err = errors.New("proxy CONNECT failed")

	_, err := h.svc.Purchase(context.Background(), validRequest())
	if apperr.GetKind(err) != apperr.KindInternal {
		t.Fatalf("expected infrastructure failure, got %v", err)
	}
	row, ok := h.store.row("4567890")
	if !ok || row.Status != repository.StatusPending {
		t.Fatalf("expected row to stay pending, got %+v", row)
	}
	h.assertReleased(t)

	names := h.bus.names()
	if len(names) != 1 || names[0] != "purchases.outcome.unknown" {
		t.Fatalf("expected outcome unknown event, got %v", names)
	}
}

func TestPurchaseCompleteErrorIsInfrastructureFailure(t *testing.T) {
	h := newHarness(t)
	h.store.completeErr = errors.New("connection reset")

	_, err := h.svc.Purchase(context.Background(), validRequest())
	if apperr.GetKind(err) != apperr.KindInternal {
		t.Fatalf("expected infrastructure failure, got %v", err)
	}
	h.assertReleased(t)
}

func TestPurchaseStoreErrorsAreInfrastructureFailures(t *testing.T) {
	for name, setup := range map[string]func(*fakeStore){
		"acquire": func(f *fakeStore) { f.acquireErr = errors.New("pool closed") },
		"exists":  func(f *fakeStore) { f.existsErr = errors.New("timeout") },
		"claim":   func(f *fakeStore) { f.claimErr = errors.New("timeout") },
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(h.store)

			_, err := h.svc.Purchase(context.Background(), validRequest())
			if apperr.GetKind(err) != apperr.KindInternal {
				t.Fatalf("expected infrastructure failure, got %v", err)
			}
			if len(h.dispenser.orders) != 0 {
				t.Fatal("expected no dispensing")
			}
			h.assertReleased(t)
		})
	}
}

func TestPurchaseSurvivesClientCancellationAfterClaim(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.svc.dispenser = dispenserFunc(func(ctx context.Context, order amigoclient.Order) (amigoclient.Delivery, error) {
		cancel()
		if ctx.Err() != nil {
			return amigoclient.Delivery{}, ctx.Err()
		}
		return amigoclient.Delivery{Success: true, Raw: json.RawMessage(`{"success":true}`)}, nil
	})

	if _, err := h.svc.Purchase(ctx, validRequest()); err != nil {
		t.Fatalf("expected claimed purchase to finish after cancellation, got %v", err)
	}
	if row, _ := h.store.row("4567890"); row.Status != repository.StatusSuccess {
		t.Fatalf("expected success row, got %+v", row)
	}
}

type dispenserFunc func(ctx context.Context, order amigoclient.Order) (amigoclient.Delivery, error)

func (f dispenserFunc) Dispense(ctx context.Context, order amigoclient.Order) (amigoclient.Delivery, error) {
	return f(ctx, order)
}

func TestAuditPayloadFallsBackForNonJSON(t *testing.T) {
	raw := auditPayload(amigoclient.Delivery{Success: false, Message: "down"})
	if !json.Valid(raw) || !strings.Contains(string(raw), `"message":"down"`) {
		t.Fatalf("unexpected fallback payload %s", raw)
	}
}

func TestGetTransaction(t *testing.T) {
	h := newHarness(t)
	h.store.rows["42"] = repository.Transaction{Reference: "42", PlanID: "mtn-1gb", Status: repository.StatusSuccess}

	resp, err := h.svc.GetTransaction(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetTransaction returned error: %v", err)
	}
	if resp.Status != "success" || resp.PlanID != "mtn-1gb" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if _, err := h.svc.GetTransaction(context.Background(), "missing"); apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDispenseFailedStripsVendorMarkup(t *testing.T) {
	err := DispenseFailed("<p>Network   busy</p>")
	if err.Message != "Payment received, but Data failed: Network busy" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}
