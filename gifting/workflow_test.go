package gifting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeGiftService struct {
	mu         sync.Mutex
	gifts      []GiftItem
	createErr  error
	confirmErr error

	lastGiftID string
	lastReq    ContributionRequest
	created    int
	confirmed  []string
}

func (f *fakeGiftService) ListGifts(ctx context.Context) ([]GiftItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]GiftItem, len(f.gifts))
	copy(out, f.gifts)
	return out, nil
}

func (f *fakeGiftService) CreateContribution(ctx context.Context, giftID string, req ContributionRequest) (Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastGiftID = giftID
	f.lastReq = req
	f.created++

	if f.createErr != nil {
		return Transaction{}, f.createErr
	}

	return Transaction{TransactionNo: "TX-1234", Amount: req.Amount, Gift: giftID}, nil
}

func (f *fakeGiftService) ConfirmContribution(ctx context.Context, transactionNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.confirmErr != nil {
		return f.confirmErr
	}

	f.confirmed = append(f.confirmed, transactionNo)

	// Reflect the contribution in "server" state so the reconciling
	// refresh agrees with the optimistic patch.
	for i := range f.gifts {
		if f.gifts[i].ID == f.lastGiftID {
			f.gifts[i].RaisedAmount += f.lastReq.Amount
			progress := float64(f.gifts[i].RaisedAmount) / float64(f.gifts[i].Amount) * 100
			if progress > 100 {
				progress = 100
			}
			f.gifts[i].Progress = progress
			f.gifts[i].IsCompleted = f.gifts[i].RaisedAmount >= f.gifts[i].Amount
		}
	}

	return nil
}

type fakePayments struct {
	outcome PaymentOutcome
	err     error
	gotCfg  PaymentConfig
	called  bool
}

func (f *fakePayments) Initiate(ctx context.Context, cfg PaymentConfig) (PaymentOutcome, error) {
	f.called = true
	f.gotCfg = cfg
	return f.outcome, f.err
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	infos     []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

type memReceipts struct {
	mu      sync.Mutex
	byTxNo  map[string]Receipt
	saveErr error
}

func newMemReceipts() *memReceipts {
	return &memReceipts{byTxNo: map[string]Receipt{}}
}

func (m *memReceipts) SaveReceipt(ctx context.Context, r Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.byTxNo[r.TransactionNo] = r
	return nil
}

func (m *memReceipts) ReceiptByTransaction(ctx context.Context, transactionNo string) (Receipt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byTxNo[transactionNo]
	return r, ok, nil
}

func (m *memReceipts) ListReceipts(ctx context.Context) ([]Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Receipt
	for _, r := range m.byTxNo {
		out = append(out, r)
	}
	return out, nil
}

func minorUnits(n int64) *int64 {
	return &n
}

func validForm(amountMajor int64) ContributeForm {
	return ContributeForm{
		Name:         "Ada Obi",
		Phone:        "+2348012345678",
		Email:        "ada@example.com",
		Representing: RepresentingBride,
		Amount:       amountMajor,
	}
}

func newTestWorkflow(t *testing.T, gifts []GiftItem, payments *fakePayments) (*Workflow, *fakeGiftService, *recordingNotifier, *Catalog) {
	t.Helper()

	service := &fakeGiftService{gifts: gifts}
	catalog := NewCatalog(service)

	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	notify := &recordingNotifier{}
	workflow := NewWorkflow(catalog, service, payments, notify, WithPublicKey("pk_test_abc"))

	return workflow, service, notify, catalog
}

func TestSelectCompletedGiftFailsClosed(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Title: "Espresso Machine", Amount: 1000000, RaisedAmount: 1000000, IsCompleted: true}
	workflow, _, notify, _ := newTestWorkflow(t, []GiftItem{gift}, &fakePayments{})

	err := workflow.Select(gift)
	if !errors.Is(err, ErrGiftCompleted) {
		t.Fatalf("err = %v, want ErrGiftCompleted", err)
	}

	if workflow.State() != StateBrowsing {
		t.Errorf("state = %v, want browsing", workflow.State())
	}
	if notify.lastError() == "" {
		t.Error("expected an error notice")
	}
}

func TestSelectPrefillsAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		min  *int64
		want int64
	}{
		{name: "minimum bound converted to major units", min: minorUnits(1000000), want: 10000},
		{name: "no bound falls back to the floor", min: nil, want: 5000},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gift := GiftItem{ID: "g1", Amount: 10000000, MinPerGuest: tc.min}
			workflow, _, _, _ := newTestWorkflow(t, []GiftItem{gift}, &fakePayments{})

			if err := workflow.Select(gift); err != nil {
				t.Fatalf("select: %v", err)
			}

			if got := workflow.Form().Amount; got != tc.want {
				t.Errorf("prefilled amount = %d, want %d", got, tc.want)
			}
			if workflow.State() != StateSelecting {
				t.Errorf("state = %v, want selecting", workflow.State())
			}
		})
	}
}

func TestValidationGate(t *testing.T) {
	t.Parallel()

	gift := GiftItem{
		ID:          "g1",
		Title:       "Honeymoon Fund",
		Amount:      10000000,
		MinPerGuest: minorUnits(10000),
		MaxPerGuest: minorUnits(50000),
	}

	mutate := func(f func(*ContributeForm)) ContributeForm {
		form := validForm(200)
		f(&form)
		return form
	}

	cases := []struct {
		name        string
		form        ContributeForm
		wantMessage string
	}{
		{
			name:        "blank name",
			form:        mutate(func(f *ContributeForm) { f.Name = "   " }),
			wantMessage: "Please fill in all fields and select an amount",
		},
		{
			name:        "missing phone",
			form:        mutate(func(f *ContributeForm) { f.Phone = "" }),
			wantMessage: "Please fill in all fields and select an amount",
		},
		{
			name:        "missing representing",
			form:        mutate(func(f *ContributeForm) { f.Representing = "" }),
			wantMessage: "Please fill in all fields and select an amount",
		},
		{
			name:        "zero amount",
			form:        mutate(func(f *ContributeForm) { f.Amount = 0 }),
			wantMessage: "Please fill in all fields and select an amount",
		},
		{
			name:        "malformed email",
			form:        mutate(func(f *ContributeForm) { f.Email = "not-an-email" }),
			wantMessage: "Please enter a valid email address",
		},
		{
			name:        "below minimum bound",
			form:        validForm(99),
			wantMessage: "Minimum contribution is ₦100",
		},
		{
			name:        "above maximum bound",
			form:        validForm(501),
			wantMessage: "Maximum contribution is ₦500",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			workflow, service, notify, _ := newTestWorkflow(t, []GiftItem{gift}, &fakePayments{})
			if err := workflow.Select(gift); err != nil {
				t.Fatalf("select: %v", err)
			}

			err := workflow.Submit(context.Background(), tc.form)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}

			if got := notify.lastError(); got != tc.wantMessage {
				t.Errorf("message = %q, want %q", got, tc.wantMessage)
			}
			if workflow.State() != StateSelecting {
				t.Errorf("state = %v, want selecting", workflow.State())
			}
			if service.created != 0 {
				t.Error("validation failure reached the network")
			}
		})
	}
}

func TestValidationAcceptsExactBounds(t *testing.T) {
	t.Parallel()

	gift := GiftItem{
		ID:          "g1",
		Amount:      10000000,
		MinPerGuest: minorUnits(10000),
		MaxPerGuest: minorUnits(50000),
	}

	for _, amount := range []int64{100, 500} {
		workflow, service, _, _ := newTestWorkflow(t, []GiftItem{gift}, &fakePayments{})
		if err := workflow.Select(gift); err != nil {
			t.Fatalf("select: %v", err)
		}

		if err := workflow.Submit(context.Background(), validForm(amount)); err != nil {
			t.Errorf("amount %d rejected: %v", amount, err)
		}
		if service.created != 1 {
			t.Errorf("amount %d: created = %d, want 1", amount, service.created)
		}
	}
}

func TestValidationRejectsOverRemainingCapacity(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Amount: 10000000, RaisedAmount: 9600000}
	workflow, service, notify, _ := newTestWorkflow(t, []GiftItem{gift}, &fakePayments{})

	if err := workflow.Select(gift); err != nil {
		t.Fatalf("select: %v", err)
	}

	// ₦5,000 is 500,000 kobo; only 400,000 kobo of capacity remains.
	err := workflow.Submit(context.Background(), validForm(5000))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	if got, want := notify.lastError(), "Maximum contribution for this gift is ₦4,000"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if service.created != 0 {
		t.Error("over-capacity submission reached the network")
	}
}

func TestContributionEndToEnd(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Title: "Honeymoon Fund", Amount: 1000000, MinPerGuest: minorUnits(5000)}
	payments := &fakePayments{outcome: PaymentOutcome{Reference: "TX-1234", Completed: true}}

	receipts := newMemReceipts()
	service := &fakeGiftService{gifts: []GiftItem{gift}}
	catalog := NewCatalog(service)
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	notify := &recordingNotifier{}
	workflow := NewWorkflow(catalog, service, payments, notify,
		WithPublicKey("pk_test_abc"), WithReceiptStore(receipts))

	if err := workflow.Select(gift); err != nil {
		t.Fatalf("select: %v", err)
	}

	// Pre-filled from the ₦50 minimum; the guest types ₦5,000 instead.
	form := workflow.Form()
	form.Name = "Ada Obi"
	form.Phone = "+2348012345678"
	form.Email = "ada@example.com"
	form.Representing = RepresentingBoth
	form.Amount = 5000

	if err := workflow.Submit(context.Background(), form); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if service.lastGiftID != "g1" {
		t.Errorf("gift id = %q, want g1", service.lastGiftID)
	}
	if service.lastReq.Amount != 500000 {
		t.Errorf("wire amount = %d kobo, want 500000", service.lastReq.Amount)
	}
	if workflow.State() != StateAwaitingPayment {
		t.Fatalf("state = %v, want awaiting-payment", workflow.State())
	}

	if err := workflow.AwaitPayment(context.Background()); err != nil {
		t.Fatalf("await payment: %v", err)
	}

	if !payments.called {
		t.Fatal("payment boundary never invoked")
	}
	if payments.gotCfg.Reference != "TX-1234" || payments.gotCfg.Amount != 500000 || payments.gotCfg.Email != "ada@example.com" {
		t.Errorf("payment config = %+v", payments.gotCfg)
	}
	if payments.gotCfg.PublicKey != "pk_test_abc" {
		t.Errorf("public key = %q", payments.gotCfg.PublicKey)
	}

	if len(service.confirmed) != 1 || service.confirmed[0] != "TX-1234" {
		t.Errorf("confirmed = %v, want [TX-1234]", service.confirmed)
	}

	patched, _ := catalog.Gift("g1")
	if patched.RaisedAmount != 500000 {
		t.Errorf("raised = %d, want 500000", patched.RaisedAmount)
	}
	if patched.Progress != 50 {
		t.Errorf("progress = %v, want 50", patched.Progress)
	}
	if patched.IsCompleted {
		t.Error("gift marked completed at half its goal")
	}

	if workflow.State() != StateSettled {
		t.Errorf("state = %v, want settled", workflow.State())
	}
	if workflow.TransactionNo() != "TX-1234" {
		t.Errorf("transaction = %q, want TX-1234", workflow.TransactionNo())
	}

	if len(notify.successes) == 0 || !strings.Contains(notify.successes[len(notify.successes)-1], "Honeymoon Fund") {
		t.Errorf("success notice = %v, want one naming the gift", notify.successes)
	}

	if _, found, _ := receipts.ReceiptByTransaction(context.Background(), "TX-1234"); !found {
		t.Error("no receipt recorded for the confirmed contribution")
	}
}

func TestPaymentCancelled(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Title: "Honeymoon Fund", Amount: 1000000}
	payments := &fakePayments{outcome: PaymentOutcome{Reference: "TX-1234", Completed: false}}
	workflow, service, notify, catalog := newTestWorkflow(t, []GiftItem{gift}, payments)

	if err := workflow.Select(gift); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := workflow.Submit(context.Background(), validForm(5000)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := workflow.AwaitPayment(context.Background()); err != nil {
		t.Fatalf("await payment: %v", err)
	}

	if workflow.State() != StateCancelled {
		t.Errorf("state = %v, want cancelled", workflow.State())
	}
	if len(service.confirmed) != 0 {
		t.Error("confirm called after a cancelled payment")
	}

	unchanged, _ := catalog.Gift("g1")
	if unchanged.RaisedAmount != 0 {
		t.Errorf("raised = %d, want 0 after cancellation", unchanged.RaisedAmount)
	}

	notify.mu.Lock()
	infos := append([]string(nil), notify.infos...)
	notify.mu.Unlock()

	found := false
	for _, msg := range infos {
		if strings.Contains(msg, "cancelled") {
			found = true
		}
	}
	if !found {
		t.Errorf("infos = %v, want a cancellation notice", infos)
	}
}

func TestConfirmFailureTearsDownPaymentState(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Title: "Honeymoon Fund", Amount: 1000000}
	payments := &fakePayments{outcome: PaymentOutcome{Reference: "TX-1234", Completed: true}}
	workflow, service, notify, catalog := newTestWorkflow(t, []GiftItem{gift}, payments)
	service.confirmErr = errors.New("confirm blew up")

	if err := workflow.Select(gift); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := workflow.Submit(context.Background(), validForm(5000)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := workflow.AwaitPayment(context.Background()); err == nil {
		t.Fatal("expected confirmation error")
	}

	if got, want := notify.lastError(), "Payment completed but confirmation failed"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if workflow.State() != StateBrowsing {
		t.Errorf("state = %v, want browsing", workflow.State())
	}
	if workflow.TransactionNo() != "" {
		t.Errorf("transaction = %q, want cleared", workflow.TransactionNo())
	}

	unchanged, _ := catalog.Gift("g1")
	if unchanged.RaisedAmount != 0 {
		t.Errorf("raised = %d, want 0 when confirmation failed", unchanged.RaisedAmount)
	}
}

func TestSubmitServerErrorReturnsToSelecting(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Amount: 1000000}
	workflow, service, notify, _ := newTestWorkflow(t, []GiftItem{gift}, &fakePayments{})
	service.createErr = &ServiceError{Message: "Gift not found"}

	if err := workflow.Select(gift); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := workflow.Submit(context.Background(), validForm(5000)); err == nil {
		t.Fatal("expected submit error")
	}

	if workflow.State() != StateSelecting {
		t.Errorf("state = %v, want selecting", workflow.State())
	}
	if got := notify.lastError(); got != "Gift not found" {
		t.Errorf("message = %q, want the server's message", got)
	}
}

func TestDuplicateTransactionSkipsPatch(t *testing.T) {
	t.Parallel()

	gift := GiftItem{ID: "g1", Title: "Honeymoon Fund", Amount: 1000000}
	payments := &fakePayments{outcome: PaymentOutcome{Reference: "TX-1234", Completed: true}}

	receipts := newMemReceipts()
	receipts.byTxNo["TX-1234"] = Receipt{TransactionNo: "TX-1234", CreatedAt: time.Now()}

	service := &fakeGiftService{gifts: []GiftItem{gift}}
	catalog := NewCatalog(service)
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	workflow := NewWorkflow(catalog, service, payments, &recordingNotifier{}, WithReceiptStore(receipts))

	if err := workflow.Select(gift); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := workflow.Submit(context.Background(), validForm(5000)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := workflow.AwaitPayment(context.Background()); err != nil {
		t.Fatalf("await payment: %v", err)
	}

	if workflow.State() != StateSettled {
		t.Errorf("state = %v, want settled", workflow.State())
	}
}
