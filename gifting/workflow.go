package gifting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ContributionService is the mutating slice of the remote gift service.
type ContributionService interface {
	CreateContribution(ctx context.Context, giftID string, req ContributionRequest) (Transaction, error)
	ConfirmContribution(ctx context.Context, transactionNo string) error
}

// PaymentConfig is handed to the payment boundary once a transaction
// reference exists. Amount is in minor units. It lives from contribution
// creation until the payment resolves, then is discarded.
type PaymentConfig struct {
	Reference string
	Email     string
	Amount    int64
	PublicKey string
}

// PaymentOutcome is the single resolution of a payment attempt: either the
// guest completed checkout (Completed, with the processor's reference) or
// they closed it without paying.
type PaymentOutcome struct {
	Reference string
	Completed bool
}

// PaymentInitiator runs an external checkout to exactly one outcome.
type PaymentInitiator interface {
	Initiate(ctx context.Context, cfg PaymentConfig) (PaymentOutcome, error)
}

// Notifier surfaces non-blocking notices to the guest.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// WorkflowState tags where a contribution attempt currently is. Every
// transition is explicit; there are no reachable flag combinations outside
// this enum.
type WorkflowState int

const (
	StateBrowsing WorkflowState = iota
	StateSelecting
	StateSubmitting
	StateAwaitingPayment
	StateConfirming
	StateSettled
	StateCancelled
)

func (s WorkflowState) String() string {
	switch s {
	case StateBrowsing:
		return "browsing"
	case StateSelecting:
		return "selecting"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingPayment:
		return "awaiting-payment"
	case StateConfirming:
		return "confirming"
	case StateSettled:
		return "settled"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	ErrGiftCompleted = errors.New("gift already fully funded")
	ErrValidation    = errors.New("invalid contribution")
	ErrWrongState    = errors.New("operation not allowed in current state")
	ErrStalePayment  = errors.New("payment resolved after state was cleared")
)

// Default pre-filled amount, in major units, for gifts with no minimum bound.
const defaultAmountMajor = 5000

var validate = validator.New()

func init() {
	// Non-empty after trimming, mirroring the form-side checks.
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return len(regexp.MustCompile(`\S`).FindString(fl.Field().String())) > 0
	})
}

type contributionInput struct {
	Name         string `validate:"required,notblank"`
	Phone        string `validate:"required,notblank"`
	Email        string `validate:"required,email"`
	Representing string `validate:"required,notblank"`
	Amount       int64  `validate:"gt=0"`
}

// Workflow coordinates one contribution attempt end to end: gift selection,
// form validation, contribution creation, external payment, confirmation,
// and the optimistic catalog patch. Side effects are strictly ordered: no
// payment before a transaction reference exists, no local total mutated
// before the server confirms, and the reconciling refresh never blocks the
// success notice.
type Workflow struct {
	catalog   *Catalog
	service   ContributionService
	payments  PaymentInitiator
	notify    Notifier
	receipts  ReceiptStore
	publicKey string
	logger    *slog.Logger

	state         WorkflowState
	selected      *GiftItem
	form          ContributeForm
	config        *PaymentConfig
	transactionNo string
}

type WorkflowOption func(*Workflow)

// WithReceiptStore records confirmed contributions in a local ledger, which
// also guards the catalog patch against double application for a transaction.
func WithReceiptStore(store ReceiptStore) WorkflowOption {
	return func(w *Workflow) {
		w.receipts = store
	}
}

// WithPublicKey sets the processor public key placed on payment configs.
func WithPublicKey(key string) WorkflowOption {
	return func(w *Workflow) {
		w.publicKey = key
	}
}

func WithLogger(logger *slog.Logger) WorkflowOption {
	return func(w *Workflow) {
		w.logger = logger
	}
}

func NewWorkflow(catalog *Catalog, service ContributionService, payments PaymentInitiator, notify Notifier, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		catalog:  catalog,
		service:  service,
		payments: payments,
		notify:   notify,
		logger:   slog.Default(),
		state:    StateBrowsing,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Workflow) State() WorkflowState {
	return w.state
}

// Form returns the current form contents, including the pre-filled amount
// set when a gift was selected.
func (w *Workflow) Form() ContributeForm {
	return w.form
}

func (w *Workflow) TransactionNo() string {
	return w.transactionNo
}

// Select opens the contribution form for a gift. Fully funded gifts fail
// closed: the state stays where it was and the guest is told to pick another.
// The amount field is pre-filled with the gift's minimum bound in major
// units, or a fixed floor when no bound is set.
func (w *Workflow) Select(gift GiftItem) error {
	if !w.idle() {
		return fmt.Errorf("%w: cannot select while %s", ErrWrongState, w.state)
	}

	if gift.IsCompleted {
		w.notify.Error("This gift has been fully funded. Please choose another one.")
		return ErrGiftCompleted
	}

	amount := int64(defaultAmountMajor)
	if gift.MinPerGuest != nil {
		amount = ToMajor(*gift.MinPerGuest)
	}

	w.selected = &gift
	w.form = ContributeForm{Amount: amount}
	w.state = StateSelecting

	return nil
}

// Cancel abandons an open form and returns to browsing.
func (w *Workflow) Cancel() {
	if w.state != StateSelecting {
		return
	}
	w.clear()
	w.state = StateBrowsing
}

// Reset returns a settled or cancelled workflow to browsing.
func (w *Workflow) Reset() {
	w.clear()
	w.state = StateBrowsing
}

// Submit validates the form, creates the contribution remotely, and hands
// off to the payment boundary. Validation failures keep the workflow in
// Selecting with a rule-specific message; remote failures return to
// Selecting with the server's message, and nothing retries automatically.
func (w *Workflow) Submit(ctx context.Context, form ContributeForm) error {
	if w.state != StateSelecting || w.selected == nil {
		return fmt.Errorf("%w: cannot submit while %s", ErrWrongState, w.state)
	}

	form.Name = strings.TrimSpace(form.Name)
	form.Phone = strings.TrimSpace(form.Phone)
	form.Email = strings.TrimSpace(form.Email)
	form.Representing = strings.TrimSpace(form.Representing)
	w.form = form

	if err := w.validateForm(form, *w.selected); err != nil {
		w.notify.Error(err.Error())
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	w.state = StateSubmitting

	amountMinor := ToMinor(form.Amount)

	tx, err := w.service.CreateContribution(ctx, w.selected.ID, ContributionRequest{
		Name:         form.Name,
		Phone:        form.Phone,
		Email:        form.Email,
		Representing: form.Representing,
		Amount:       amountMinor,
	})
	if err != nil {
		w.state = StateSelecting
		w.notify.Error(serviceMessage(err, "An error occurred while processing your request"))
		return fmt.Errorf("creating contribution: %w", err)
	}

	w.transactionNo = tx.TransactionNo
	w.config = &PaymentConfig{
		Reference: tx.TransactionNo,
		Email:     form.Email,
		Amount:    amountMinor,
		PublicKey: w.publicKey,
	}
	w.state = StateAwaitingPayment
	w.notify.Info("Redirecting to payment...")

	return nil
}

// AwaitPayment runs the payment boundary to its single outcome and finishes
// the workflow: confirm-and-patch on completion, a cancellation notice on
// close.
func (w *Workflow) AwaitPayment(ctx context.Context) error {
	if w.state != StateAwaitingPayment || w.config == nil {
		return fmt.Errorf("%w: no payment pending", ErrWrongState)
	}

	outcome, err := w.payments.Initiate(ctx, *w.config)
	if err != nil {
		w.clear()
		w.state = StateBrowsing
		w.notify.Error("An error occurred while processing your payment")
		return fmt.Errorf("initiating payment: %w", err)
	}

	if !outcome.Completed {
		w.paymentClosed()
		return nil
	}

	return w.paymentSucceeded(ctx, outcome.Reference)
}

// paymentSucceeded confirms the completed payment with the gift service,
// then patches the catalog optimistically and kicks off a reconciling
// refresh. The payment callback can fire after the guest dismissed
// everything, so it re-checks the state it is about to operate on.
func (w *Workflow) paymentSucceeded(ctx context.Context, reference string) error {
	if w.selected == nil || w.config == nil {
		return ErrStalePayment
	}

	gift := *w.selected
	amountMinor := ToMinor(w.form.Amount)

	w.state = StateConfirming

	if err := w.service.ConfirmContribution(ctx, reference); err != nil {
		// Money has likely moved; tear down payment state either way and
		// leave recovery to manual follow-up.
		w.clear()
		w.state = StateBrowsing
		w.notify.Error(serviceMessage(err, "Payment completed but confirmation failed"))
		return fmt.Errorf("confirming contribution %s: %w", reference, err)
	}

	if w.alreadyRecorded(ctx, reference) {
		w.logger.Warn("skipping duplicate contribution patch", "transaction", reference)
	} else {
		w.catalog.ApplyContribution(gift.ID, amountMinor)
		w.recordReceipt(ctx, reference, gift, amountMinor)
	}

	w.transactionNo = reference
	w.notify.Success(fmt.Sprintf("Thank you for your generous contribution! You've helped fund %s.", gift.Title))

	// Reconcile with server-authoritative totals; never blocks the notice.
	go func() {
		if err := w.catalog.Refresh(context.Background()); err != nil {
			w.logger.Warn("post-contribution catalog refresh failed", "error", err)
		}
	}()

	w.selected = nil
	w.config = nil
	w.form = ContributeForm{}
	w.state = StateSettled

	return nil
}

// paymentClosed handles the guest dismissing checkout: no server mutation
// happened, so nothing needs unwinding.
func (w *Workflow) paymentClosed() {
	w.notify.Info("Payment was cancelled.")
	w.config = nil
	w.transactionNo = ""
	w.state = StateCancelled
}

// validateForm runs the full client-side gate. Bound checks compare in minor
// units after converting the major-unit form amount.
func (w *Workflow) validateForm(form ContributeForm, gift GiftItem) error {
	input := contributionInput(form)

	if err := validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Field() == "Email" && fe.Tag() == "email" {
					return errors.New("Please enter a valid email address")
				}
			}
		}
		return errors.New("Please fill in all fields and select an amount")
	}

	amountMinor := ToMinor(form.Amount)

	if gift.MinPerGuest != nil && amountMinor < *gift.MinPerGuest {
		return fmt.Errorf("Minimum contribution is %s", FormatMinor(*gift.MinPerGuest))
	}

	if gift.MaxPerGuest != nil && amountMinor > *gift.MaxPerGuest {
		return fmt.Errorf("Maximum contribution is %s", FormatMinor(*gift.MaxPerGuest))
	}

	if remaining := gift.Remaining(); amountMinor > remaining {
		return fmt.Errorf("Maximum contribution for this gift is %s", FormatMinor(remaining))
	}

	return nil
}

func (w *Workflow) alreadyRecorded(ctx context.Context, transactionNo string) bool {
	if w.receipts == nil {
		return false
	}

	_, found, err := w.receipts.ReceiptByTransaction(ctx, transactionNo)
	if err != nil {
		w.logger.Warn("receipt lookup failed", "transaction", transactionNo, "error", err)
		return false
	}

	return found
}

func (w *Workflow) recordReceipt(ctx context.Context, reference string, gift GiftItem, amountMinor int64) {
	if w.receipts == nil {
		return
	}

	err := w.receipts.SaveReceipt(ctx, Receipt{
		TransactionNo: reference,
		GiftID:        gift.ID,
		GiftTitle:     gift.Title,
		Name:          w.form.Name,
		Email:         w.form.Email,
		AmountMinor:   amountMinor,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		w.logger.Warn("saving receipt failed", "transaction", reference, "error", err)
	}
}

func (w *Workflow) idle() bool {
	return w.state == StateBrowsing || w.state == StateSettled || w.state == StateCancelled
}

func (w *Workflow) clear() {
	w.selected = nil
	w.config = nil
	w.form = ContributeForm{}
	w.transactionNo = ""
}

// serviceMessage prefers the message the remote service sent, falling back
// to a generic one.
func serviceMessage(err error, fallback string) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
