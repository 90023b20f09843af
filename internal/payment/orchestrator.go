package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/audit"
	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var paymentTracer = otel.Tracer("bookingflow.internal.payment")

// StatusSource reads the external wallet status for a pending order.
type StatusSource interface {
	PaymentStatus(ctx context.Context, orderID string) (externalStatus string, err error)
}

// TransitionListener observes committed state changes. Used by the payment
// status websocket.
type TransitionListener func(ownerID string, rec StateRecord)

// Orchestrator governs cash and wallet confirmation. Transitions are
// monotonic: AwaitingConfirmation → Processing → Completed | Failed |
// AwaitingManual, enforced on every durable write.
type Orchestrator struct {
	store       *TransactionStore
	launcher    Launcher
	status      StatusSource
	journal     *audit.Journal
	logger      *logging.Logger
	maxAttempts int
	interval    time.Duration
	listener    TransitionListener
}

// NewOrchestrator constructs a payment orchestrator.
func NewOrchestrator(store *TransactionStore, launcher Launcher, status StatusSource, journal *audit.Journal, maxAttempts int, interval time.Duration, logger *logging.Logger) *Orchestrator {
	if store == nil {
		panic("payment: transaction store required")
	}
	if launcher == nil {
		launcher = NewRedirectLauncher()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Orchestrator{
		store:       store,
		launcher:    launcher,
		status:      status,
		journal:     journal,
		logger:      logger,
		maxAttempts: maxAttempts,
		interval:    interval,
	}
}

// SetTransitionListener registers the single transition observer.
func (o *Orchestrator) SetTransitionListener(l TransitionListener) {
	o.listener = l
}

// State returns the owner's durable payment record.
func (o *Orchestrator) State(ctx context.Context, ownerID string) (*StateRecord, error) {
	return o.store.Load(ctx, ownerID)
}

// ConfirmCash runs the cash path: Processing is entered on user confirmation
// and Completed immediately after, with no external call. The booking itself
// stays pending_payment until settled in person.
func (o *Orchestrator) ConfirmCash(ctx context.Context, ownerID, bookingID string) (*StateRecord, error) {
	ctx, span := paymentTracer.Start(ctx, "payment.confirm_cash")
	defer span.End()

	rec, err := o.begin(ctx, ownerID, domain.PaymentMethodCash, bookingID)
	if err != nil {
		return nil, err
	}
	if err := o.commit(ctx, ownerID, rec, domain.PaymentStateProcessing); err != nil {
		return nil, err
	}
	if err := o.commit(ctx, ownerID, rec, domain.PaymentStateCompleted); err != nil {
		return nil, err
	}
	o.logger.Info("cash payment confirmed", "owner_id", ownerID, "booking_id", bookingID)
	return rec, nil
}

// LaunchWallet opens the wallet redirect for a created booking. It tries the
// app deep link first and falls back to the web URL; if neither opens, the
// record keeps AwaitingConfirmation with the error stored and
// PaymentLaunchError is returned. On success the transaction is persisted
// and the machine enters Processing.
func (o *Orchestrator) LaunchWallet(ctx context.Context, ownerID, bookingID string, redirect *domain.PaymentRedirect, orderID, requestID string, amountCents int64) (*StateRecord, error) {
	ctx, span := paymentTracer.Start(ctx, "payment.launch_wallet")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.order_id", orderID),
		attribute.Int64("payment.amount_cents", amountCents),
	)

	rec, err := o.begin(ctx, ownerID, domain.PaymentMethodWallet, bookingID)
	if err != nil {
		return nil, err
	}

	if redirect == nil {
		return o.launchFailed(ctx, ownerID, rec, "booking service returned no redirect target")
	}

	launched := false
	if redirect.DeepLink != "" {
		if err := o.launcher.Open(ctx, redirect.DeepLink); err != nil {
			o.logger.Warn("wallet deep link failed, falling back to web url",
				"owner_id", ownerID, "error", err)
		} else {
			launched = true
		}
	}
	if !launched && redirect.WebURL != "" {
		if err := o.launcher.Open(ctx, redirect.WebURL); err != nil {
			o.logger.Warn("wallet web url failed", "owner_id", ownerID, "error", err)
		} else {
			launched = true
		}
	}
	if !launched {
		return o.launchFailed(ctx, ownerID, rec, "neither deep link nor web url could be opened")
	}

	rec.Transaction = &domain.PaymentTransaction{
		OrderID:        orderID,
		RequestID:      requestID,
		AmountCents:    amountCents,
		ExternalStatus: "pending",
		LaunchedAt:     time.Now().UTC(),
	}
	if err := o.commit(ctx, ownerID, rec, domain.PaymentStateProcessing); err != nil {
		return nil, err
	}
	o.logger.Info("wallet payment launched",
		"owner_id", ownerID, "order_id", orderID, "amount_cents", amountCents)
	return rec, nil
}

// Resolve applies an external confirmation event to a processing wallet
// payment. Terminal records are left untouched, making delivery idempotent.
func (o *Orchestrator) Resolve(ctx context.Context, ownerID, externalStatus string) (*StateRecord, error) {
	ctx, span := paymentTracer.Start(ctx, "payment.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("payment.external_status", externalStatus))

	rec, err := o.store.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		o.logger.Info("ignoring confirmation for terminal payment",
			"owner_id", ownerID, "state", rec.State)
		return rec, nil
	}

	if rec.Transaction != nil {
		rec.Transaction.ExternalStatus = externalStatus
	}
	target := domain.PaymentStateFailed
	if confirmedStatus(externalStatus) {
		target = domain.PaymentStateCompleted
	}
	if err := o.commit(ctx, ownerID, rec, target); err != nil {
		return nil, err
	}
	return rec, nil
}

// Abandon resolves a pending wallet payment as failed on explicit user
// abandonment.
func (o *Orchestrator) Abandon(ctx context.Context, ownerID string) (*StateRecord, error) {
	rec, err := o.store.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return rec, nil
	}
	rec.LastError = "abandoned by user"
	if err := o.commit(ctx, ownerID, rec, domain.PaymentStateFailed); err != nil {
		return nil, err
	}
	return rec, nil
}

// PollConfirmation polls the external status a bounded number of times,
// stopping early when ctx is cancelled (the user navigated away) or the
// record turns terminal via the webhook. Exhausting the bound commits the
// explicit AwaitingManual terminal outcome instead of looping forever.
func (o *Orchestrator) PollConfirmation(ctx context.Context, ownerID string) (*StateRecord, error) {
	ctx, span := paymentTracer.Start(ctx, "payment.poll_confirmation")
	defer span.End()

	rec, err := o.store.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return rec, nil
	}
	if rec.Transaction == nil {
		return nil, fmt.Errorf("payment: no transaction to poll for owner")
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			o.logger.Info("confirmation polling stopped", "owner_id", ownerID, "attempt", attempt)
			return rec, ctx.Err()
		case <-ticker.C:
		}

		// The webhook may have resolved the payment between ticks.
		rec, err = o.store.Load(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if rec.State.Terminal() {
			return rec, nil
		}

		if o.status == nil {
			continue
		}
		externalStatus, err := o.status.PaymentStatus(ctx, rec.Transaction.OrderID)
		if err != nil {
			o.logger.Warn("payment status poll failed",
				"owner_id", ownerID, "attempt", attempt, "error", err)
			continue
		}
		if settledStatus(externalStatus) {
			return o.Resolve(ctx, ownerID, externalStatus)
		}
	}

	rec.LastError = "confirmation polling exhausted"
	if err := o.commit(ctx, ownerID, rec, domain.PaymentStateAwaitingManual); err != nil {
		return nil, err
	}
	o.logger.Warn("wallet confirmation awaiting manual resolution", "owner_id", ownerID)
	return rec, nil
}

// begin starts a fresh confirmation attempt. A stored record that is already
// Processing, Completed or AwaitingManual blocks the attempt; a Failed record
// may be replaced, since the user is offered a retry after failure.
func (o *Orchestrator) begin(ctx context.Context, ownerID string, method domain.PaymentMethod, bookingID string) (*StateRecord, error) {
	existing, err := o.store.Load(ctx, ownerID)
	if err != nil && !errors.Is(err, ErrNoPayment) {
		return nil, err
	}
	if existing != nil {
		switch existing.State {
		case domain.PaymentStateProcessing:
			return nil, fmt.Errorf("payment: confirmation already in progress")
		case domain.PaymentStateCompleted, domain.PaymentStateAwaitingManual:
			return nil, fmt.Errorf("payment: already settled as %s", existing.State)
		}
	}
	return &StateRecord{
		State:     domain.PaymentStateAwaitingConfirmation,
		Method:    method,
		BookingID: bookingID,
	}, nil
}

// launchFailed stores the failure on the record, keeps AwaitingConfirmation
// and returns PaymentLaunchError.
func (o *Orchestrator) launchFailed(ctx context.Context, ownerID string, rec *StateRecord, reason string) (*StateRecord, error) {
	rec.LastError = reason
	rec.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, ownerID, rec); err != nil {
		return nil, err
	}
	return rec, &domain.PaymentLaunchError{Reason: reason}
}

// commit validates the transition against the durable record, persists the
// new state and notifies the listener and journal. Validating against what is
// stored, not what the caller holds in memory, keeps a concurrent writer from
// dragging a settled payment backwards.
func (o *Orchestrator) commit(ctx context.Context, ownerID string, rec *StateRecord, to domain.PaymentState) error {
	from := rec.State
	stored, err := o.store.Load(ctx, ownerID)
	switch {
	case err == nil:
		// A Failed record may be superseded by a fresh attempt; every other
		// stored state is the authoritative transition source.
		if !(stored.State == domain.PaymentStateFailed && rec.State == domain.PaymentStateAwaitingConfirmation) {
			from = stored.State
		}
	case !errors.Is(err, ErrNoPayment):
		return err
	}
	if !validTransition(from, to) {
		return fmt.Errorf("payment: illegal transition %s -> %s", from, to)
	}
	rec.State = to
	rec.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, ownerID, rec); err != nil {
		return err
	}
	if o.journal != nil {
		_ = o.journal.RecordDetails(ctx, audit.EventPaymentTransition, ownerID, map[string]any{
			"state":      rec.State,
			"method":     rec.Method,
			"booking_id": rec.BookingID,
		})
	}
	if o.listener != nil {
		o.listener(ownerID, *rec)
	}
	return nil
}

func validTransition(from, to domain.PaymentState) bool {
	switch from {
	case domain.PaymentStateAwaitingConfirmation:
		return to == domain.PaymentStateProcessing
	case domain.PaymentStateProcessing:
		return to == domain.PaymentStateCompleted ||
			to == domain.PaymentStateFailed ||
			to == domain.PaymentStateAwaitingManual
	default:
		return false
	}
}

func confirmedStatus(externalStatus string) bool {
	switch strings.ToUpper(strings.TrimSpace(externalStatus)) {
	case "CAPTURED", "COMPLETED", "PAID", "SUCCEEDED":
		return true
	}
	return false
}

func settledStatus(externalStatus string) bool {
	switch strings.ToUpper(strings.TrimSpace(externalStatus)) {
	case "CAPTURED", "COMPLETED", "PAID", "SUCCEEDED", "FAILED", "CANCELLED", "EXPIRED":
		return true
	}
	return false
}
