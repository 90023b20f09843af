package flow

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/audit"
	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/notify"
	"github.com/lumenspa/bookingflow/internal/observability/metrics"
	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/internal/pricing"
	"github.com/lumenspa/bookingflow/internal/session"
	"github.com/lumenspa/bookingflow/internal/slots"
	"github.com/lumenspa/bookingflow/internal/specialist"
	"github.com/lumenspa/bookingflow/internal/submission"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var flowTracer = otel.Tracer("bookingflow.internal.flow")

// ErrResolutionInFlight is returned when a tap arrives while a previous
// tap's specialist cross-check is still running.
var ErrResolutionInFlight = errors.New("flow: slot resolution in progress")

// TreatmentSource reads treatments from the catalog service.
type TreatmentSource interface {
	ListTreatments(ctx context.Context) ([]domain.Treatment, error)
	GetTreatment(ctx context.Context, treatmentID string) (*domain.Treatment, error)
}

// TapOutcome is what a slot tap produced: either a toggle-off, or a
// committed window plus the specialist resolution for it.
type TapOutcome struct {
	Session    *session.Session       `json:"session"`
	Toggled    bool                   `json:"toggled"`
	Resolution *specialist.Resolution `json:"resolution,omitempty"`
}

// Submitter assembles and submits a ready session.
type Submitter interface {
	Submit(ctx context.Context, sess *session.Session) (*submission.Result, error)
}

// PaymentOrchestrator runs the payment confirmation state machine.
type PaymentOrchestrator interface {
	State(ctx context.Context, ownerID string) (*payment.StateRecord, error)
	ConfirmCash(ctx context.Context, ownerID, bookingID string) (*payment.StateRecord, error)
	LaunchWallet(ctx context.Context, ownerID, bookingID string, redirect *domain.PaymentRedirect, orderID, requestID string, amountCents int64) (*payment.StateRecord, error)
	Resolve(ctx context.Context, ownerID, externalStatus string) (*payment.StateRecord, error)
	Abandon(ctx context.Context, ownerID string) (*payment.StateRecord, error)
	PollConfirmation(ctx context.Context, ownerID string) (*payment.StateRecord, error)
}

// BookingAdmin covers booking-service operations outside the create path.
type BookingAdmin interface {
	CancelBooking(ctx context.Context, bookingID string) error
	BookingHistory(ctx context.Context, accountID string) ([]domain.BookingRecord, error)
}

// Notifier sends the post-submission confirmation.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, c notify.Confirmation) error
}

// ControllerDeps wires the flow controller's collaborators.
type ControllerDeps struct {
	Sessions    *session.Service
	Catalog     TreatmentSource
	Slots       *slots.Resolver
	Specialists *specialist.Resolver
	Pricing     *pricing.Engine
	Submitter   Submitter
	Payments    PaymentOrchestrator
	Bookings    BookingAdmin
	History     *HistoryCache
	Redis       *redis.Client
	PendingTTL  time.Duration
	Notifier    Notifier
	Journal     *audit.Journal
	Metrics     *metrics.FlowMetrics
	Logger      *logging.Logger
}

// Controller drives the booking flow step by step. It owns the session
// lifecycle and is the only writer of session snapshots; handlers stay thin
// and call into it.
type Controller struct {
	sessions    *session.Service
	catalog     TreatmentSource
	slots       *slots.Resolver
	specialists *specialist.Resolver
	guard       *specialist.Guard
	pricing     *pricing.Engine
	submitter   Submitter
	payments    PaymentOrchestrator
	bookings    BookingAdmin
	history     *HistoryCache
	pending     *pendingStore
	notifier    Notifier
	journal     *audit.Journal
	metrics     *metrics.FlowMetrics
	logger      *logging.Logger
}

// NewController wires the flow controller.
func NewController(d ControllerDeps) *Controller {
	if d.Sessions == nil {
		panic("flow: session service required")
	}
	if d.Catalog == nil {
		panic("flow: catalog source required")
	}
	if d.Slots == nil {
		panic("flow: slot resolver required")
	}
	if d.Specialists == nil {
		panic("flow: specialist resolver required")
	}
	if d.Pricing == nil {
		panic("flow: pricing engine required")
	}
	if d.Submitter == nil {
		panic("flow: submitter required")
	}
	if d.Payments == nil {
		panic("flow: payment orchestrator required")
	}
	if d.Redis == nil {
		panic("flow: redis client required")
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	return &Controller{
		sessions:    d.Sessions,
		catalog:     d.Catalog,
		slots:       d.Slots,
		specialists: d.Specialists,
		guard:       specialist.NewGuard(),
		pricing:     d.Pricing,
		submitter:   d.Submitter,
		payments:    d.Payments,
		bookings:    d.Bookings,
		history:     d.History,
		pending:     &pendingStore{redis: d.Redis, ttl: d.PendingTTL},
		notifier:    d.Notifier,
		journal:     d.Journal,
		metrics:     d.Metrics,
		logger:      d.Logger,
	}
}

// Start begins a flow for the owner. A live session is never silently
// overwritten: without confirmOverwrite the caller gets ErrSessionExists and
// must ask the user.
func (c *Controller) Start(ctx context.Context, ownerID string, confirmOverwrite bool) (*session.Session, error) {
	sess, err := c.sessions.Start(ctx, ownerID, confirmOverwrite)
	if err != nil {
		return nil, err
	}
	_ = c.journal.Record(ctx, audit.Event{EventType: audit.EventSessionStarted, OwnerID: ownerID})
	c.metrics.ObserveStep(string(session.StepTreatment))
	return sess, nil
}

// Current returns the owner's in-progress session.
func (c *Controller) Current(ctx context.Context, ownerID string) (*session.Session, error) {
	return c.sessions.Current(ctx, ownerID)
}

// End discards the flow on explicit, user-confirmed exit.
func (c *Controller) End(ctx context.Context, ownerID string) error {
	if err := c.sessions.End(ctx, ownerID); err != nil {
		return err
	}
	_ = c.journal.Record(ctx, audit.Event{EventType: audit.EventSessionEnded, OwnerID: ownerID})
	return nil
}

// RecentEvents returns the owner's latest journal entries, newest first.
// Without a journal backing store it returns nothing.
func (c *Controller) RecentEvents(ctx context.Context, ownerID string, limit int) ([]audit.Event, error) {
	return c.journal.RecentForOwner(ctx, ownerID, limit)
}

// ListTreatments exposes the catalog to the treatment picker.
func (c *Controller) ListTreatments(ctx context.Context) ([]domain.Treatment, error) {
	return c.catalog.ListTreatments(ctx)
}

// ChooseTreatment fixes the treatment for the flow, resetting any downstream
// schedule and specialist state.
func (c *Controller) ChooseTreatment(ctx context.Context, ownerID, treatmentID string) (*session.Session, error) {
	ctx, span := flowTracer.Start(ctx, "flow.choose_treatment")
	defer span.End()
	span.SetAttributes(attribute.String("flow.treatment_id", treatmentID))

	treatment, err := c.catalog.GetTreatment(ctx, treatmentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sess, err := c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
		s.SetTreatment(*treatment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveStep(string(session.StepSchedule))
	return sess, nil
}

// TapSlot maps a tap to a window, or toggles the current window off, and
// cross-checks specialist availability for a newly committed window. The
// per-owner guard rejects re-entrant taps while a resolution is in flight.
func (c *Controller) TapSlot(ctx context.Context, ownerID, date, slotID string) (*TapOutcome, error) {
	ctx, span := flowTracer.Start(ctx, "flow.tap_slot")
	defer span.End()
	span.SetAttributes(
		attribute.String("flow.date", date),
		attribute.String("flow.slot_id", slotID),
	)

	if !c.guard.TryAcquire(ownerID) {
		return nil, ErrResolutionInFlight
	}
	defer c.guard.Release(ownerID)

	sess, err := c.sessions.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sess.Treatment == nil {
		return nil, &domain.ValidationError{Field: "treatment", Reason: "treatment must be chosen before slots"}
	}

	started := time.Now()
	tap, err := c.slots.ResolveTap(ctx, date, slotID, *sess.Treatment, sess.SlotSelection)
	c.metrics.ObserveResolverLatency("slots", time.Since(started).Seconds())
	if err != nil {
		var conflict *domain.AvailabilityConflict
		if errors.As(err, &conflict) {
			c.metrics.ObserveSlotConflict("tap")
		}
		span.RecordError(err)
		return nil, err
	}

	if tap.Toggled {
		sess, err = c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
			s.ClearSlotSelection()
			return nil
		})
		if err != nil {
			return nil, err
		}
		_ = c.journal.Record(ctx, audit.Event{EventType: audit.EventWindowToggledOff, OwnerID: ownerID})
		return &TapOutcome{Session: sess, Toggled: true}, nil
	}

	prior := sess.Specialist

	started = time.Now()
	resolution, err := c.specialists.ResolveWindow(ctx, tap.Selection, prior)
	c.metrics.ObserveResolverLatency("specialist", time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sess, err = c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
		if err := s.SetSlotSelection(tap.Selection, tap.WindowSlots); err != nil {
			return err
		}
		// A prior choice survives the window change only when the resolver
		// confirmed the specialist is still free.
		if resolution.Outcome == specialist.OutcomeChoices && prior.SpecialistID() != "" {
			s.SetSpecialist(prior)
		}
		return nil
	})
	if err != nil {
		var conflict *domain.AvailabilityConflict
		if errors.As(err, &conflict) {
			c.metrics.ObserveSlotConflict("tap")
		}
		return nil, err
	}

	_ = c.journal.RecordDetails(ctx, audit.EventWindowSelected, ownerID, map[string]any{
		"date":     tap.Selection.Date,
		"slot_ids": tap.Selection.SlotIDs,
	})
	_ = c.journal.RecordDetails(ctx, audit.EventSpecialistResolved, ownerID, map[string]any{
		"outcome": string(resolution.Outcome),
	})
	if resolution.Outcome == specialist.OutcomeAvailabilityUnknown {
		_ = c.journal.RecordDetails(ctx, audit.EventSpecialistFallback, ownerID, map[string]any{
			"reason": resolution.FallbackReason,
		})
	}
	c.metrics.ObserveStep(string(session.StepSpecialist))
	return &TapOutcome{Session: sess, Resolution: resolution}, nil
}

// SpecialistDecision is the user's answer to a specialist resolution.
type SpecialistDecision struct {
	// SpecialistID accepts a specific specialist from the offered free set.
	SpecialistID string `json:"specialist_id,omitempty"`
	// Skip records a final "no specialist" choice.
	Skip bool `json:"skip"`
	// Cancel dismisses the picker and aborts the window change, restoring
	// the previous selection and specialist.
	Cancel bool `json:"cancel"`
}

// DecideSpecialist applies the user's decision. Accepting an ID re-checks it
// against who is currently free for the window, so a stale picker cannot
// book an unavailable specialist.
func (c *Controller) DecideSpecialist(ctx context.Context, ownerID string, decision SpecialistDecision) (*session.Session, error) {
	ctx, span := flowTracer.Start(ctx, "flow.decide_specialist")
	defer span.End()

	sess, err := c.sessions.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if sess.SlotSelection.IsEmpty() {
		return nil, &domain.ValidationError{Field: "slot_selection", Reason: "no time window selected"}
	}

	// Cancelling aborts the window change itself: the selection and
	// specialist from before the tap come back untouched.
	if decision.Cancel {
		sess, err = c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
			s.CancelWindowChange()
			return nil
		})
		if err != nil {
			return nil, err
		}
		_ = c.journal.RecordDetails(ctx, audit.EventWindowSelected, ownerID, map[string]any{
			"date":     sess.SlotSelection.Date,
			"slot_ids": sess.SlotSelection.SlotIDs,
			"restored": true,
		})
		return sess, nil
	}

	var choice *domain.SpecialistChoice
	switch {
	case decision.Skip:
		choice = &domain.SpecialistChoice{Skipped: true}
	case decision.SpecialistID != "":
		resolution, err := c.specialists.ResolveWindow(ctx, sess.SlotSelection, nil)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		var picked *domain.Specialist
		for i := range resolution.Free {
			if resolution.Free[i].ID == decision.SpecialistID {
				picked = &resolution.Free[i]
				break
			}
		}
		if picked == nil {
			return nil, &domain.AvailabilityConflict{Reason: "specialist is no longer free for this window"}
		}
		choice = &domain.SpecialistChoice{Specialist: picked}
	default:
		return nil, &domain.ValidationError{Field: "specialist", Reason: "decision must accept, skip, or cancel"}
	}

	sess, err = c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
		s.SetSpecialist(choice)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveStep(string(session.StepReview))
	return sess, nil
}

// ApplyPromo records a promo code on the session. An unknown code clears the
// discount and reports InvalidPromoCode alongside the cleared session; the
// flow keeps going either way.
func (c *Controller) ApplyPromo(ctx context.Context, ownerID, code string) (*session.Session, pricing.Quote, error) {
	ctx, span := flowTracer.Start(ctx, "flow.apply_promo")
	defer span.End()

	sess, err := c.sessions.Current(ctx, ownerID)
	if err != nil {
		return nil, pricing.Quote{}, err
	}
	if sess.Treatment == nil {
		return nil, pricing.Quote{}, &domain.ValidationError{Field: "treatment", Reason: "treatment must be chosen before promo"}
	}

	quote, quoteErr := c.pricing.Quote(*sess.Treatment, code)

	var invalid *domain.InvalidPromoCode
	if quoteErr != nil && !errors.As(quoteErr, &invalid) {
		return nil, pricing.Quote{}, quoteErr
	}

	sess, err = c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
		s.SetPromo(quote.PromoCode, quote.DiscountCents)
		return nil
	})
	if err != nil {
		return nil, pricing.Quote{}, err
	}

	if invalid != nil {
		_ = c.journal.RecordDetails(ctx, audit.EventPromoRejected, ownerID, map[string]any{"code": invalid.Code})
		c.metrics.ObservePromo("rejected")
		return sess, quote, quoteErr
	}
	if quote.PromoCode != "" {
		_ = c.journal.RecordDetails(ctx, audit.EventPromoApplied, ownerID, map[string]any{
			"code":           quote.PromoCode,
			"discount_cents": quote.DiscountCents,
		})
		c.metrics.ObservePromo("applied")
	}
	return sess, quote, nil
}

// SetNotes records free-form customer notes on the session.
func (c *Controller) SetNotes(ctx context.Context, ownerID, notes string) (*session.Session, error) {
	return c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
		s.SetNotes(notes)
		return nil
	})
}

// CurrentQuote prices the session as it stands.
func (c *Controller) CurrentQuote(ctx context.Context, ownerID string) (pricing.Quote, error) {
	sess, err := c.sessions.Current(ctx, ownerID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if sess.Treatment == nil {
		return pricing.Quote{}, &domain.ValidationError{Field: "treatment", Reason: "treatment must be chosen before quoting"}
	}
	quote, err := c.pricing.Quote(*sess.Treatment, sess.PromoCode)
	var invalid *domain.InvalidPromoCode
	if err != nil && errors.As(err, &invalid) {
		// The stored code went stale; quote without it.
		return quote, nil
	}
	return quote, err
}
