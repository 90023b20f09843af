package submission

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lumenspa/bookingflow/internal/audit"
	"github.com/lumenspa/bookingflow/internal/bookingapi"
	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/pricing"
	"github.com/lumenspa/bookingflow/internal/session"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var submissionTracer = otel.Tracer("bookingflow.internal.submission")

// defaultNotes is substituted when the customer leaves notes blank.
const defaultNotes = "No special requests"

// BookingCreator submits an assembled booking.
type BookingCreator interface {
	CreateBooking(ctx context.Context, req bookingapi.CreateBookingRequest) (*bookingapi.CreateBookingResponse, error)
}

// ProfileSource reads the customer's stored profile.
type ProfileSource interface {
	Profile(ctx context.Context, accountID string) (*domain.Profile, error)
}

// SlotSource lists a date's slots for pre-submit revalidation.
type SlotSource interface {
	DaySlots(ctx context.Context, date string) ([]domain.TimeSlot, error)
}

// Result is a successful submission: the immutable record plus the raw
// booking service response carrying wallet launch data.
type Result struct {
	Record   domain.BookingRecord
	Response *bookingapi.CreateBookingResponse
	// Email and FullName are the resolved contact values actually submitted,
	// kept for the confirmation notification.
	Email    string
	FullName string
}

// Service validates and assembles a session into a create-booking request.
type Service struct {
	booking    BookingCreator
	profiles   ProfileSource
	slots      SlotSource
	pricing    *pricing.Engine
	journal    *audit.Journal
	logger     *logging.Logger
	titleCaser cases.Caser
}

// NewService constructs a submission service.
func NewService(booking BookingCreator, profiles ProfileSource, slots SlotSource, pricingEngine *pricing.Engine, journal *audit.Journal, logger *logging.Logger) *Service {
	if booking == nil {
		panic("submission: booking creator required")
	}
	if profiles == nil {
		panic("submission: profile source required")
	}
	if pricingEngine == nil {
		panic("submission: pricing engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		booking:    booking,
		profiles:   profiles,
		slots:      slots,
		pricing:    pricingEngine,
		journal:    journal,
		logger:     logger,
		titleCaser: cases.Title(language.Und),
	}
}

// Submit assembles and submits the session. A blank full name fails fast
// with ValidationError before any network call. Slot availability is
// re-validated against the scheduling service immediately before the create
// call so a window raced away by another booking surfaces as
// AvailabilityConflict instead of a booking-service rejection. On any error
// the session is left intact so retry needs no re-entry of data.
func (s *Service) Submit(ctx context.Context, sess *session.Session) (*Result, error) {
	ctx, span := submissionTracer.Start(ctx, "submission.submit")
	defer span.End()

	if err := sess.ReadyForSubmission(); err != nil {
		return nil, err
	}

	fullName := s.titleCaser.String(strings.TrimSpace(sess.Identity.FullName))
	if fullName == "" {
		return nil, &domain.ValidationError{Field: "full_name", Reason: "full name is required"}
	}

	profile, err := s.profiles.Profile(ctx, sess.OwnerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	phone := strings.TrimSpace(sess.Identity.Phone)
	if phone == "" {
		phone = strings.TrimSpace(profile.Phone)
	}

	if err := s.revalidateWindow(ctx, sess); err != nil {
		span.RecordError(err)
		return nil, err
	}

	quote, quoteErr := s.pricing.Quote(*sess.Treatment, sess.PromoCode)
	if quoteErr != nil {
		// An invalid code was already surfaced at entry time; submitting
		// simply proceeds without a discount.
		s.logger.Info("submitting without discount", "owner_id", sess.OwnerID, "promo_code", sess.PromoCode)
	}

	notes := strings.TrimSpace(sess.Notes)
	if notes == "" {
		notes = defaultNotes
	}

	req := bookingapi.CreateBookingRequest{
		Email:         profile.Email,
		Phone:         phone,
		FullName:      fullName,
		TreatmentID:   sess.Treatment.ID,
		SpecialistID:  sess.Specialist.SpecialistID(),
		Date:          sess.SlotSelection.Date,
		TimeSlotIDs:   sess.SlotSelection.SlotIDs,
		Notes:         notes,
		PaymentMethod: sess.PaymentMethod,
		TotalCents:    quote.TotalCents,
		PromoCode:     quote.PromoCode,
	}

	_ = s.journal.RecordDetails(ctx, audit.EventSubmissionAttempted, sess.OwnerID, map[string]any{
		"treatment_id":   req.TreatmentID,
		"payment_method": req.PaymentMethod,
		"total_cents":    req.TotalCents,
	})

	resp, err := s.booking.CreateBooking(ctx, req)
	if err != nil {
		span.RecordError(err)
		_ = s.journal.RecordDetails(ctx, audit.EventSubmissionFailed, sess.OwnerID, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	record := domain.BookingRecord{
		BookingID:     resp.BookingID,
		TreatmentID:   sess.Treatment.ID,
		SpecialistID:  sess.Specialist.SpecialistID(),
		TotalCents:    quote.TotalCents,
		PaymentMethod: sess.PaymentMethod,
		Status:        "confirmed",
		PaymentStatus: resp.PaymentStatus,
		CreatedAt:     time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("submission.booking_id", record.BookingID))

	_ = s.journal.Record(ctx, audit.Event{
		EventType: audit.EventBookingCreated,
		OwnerID:   sess.OwnerID,
		BookingID: record.BookingID,
	})
	s.logger.Info("booking created",
		"owner_id", sess.OwnerID,
		"booking_id", record.BookingID,
		"payment_method", record.PaymentMethod,
		"total_cents", record.TotalCents,
	)
	return &Result{Record: record, Response: resp, Email: profile.Email, FullName: fullName}, nil
}

// revalidateWindow re-checks the selected window against the scheduling
// service's current view.
func (s *Service) revalidateWindow(ctx context.Context, sess *session.Session) error {
	if s.slots == nil {
		return nil
	}
	daySlots, err := s.slots.DaySlots(ctx, sess.SlotSelection.Date)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.TimeSlot, len(daySlots))
	for _, slot := range daySlots {
		byID[slot.ID] = slot
	}

	window := make([]domain.TimeSlot, 0, len(sess.SlotSelection.SlotIDs))
	for _, id := range sess.SlotSelection.SlotIDs {
		slot, ok := byID[id]
		if !ok {
			return &domain.AvailabilityConflict{Reason: "slot " + id + " is no longer offered"}
		}
		window = append(window, slot)
	}
	return domain.ValidateWindow(window, sess.Treatment.RequiredSlots())
}
