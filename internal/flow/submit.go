package flow

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/audit"
	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/notify"
	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/internal/session"
)

// SubmitRequest carries the review-screen inputs collected at submit time.
type SubmitRequest struct {
	FullName      string               `json:"full_name"`
	Phone         string               `json:"phone"`
	Notes         string               `json:"notes"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

// SubmitOutcome reports a created booking plus what the payment step needs.
type SubmitOutcome struct {
	Booking  domain.BookingRecord    `json:"booking"`
	Redirect *domain.PaymentRedirect `json:"redirect,omitempty"`
}

// Submit assembles the session plus review-screen inputs into a booking. On
// success the session is destroyed, a pending payment confirmation is staged,
// and the confirmation email goes out fire-and-forget. On any failure the
// session survives untouched so the user retries without re-entering data.
func (c *Controller) Submit(ctx context.Context, ownerID string, req SubmitRequest) (*SubmitOutcome, error) {
	ctx, span := flowTracer.Start(ctx, "flow.submit")
	defer span.End()
	span.SetAttributes(attribute.String("flow.payment_method", string(req.PaymentMethod)))

	if req.PaymentMethod != domain.PaymentMethodCash && req.PaymentMethod != domain.PaymentMethodWallet {
		return nil, &domain.ValidationError{Field: "payment_method", Reason: "must be cash or wallet"}
	}

	sess, err := c.sessions.Mutate(ctx, ownerID, func(s *session.Session) error {
		s.SetIdentity(domain.CustomerIdentity{FullName: req.FullName, Phone: req.Phone})
		if strings.TrimSpace(req.Notes) != "" {
			s.SetNotes(req.Notes)
		}
		s.SetPaymentMethod(req.PaymentMethod)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := c.submitter.Submit(ctx, sess)
	if err != nil {
		var conflict *domain.AvailabilityConflict
		if errors.As(err, &conflict) {
			c.metrics.ObserveSlotConflict("submit")
		}
		c.metrics.ObserveSubmission("failed", string(req.PaymentMethod))
		span.RecordError(err)
		return nil, err
	}
	c.metrics.ObserveSubmission("created", string(req.PaymentMethod))

	pending := &PendingConfirmation{
		Booking:     result.Record,
		Method:      req.PaymentMethod,
		Redirect:    result.Response.Redirect,
		OrderID:     result.Response.OrderID,
		RequestID:   result.Response.RequestID,
		AmountCents: result.Record.TotalCents,
	}
	if err := c.pending.save(ctx, ownerID, pending); err != nil {
		// The booking exists; losing the staging record must not fail the
		// submission. Payment state recovers through GET /flow/payment/state.
		c.logger.Error("failed to stage payment confirmation", "owner_id", ownerID, "error", err)
	}

	if c.history != nil {
		c.history.Prepend(ctx, ownerID, result.Record)
	}

	if c.notifier != nil {
		confirmation := notify.Confirmation{
			Email:         result.Email,
			FullName:      result.FullName,
			TreatmentName: sess.Treatment.Name,
			Date:          sess.SlotSelection.Date,
			StartTime:     sess.SlotSelection.StartTime,
			EndTime:       sess.SlotSelection.EndTime,
			Booking:       result.Record,
		}
		go func() {
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := c.notifier.SendBookingConfirmation(sendCtx, confirmation); err != nil {
				c.logger.Warn("confirmation email failed", "owner_id", ownerID, "error", err)
			}
		}()
	}

	if err := c.sessions.End(ctx, ownerID); err != nil {
		c.logger.Warn("failed to clear session after submission", "owner_id", ownerID, "error", err)
	}
	_ = c.journal.Record(ctx, audit.Event{EventType: audit.EventSessionEnded, OwnerID: ownerID})
	c.metrics.ObserveStep(string(session.StepPayment))

	return &SubmitOutcome{Booking: result.Record, Redirect: result.Response.Redirect}, nil
}

// ConfirmPayment runs the user's payment confirmation for the staged
// booking. Cash completes immediately; wallet launches the redirect and
// starts the bounded confirmation poller in the background.
func (c *Controller) ConfirmPayment(ctx context.Context, ownerID string) (*payment.StateRecord, error) {
	ctx, span := flowTracer.Start(ctx, "flow.confirm_payment")
	defer span.End()

	pending, err := c.pending.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if pending.Method == domain.PaymentMethodCash {
		rec, err := c.payments.ConfirmCash(ctx, ownerID, pending.Booking.BookingID)
		if err != nil {
			return nil, err
		}
		c.metrics.ObservePaymentOutcome(string(rec.State), string(pending.Method))
		if err := c.pending.clear(ctx, ownerID); err != nil {
			c.logger.Warn("failed to clear confirmed pending payment", "owner_id", ownerID, "error", err)
		}
		return rec, nil
	}

	rec, err := c.payments.LaunchWallet(ctx, ownerID, pending.Booking.BookingID,
		pending.Redirect, pending.OrderID, pending.RequestID, pending.AmountCents)
	if err != nil {
		c.metrics.ObservePaymentLaunch("wallet", "failed")
		span.RecordError(err)
		return nil, err
	}
	c.metrics.ObservePaymentLaunch("wallet", "opened")

	pollCtx := context.WithoutCancel(ctx)
	go func() {
		final, err := c.payments.PollConfirmation(pollCtx, ownerID)
		if err != nil {
			c.logger.Warn("wallet confirmation polling ended with error", "owner_id", ownerID, "error", err)
			return
		}
		c.metrics.ObservePaymentOutcome(string(final.State), string(domain.PaymentMethodWallet))
		if final.State == domain.PaymentStateCompleted {
			if err := c.pending.clear(pollCtx, ownerID); err != nil {
				c.logger.Warn("failed to clear settled pending payment", "owner_id", ownerID, "error", err)
			}
		}
	}()
	return rec, nil
}

// PaymentState reports the owner's payment machine position. Before the user
// has confirmed, a staged booking is reported as awaiting confirmation.
func (c *Controller) PaymentState(ctx context.Context, ownerID string) (*payment.StateRecord, error) {
	rec, err := c.payments.State(ctx, ownerID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, payment.ErrNoPayment) {
		return nil, err
	}
	pending, pendErr := c.pending.load(ctx, ownerID)
	if pendErr != nil {
		return nil, err
	}
	return &payment.StateRecord{
		State:     domain.PaymentStateAwaitingConfirmation,
		Method:    pending.Method,
		BookingID: pending.Booking.BookingID,
	}, nil
}

// AbandonPayment resolves a non-terminal wallet payment as failed on
// explicit user abandonment.
func (c *Controller) AbandonPayment(ctx context.Context, ownerID string) (*payment.StateRecord, error) {
	return c.payments.Abandon(ctx, ownerID)
}

// ResolveExternalPayment applies a wallet provider confirmation event,
// normally delivered by webhook. Terminal records make redelivery a no-op.
func (c *Controller) ResolveExternalPayment(ctx context.Context, ownerID, externalStatus string) (*payment.StateRecord, error) {
	rec, err := c.payments.Resolve(ctx, ownerID, externalStatus)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		c.metrics.ObservePaymentOutcome(string(rec.State), string(rec.Method))
		if rec.State == domain.PaymentStateCompleted {
			if err := c.pending.clear(ctx, ownerID); err != nil {
				c.logger.Warn("failed to clear settled pending payment", "owner_id", ownerID, "error", err)
			}
		}
	}
	return rec, nil
}

// CancelBooking cancels a booking with the booking service and drops the
// cached history.
func (c *Controller) CancelBooking(ctx context.Context, ownerID, bookingID string) error {
	if c.bookings == nil {
		return errors.New("flow: booking admin not configured")
	}
	if err := c.bookings.CancelBooking(ctx, bookingID); err != nil {
		return err
	}
	_ = c.journal.Record(ctx, audit.Event{
		EventType: audit.EventBookingCancelled,
		OwnerID:   ownerID,
		BookingID: bookingID,
	})
	if c.history != nil {
		c.history.Invalidate(ctx, ownerID)
	}
	c.logger.Info("booking cancelled", "owner_id", ownerID, "booking_id", bookingID)
	return nil
}

// History returns the owner's bookings, served from the Redis cache when
// fresh and read through from the booking service otherwise.
func (c *Controller) History(ctx context.Context, ownerID string) ([]domain.BookingRecord, error) {
	if c.bookings == nil {
		return nil, errors.New("flow: booking admin not configured")
	}
	if c.history != nil {
		if records, ok := c.history.Get(ctx, ownerID); ok {
			return records, nil
		}
	}
	records, err := c.bookings.BookingHistory(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if c.history != nil {
		if err := c.history.Set(ctx, ownerID, records); err != nil {
			c.logger.Warn("failed to cache booking history", "owner_id", ownerID, "error", err)
		}
	}
	return records, nil
}
