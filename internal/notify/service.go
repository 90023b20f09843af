package notify

import (
	"context"
	"fmt"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// Confirmation carries everything the booking confirmation email needs.
type Confirmation struct {
	Email         string
	FullName      string
	TreatmentName string
	Date          string // YYYY-MM-DD
	StartTime     string // HH:MM
	EndTime       string // HH:MM
	Booking       domain.BookingRecord
}

// Service sends customer-facing booking notifications. Send failures are
// logged and returned but never block the flow; callers fire and forget.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Service{email: email, logger: logger}
}

// SendBookingConfirmation emails the customer after a successful submission.
func (s *Service) SendBookingConfirmation(ctx context.Context, c Confirmation) error {
	if c.Email == "" {
		s.logger.Warn("notify: no customer email, skipping confirmation", "booking_id", c.Booking.BookingID)
		return nil
	}

	amountStr := fmt.Sprintf("$%.2f", float64(c.Booking.TotalCents)/100)
	paymentLine := "Paid in full"
	if c.Booking.PaymentMethod == domain.PaymentMethodCash {
		paymentLine = fmt.Sprintf("%s due at the clinic", amountStr)
	} else if c.Booking.PaymentStatus != domain.PaymentStatusPaid {
		paymentLine = "Payment pending"
	}

	subject := fmt.Sprintf("Booking confirmed - %s", c.TreatmentName)
	body := fmt.Sprintf(`Hi %s,

Your booking is confirmed!

Treatment: %s
Date: %s
Time: %s - %s
Total: %s
Payment: %s
Booking reference: %s

See you soon.

- Lumen Spa`, c.FullName, c.TreatmentName, c.Date, c.StartTime, c.EndTime, amountStr, paymentLine, c.Booking.BookingID)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #10b981;">Booking confirmed</h2>
<p>Hi <strong>%s</strong>, your <strong>%s</strong> appointment is booked.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Date:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Time:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s - %s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Total:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Payment:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>Reference:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
</table>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">- Lumen Spa</p>
</div>`,
		c.FullName, c.TreatmentName, c.Date, c.StartTime, c.EndTime, amountStr, paymentLine, c.Booking.BookingID)

	msg := EmailMessage{
		To:      c.Email,
		ToName:  c.FullName,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send booking confirmation", "error", err, "booking_id", c.Booking.BookingID)
		return err
	}
	s.logger.Info("notify: booking confirmation sent", "to", c.Email, "booking_id", c.Booking.BookingID)
	return nil
}
