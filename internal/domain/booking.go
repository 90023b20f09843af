package domain

import "time"

// PaymentMethod selects the confirmation path at submission time.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// PaymentStatus is the payment state recorded on a BookingRecord.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending_payment"
)

// BookingRecord is the immutable result of a successful submission.
type BookingRecord struct {
	BookingID     string        `json:"booking_id"`
	TreatmentID   string        `json:"treatment_id"`
	SpecialistID  string        `json:"specialist_id,omitempty"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        string        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PaymentRedirect carries the wallet provider's launch targets returned by
// the booking service for wallet submissions.
type PaymentRedirect struct {
	DeepLink string `json:"deep_link"`
	WebURL   string `json:"web_url"`
}
