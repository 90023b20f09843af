package domain

import "time"

// PaymentState is the confirmation state machine's position. Transitions are
// monotonic: once Completed, Failed or AwaitingManual is reached, Processing
// is never re-entered.
type PaymentState string

const (
	PaymentStateAwaitingConfirmation PaymentState = "awaiting_confirmation"
	PaymentStateProcessing           PaymentState = "processing"
	PaymentStateCompleted            PaymentState = "completed"
	PaymentStateFailed               PaymentState = "failed"
	// PaymentStateAwaitingManual is the terminal outcome when bounded polling
	// exhausts its attempts without an external confirmation.
	PaymentStateAwaitingManual PaymentState = "awaiting_manual_confirmation"
)

// Terminal reports whether the state admits no further transitions.
func (s PaymentState) Terminal() bool {
	switch s {
	case PaymentStateCompleted, PaymentStateFailed, PaymentStateAwaitingManual:
		return true
	}
	return false
}

// PaymentTransaction exists only for wallet payments, from launch until the
// external confirmation (or explicit abandonment) resolves it. It is
// persisted so a process that loses foreground recovers pending state from
// durable storage rather than memory.
type PaymentTransaction struct {
	OrderID        string    `json:"order_id"`
	RequestID      string    `json:"request_id"`
	AmountCents    int64     `json:"amount_cents"`
	ExternalStatus string    `json:"external_status"`
	LaunchedAt     time.Time `json:"launched_at"`
}
