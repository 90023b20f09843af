package domain

import "fmt"

// ValidationError reports locally-detectable invalid input: missing identity,
// malformed window. Recovered in place with no destructive mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// AvailabilityConflict reports that a slot or specialist is no longer valid
// for the requested window. Never auto-retried.
type AvailabilityConflict struct {
	Reason string
}

func (e *AvailabilityConflict) Error() string {
	return "availability conflict: " + e.Reason
}

// NetworkError wraps a collaborator being unreachable or returning a
// non-success status.
type NetworkError struct {
	Collaborator string
	Err          error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network: %s: %v", e.Collaborator, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PaymentLaunchError reports that neither the wallet deep link nor the web
// fallback could be opened. The state machine stays in AwaitingConfirmation.
type PaymentLaunchError struct {
	Reason string
}

func (e *PaymentLaunchError) Error() string {
	return "payment launch failed: " + e.Reason
}

// SubmissionError reports a booking rejected by the booking service. The
// session is preserved so a retry needs no re-entry of data.
type SubmissionError struct {
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected (%d): %s", e.StatusCode, e.Message)
}

// InvalidPromoCode reports an unmatched promo code. Not fatal: the discount
// is reset to zero and the flow continues.
type InvalidPromoCode struct {
	Code string
}

func (e *InvalidPromoCode) Error() string {
	return "invalid promo code: " + e.Code
}
