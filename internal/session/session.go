package session

import (
	"strings"
	"time"

	"github.com/lumenspa/bookingflow/internal/domain"
)

// Step is the flow position the session has reached. It gates which
// mutations and transitions are allowed, replacing ad-hoc "can proceed"
// flags.
type Step string

const (
	StepTreatment  Step = "treatment"
	StepSchedule   Step = "schedule"
	StepSpecialist Step = "specialist"
	StepReview     Step = "review"
	StepPayment    Step = "payment"
)

// PriorWindow holds the window state from before the latest selection
// change. It stays staged until the specialist decision lands, so a
// cancelled change can restore exactly what the user had.
type PriorWindow struct {
	Selection  domain.SlotSelection     `json:"selection"`
	Specialist *domain.SpecialistChoice `json:"specialist,omitempty"`
}

// Session is the mutable aggregate accumulating all step outputs for one
// in-progress booking. It has exactly one owner at a time and is persisted
// as a snapshot after every successful mutation.
type Session struct {
	OwnerID       string                   `json:"owner_id"`
	Step          Step                     `json:"step"`
	Treatment     *domain.Treatment        `json:"treatment,omitempty"`
	SlotSelection domain.SlotSelection     `json:"slot_selection"`
	Specialist    *domain.SpecialistChoice `json:"specialist,omitempty"`
	PriorWindow   *PriorWindow             `json:"prior_window,omitempty"`
	Identity      domain.CustomerIdentity  `json:"identity"`
	PromoCode     string                   `json:"promo_code,omitempty"`
	DiscountCents int64                    `json:"discount_cents"`
	PaymentMethod domain.PaymentMethod     `json:"payment_method,omitempty"`
	Notes         string                   `json:"notes,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// New creates a fresh session for an owner.
func New(ownerID string) *Session {
	now := time.Now().UTC()
	return &Session{
		OwnerID:   ownerID,
		Step:      StepTreatment,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetTreatment records the chosen treatment. Changing the treatment resets
// downstream step outputs, since the required window length may change.
func (s *Session) SetTreatment(t domain.Treatment) {
	s.Treatment = &t
	s.SlotSelection = domain.SlotSelection{}
	s.Specialist = nil
	s.PriorWindow = nil
	s.Step = StepSchedule
	s.touch()
}

// SetSlotSelection records a validated window. Validation against the day's
// slots (count, availability, contiguity) happens here so no caller can
// bypass the invariant.
func (s *Session) SetSlotSelection(selection domain.SlotSelection, windowSlots []domain.TimeSlot) error {
	if s.Treatment == nil {
		return &domain.ValidationError{Field: "treatment", Reason: "treatment must be chosen before slots"}
	}
	if err := domain.ValidateWindow(windowSlots, s.Treatment.RequiredSlots()); err != nil {
		return err
	}
	// Stage what the user had so a cancelled specialist decision can put it
	// back. The new window is not final until that decision lands.
	s.PriorWindow = &PriorWindow{Selection: s.SlotSelection, Specialist: s.Specialist}
	s.SlotSelection = selection
	// A new window invalidates any earlier specialist decision.
	s.Specialist = nil
	s.Step = StepSpecialist
	s.touch()
	return nil
}

// ClearSlotSelection toggles the current window off.
func (s *Session) ClearSlotSelection() {
	s.SlotSelection = domain.SlotSelection{}
	s.Specialist = nil
	s.PriorWindow = nil
	s.Step = StepSchedule
	s.touch()
}

// SetSpecialist records the specialist decision. A choice with Skipped=true
// is a final "no specialist"; nil reverts to undecided. A non-nil decision
// finalizes the current window, dropping the staged prior one.
func (s *Session) SetSpecialist(choice *domain.SpecialistChoice) {
	s.Specialist = choice
	if choice != nil {
		s.PriorWindow = nil
		s.Step = StepReview
	}
	s.touch()
}

// CancelWindowChange aborts the selection change awaiting a specialist
// decision, restoring the staged window and specialist untouched. Without a
// staged prior the cancelled change was the first selection, so the session
// reverts to having none.
func (s *Session) CancelWindowChange() {
	if s.PriorWindow == nil {
		s.ClearSlotSelection()
		return
	}
	s.SlotSelection = s.PriorWindow.Selection
	s.Specialist = s.PriorWindow.Specialist
	s.PriorWindow = nil
	switch {
	case s.Specialist != nil:
		s.Step = StepReview
	case !s.SlotSelection.IsEmpty():
		s.Step = StepSpecialist
	default:
		s.Step = StepSchedule
	}
	s.touch()
}

// SetPromo records the promo code and its resolved discount.
func (s *Session) SetPromo(code string, discountCents int64) {
	s.PromoCode = code
	s.DiscountCents = discountCents
	s.touch()
}

// SetIdentity records the customer identity used for submission.
func (s *Session) SetIdentity(identity domain.CustomerIdentity) {
	s.Identity = identity
	s.touch()
}

// SetPaymentMethod records the chosen confirmation path.
func (s *Session) SetPaymentMethod(method domain.PaymentMethod) {
	s.PaymentMethod = method
	s.Step = StepPayment
	s.touch()
}

// SetNotes records free-form customer notes.
func (s *Session) SetNotes(notes string) {
	s.Notes = strings.TrimSpace(notes)
	s.touch()
}

// ReadyForSubmission reports whether all required step outputs are present.
// The specialist decision must be final: either a chosen specialist or an
// explicit skip.
func (s *Session) ReadyForSubmission() error {
	if s.Treatment == nil {
		return &domain.ValidationError{Field: "treatment", Reason: "no treatment chosen"}
	}
	if s.SlotSelection.IsEmpty() {
		return &domain.ValidationError{Field: "slot_selection", Reason: "no time window selected"}
	}
	if s.Specialist == nil {
		return &domain.ValidationError{Field: "specialist", Reason: "specialist decision not made"}
	}
	if s.PaymentMethod == "" {
		return &domain.ValidationError{Field: "payment_method", Reason: "no payment method chosen"}
	}
	return nil
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}
