package domain

// Specialist is an optionally-assignable staff resource. Whether a specialist
// is free for a window is computed on demand against the scheduling service
// and never cached across window changes.
type Specialist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

// SpecialistChoice distinguishes "no specialist, decided" from "not yet
// decided". A nil *SpecialistChoice on the session means undecided; a choice
// with Skipped=true is a final explicit skip.
type SpecialistChoice struct {
	Specialist *Specialist `json:"specialist,omitempty"`
	Skipped    bool        `json:"skipped"`
}

// SpecialistID returns the chosen specialist ID or empty when skipped.
func (c *SpecialistChoice) SpecialistID() string {
	if c == nil || c.Skipped || c.Specialist == nil {
		return ""
	}
	return c.Specialist.ID
}
