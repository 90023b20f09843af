package domain

// TimeSlot is a fixed 60-minute calendar unit offered on a date. Availability
// reflects the scheduling service's view at fetch time.
type TimeSlot struct {
	ID          string `json:"id"`
	Date        string `json:"date"`       // YYYY-MM-DD
	StartTime   string `json:"start_time"` // HH:MM, 24h
	EndTime     string `json:"end_time"`   // HH:MM, 24h
	IsAvailable bool   `json:"is_available"`
}

// SlotSelection is an ordered, time-contiguous run of slot IDs covering a
// treatment's full duration.
type SlotSelection struct {
	Date    string   `json:"date"`
	SlotIDs []string `json:"slot_ids"`
	// StartTime and EndTime are the window boundaries, recorded for display
	// so review screens need no slot refetch.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// IsEmpty reports whether no window is selected.
func (s SlotSelection) IsEmpty() bool {
	return len(s.SlotIDs) == 0
}

// Equal reports whether two selections cover the same window.
func (s SlotSelection) Equal(other SlotSelection) bool {
	if s.Date != other.Date || len(s.SlotIDs) != len(other.SlotIDs) {
		return false
	}
	for i := range s.SlotIDs {
		if s.SlotIDs[i] != other.SlotIDs[i] {
			return false
		}
	}
	return true
}

// ValidateWindow checks that slots form a valid selection window: the count
// matches, every member is available, and members are time-contiguous
// (slot[i].EndTime == slot[i+1].StartTime).
func ValidateWindow(slots []TimeSlot, required int) error {
	if len(slots) != required {
		return &ValidationError{Field: "slot_selection", Reason: "window length does not match treatment duration"}
	}
	for i, s := range slots {
		if !s.IsAvailable {
			return &AvailabilityConflict{Reason: "slot " + s.ID + " is no longer available"}
		}
		if i > 0 && slots[i-1].EndTime != s.StartTime {
			return &ValidationError{Field: "slot_selection", Reason: "slots are not contiguous"}
		}
	}
	return nil
}
