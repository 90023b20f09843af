package domain

// Treatment is a purchasable service with fixed duration and price. Sourced
// from the catalog service and never mutated locally.
type Treatment struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Description     string `json:"description"`
}

// slotGranularityMinutes is the fixed calendar unit offered by the scheduling
// service.
const slotGranularityMinutes = 60

// RequiredSlots returns how many contiguous calendar slots the treatment
// occupies. Always at least 1.
func (t Treatment) RequiredSlots() int {
	if t.DurationMinutes <= 0 {
		return 1
	}
	n := (t.DurationMinutes + slotGranularityMinutes - 1) / slotGranularityMinutes
	if n < 1 {
		return 1
	}
	return n
}
