package slots

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var slotsTracer = otel.Tracer("bookingflow.internal.slots")

// SlotSource lists a date's slots in chronological order.
type SlotSource interface {
	DaySlots(ctx context.Context, date string) ([]domain.TimeSlot, error)
}

// TapResult is the outcome of a single slot tap.
type TapResult struct {
	// Selection is the resolved window, or empty when the tap toggled the
	// current window off.
	Selection domain.SlotSelection
	// WindowSlots holds the full slots of the resolved window, in order.
	// Empty on toggle-off.
	WindowSlots []domain.TimeSlot
	// Toggled is true when the tap deselected the already-selected window.
	Toggled bool
}

// Resolver turns a single user tap into a valid contiguous slot window. A
// treatment occupies one uninterrupted block of staff time, so the window is
// always derived from the tap; arbitrary multi-select is never offered.
type Resolver struct {
	source SlotSource
	logger *logging.Logger
}

// NewResolver constructs a slot availability resolver.
func NewResolver(source SlotSource, logger *logging.Logger) *Resolver {
	if source == nil {
		panic("slots: slot source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{source: source, logger: logger}
}

// ResolveTap maps a tap on tappedID to the contiguous window starting there
// and covering the treatment's full duration. Re-tapping the currently
// selected window toggles it off. The window is rejected whole, never
// partially accepted: running past end of day or containing any unavailable
// member yields AvailabilityConflict and leaves the current selection for the
// caller to keep.
func (r *Resolver) ResolveTap(ctx context.Context, date, tappedID string, treatment domain.Treatment, current domain.SlotSelection) (*TapResult, error) {
	ctx, span := slotsTracer.Start(ctx, "slots.resolve_tap")
	defer span.End()
	span.SetAttributes(
		attribute.String("slots.date", date),
		attribute.String("slots.tapped_id", tappedID),
		attribute.Int("slots.required", treatment.RequiredSlots()),
	)

	daySlots, err := r.source.DaySlots(ctx, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	index := -1
	for i, s := range daySlots {
		if s.ID == tappedID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, &domain.AvailabilityConflict{Reason: "tapped slot not offered on this date"}
	}

	required := treatment.RequiredSlots()
	if index+required > len(daySlots) {
		return nil, &domain.AvailabilityConflict{Reason: "treatment does not fit before end of day"}
	}

	window := daySlots[index : index+required]
	windowIDs := make([]string, required)
	for i, s := range window {
		windowIDs[i] = s.ID
	}
	proposed := domain.SlotSelection{
		Date:      date,
		SlotIDs:   windowIDs,
		StartTime: window[0].StartTime,
		EndTime:   window[required-1].EndTime,
	}

	if proposed.Equal(current) {
		r.logger.Info("slot window toggled off", "date", date, "slot_id", tappedID)
		return &TapResult{Toggled: true}, nil
	}

	if err := domain.ValidateWindow(window, required); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &TapResult{Selection: proposed, WindowSlots: window}, nil
}
