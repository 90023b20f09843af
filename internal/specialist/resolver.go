package specialist

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var specialistTracer = otel.Tracer("bookingflow.internal.specialist")

// SpecialistSource lists specialists free for exactly a window.
type SpecialistSource interface {
	FreeSpecialists(ctx context.Context, date string, slotIDs []string) ([]domain.Specialist, error)
}

// Outcome tags the decision-table row the resolution landed on.
type Outcome string

const (
	// OutcomeChoices: free set non-empty, no prior conflict. Present the free
	// set; the user may pick one or explicitly skip.
	OutcomeChoices Outcome = "choices"
	// OutcomePriorUnavailable: the previously chosen specialist is no longer
	// free for the new window. Offer: pick from free set, skip, or cancel the
	// window change.
	OutcomePriorUnavailable Outcome = "prior_unavailable"
	// OutcomeNoneFree: nobody is free for this window. Offer continuing
	// without a specialist or picking a different window.
	OutcomeNoneFree Outcome = "none_free"
	// OutcomeAvailabilityUnknown: the scheduling service could not be
	// reached. The flow offers continuing without a specialist as an
	// explicit, logged fallback rather than silently proceeding.
	OutcomeAvailabilityUnknown Outcome = "availability_unknown"
)

// Resolution is the result of cross-checking a window against specialist
// availability.
type Resolution struct {
	Outcome Outcome             `json:"outcome"`
	Free    []domain.Specialist `json:"free"`
	// Prior is set on OutcomePriorUnavailable: the specialist who no longer
	// fits the window.
	Prior *domain.Specialist `json:"prior,omitempty"`
	// FallbackReason is set on OutcomeAvailabilityUnknown.
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Resolver cross-checks an optional staff resource against a slot window.
// Free-for-window is computed on demand per call and never cached across
// window changes.
type Resolver struct {
	source SpecialistSource
	logger *logging.Logger
}

// NewResolver constructs a specialist assignment resolver.
func NewResolver(source SpecialistSource, logger *logging.Logger) *Resolver {
	if source == nil {
		panic("specialist: specialist source required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{source: source, logger: logger}
}

// ResolveWindow queries who is free for exactly the confirmed window and
// applies the decision table against the prior choice, if any.
func (r *Resolver) ResolveWindow(ctx context.Context, window domain.SlotSelection, prior *domain.SpecialistChoice) (*Resolution, error) {
	ctx, span := specialistTracer.Start(ctx, "specialist.resolve_window")
	defer span.End()
	span.SetAttributes(
		attribute.String("specialist.date", window.Date),
		attribute.Int("specialist.window_size", len(window.SlotIDs)),
	)

	free, err := r.source.FreeSpecialists(ctx, window.Date, window.SlotIDs)
	if err != nil {
		var nerr *domain.NetworkError
		if errors.As(err, &nerr) {
			// Availability cannot be determined. Surface it as an explicit
			// fallback outcome instead of swallowing the failure.
			r.logger.Warn("specialist availability check failed, offering no-specialist fallback",
				"date", window.Date, "error", err)
			span.RecordError(err)
			return &Resolution{
				Outcome:        OutcomeAvailabilityUnknown,
				FallbackReason: nerr.Error(),
			}, nil
		}
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("specialist.free_count", len(free)))

	if len(free) == 0 {
		return &Resolution{Outcome: OutcomeNoneFree}, nil
	}

	if priorID := prior.SpecialistID(); priorID != "" {
		for _, s := range free {
			if s.ID == priorID {
				return &Resolution{Outcome: OutcomeChoices, Free: free}, nil
			}
		}
		r.logger.Info("prior specialist no longer free for window",
			"specialist_id", priorID, "date", window.Date)
		return &Resolution{
			Outcome: OutcomePriorUnavailable,
			Free:    free,
			Prior:   prior.Specialist,
		}, nil
	}

	return &Resolution{Outcome: OutcomeChoices, Free: free}, nil
}
