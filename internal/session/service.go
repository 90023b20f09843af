package session

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/pkg/logging"
)

var sessionTracer = otel.Tracer("bookingflow.internal.session")

// Service owns the session lifecycle. Every mutation goes through Mutate so
// the snapshot-after-every-successful-mutation guarantee lives in exactly one
// place.
type Service struct {
	store  *Store
	logger *logging.Logger
}

// NewService constructs a session service.
func NewService(store *Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("session: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger}
}

// Start begins a new flow for the owner. An existing live session is
// overwritten only when the user explicitly confirmed the overwrite.
func (s *Service) Start(ctx context.Context, ownerID string, confirmOverwrite bool) (*Session, error) {
	ctx, span := sessionTracer.Start(ctx, "session.start")
	defer span.End()
	span.SetAttributes(attribute.Bool("session.confirm_overwrite", confirmOverwrite))

	exists, err := s.store.Exists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if exists && !confirmOverwrite {
		return nil, ErrSessionExists
	}

	sess := New(ownerID)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("booking session started", "owner_id", ownerID, "overwrote", exists)
	return sess, nil
}

// Current rehydrates the owner's in-progress session.
func (s *Service) Current(ctx context.Context, ownerID string) (*Session, error) {
	return s.store.Load(ctx, ownerID)
}

// Mutate loads the session, applies fn, and persists the result. The
// snapshot is written only when fn succeeds, so a failed mutation leaves the
// durable state untouched.
func (s *Service) Mutate(ctx context.Context, ownerID string, fn func(*Session) error) (*Session, error) {
	ctx, span := sessionTracer.Start(ctx, "session.mutate")
	defer span.End()

	sess, err := s.store.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: persist after mutation: %w", err)
	}
	return sess, nil
}

// End destroys the session on explicit user-confirmed exit or successful
// submission. Ending an absent session is not an error.
func (s *Service) End(ctx context.Context, ownerID string) error {
	if err := s.store.Delete(ctx, ownerID); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	s.logger.Info("booking session ended", "owner_id", ownerID)
	return nil
}
