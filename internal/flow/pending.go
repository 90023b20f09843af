package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenspa/bookingflow/internal/domain"
)

const pendingKeyPrefix = "bookingflow:pending-confirmation:"

// ErrNoPendingConfirmation is returned when an owner has no booking awaiting
// payment confirmation.
var ErrNoPendingConfirmation = errors.New("flow: no booking awaiting confirmation")

// PendingConfirmation bridges submission and payment confirmation: it holds
// everything the confirm step needs after the session itself is gone, and it
// survives restarts in Redis.
type PendingConfirmation struct {
	Booking     domain.BookingRecord    `json:"booking"`
	Method      domain.PaymentMethod    `json:"method"`
	Redirect    *domain.PaymentRedirect `json:"redirect,omitempty"`
	OrderID     string                  `json:"order_id,omitempty"`
	RequestID   string                  `json:"request_id,omitempty"`
	AmountCents int64                   `json:"amount_cents"`
}

type pendingStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func pendingKey(ownerID string) string {
	return pendingKeyPrefix + ownerID
}

func (s *pendingStore) save(ctx context.Context, ownerID string, p *PendingConfirmation) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("flow: marshal pending confirmation: %w", err)
	}
	if err := s.redis.Set(ctx, pendingKey(ownerID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("flow: persist pending confirmation: %w", err)
	}
	return nil
}

func (s *pendingStore) load(ctx context.Context, ownerID string) (*PendingConfirmation, error) {
	raw, err := s.redis.Get(ctx, pendingKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPendingConfirmation
	}
	if err != nil {
		return nil, fmt.Errorf("flow: load pending confirmation: %w", err)
	}
	var p PendingConfirmation
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("flow: decode pending confirmation: %w", err)
	}
	return &p, nil
}

func (s *pendingStore) clear(ctx context.Context, ownerID string) error {
	if err := s.redis.Del(ctx, pendingKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("flow: clear pending confirmation: %w", err)
	}
	return nil
}
