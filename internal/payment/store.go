package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// ErrNoPayment is returned when no payment record exists for the owner.
var ErrNoPayment = errors.New("payment: no pending record")

// StateRecord is the durable view of the confirmation state machine for one
// owner. For wallet payments it carries the pending transaction so losing and
// regaining foreground recovers state from storage, not memory.
type StateRecord struct {
	State       domain.PaymentState        `json:"state"`
	Method      domain.PaymentMethod       `json:"method"`
	BookingID   string                     `json:"booking_id,omitempty"`
	Transaction *domain.PaymentTransaction `json:"transaction,omitempty"`
	LastError   string                     `json:"last_error,omitempty"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// TransactionStore persists payment state records in Redis.
type TransactionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewTransactionStore creates a transaction store.
func NewTransactionStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) *TransactionStore {
	if client == nil {
		panic("payment: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TransactionStore{redis: client, ttl: ttl, logger: logger}
}

func paymentKey(ownerID string) string {
	return "bookingflow:pending-transaction:" + ownerID
}

// Save writes the owner's payment record.
func (s *TransactionStore) Save(ctx context.Context, ownerID string, rec *StateRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("payment: encode record: %w", err)
	}
	if err := s.redis.Set(ctx, paymentKey(ownerID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("payment: write record: %w", err)
	}
	return nil
}

// Load reads the owner's payment record from durable storage.
func (s *TransactionStore) Load(ctx context.Context, ownerID string) (*StateRecord, error) {
	raw, err := s.redis.Get(ctx, paymentKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPayment
	}
	if err != nil {
		return nil, fmt.Errorf("payment: read record: %w", err)
	}
	var rec StateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("payment: decode record: %w", err)
	}
	return &rec, nil
}

// Clear removes the owner's payment record.
func (s *TransactionStore) Clear(ctx context.Context, ownerID string) error {
	if err := s.redis.Del(ctx, paymentKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("payment: clear record: %w", err)
	}
	return nil
}
