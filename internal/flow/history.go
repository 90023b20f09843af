package flow

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

const historyKeyPrefix = "bookingflow:last-created-booking-list:"

// HistoryCache caches the owner's booking history in Redis. It is a pure
// read-through cache over the booking service; a freshly created booking is
// prepended so the history screen shows it before the remote list catches up.
type HistoryCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewHistoryCache constructs the cache.
func NewHistoryCache(redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *HistoryCache {
	if redisClient == nil {
		panic("flow: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HistoryCache{redis: redisClient, ttl: ttl, logger: logger}
}

func historyKey(ownerID string) string {
	return historyKeyPrefix + ownerID
}

// Get returns the cached list, or (nil, false) on a miss. A corrupt entry is
// treated as a miss.
func (c *HistoryCache) Get(ctx context.Context, ownerID string) ([]domain.BookingRecord, bool) {
	raw, err := c.redis.Get(ctx, historyKey(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("booking history cache read failed", "owner_id", ownerID, "error", err)
		}
		return nil, false
	}
	var records []domain.BookingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		c.logger.Warn("discarding corrupt booking history cache entry", "owner_id", ownerID, "error", err)
		return nil, false
	}
	return records, true
}

// Set stores the list with the configured TTL.
func (c *HistoryCache) Set(ctx context.Context, ownerID string, records []domain.BookingRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("flow: marshal booking history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(ownerID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("flow: cache booking history: %w", err)
	}
	return nil
}

// Prepend puts a just-created booking at the head of the cached list, if one
// exists. A cache miss is left alone; the next Get will fault in the remote
// list, which by then includes the booking.
func (c *HistoryCache) Prepend(ctx context.Context, ownerID string, record domain.BookingRecord) {
	records, ok := c.Get(ctx, ownerID)
	if !ok {
		return
	}
	updated := append([]domain.BookingRecord{record}, records...)
	if err := c.Set(ctx, ownerID, updated); err != nil {
		c.logger.Warn("failed to prepend booking to history cache", "owner_id", ownerID, "error", err)
	}
}

// Invalidate drops the cached list, used after a cancellation.
func (c *HistoryCache) Invalidate(ctx context.Context, ownerID string) {
	if err := c.redis.Del(ctx, historyKey(ownerID)).Err(); err != nil {
		c.logger.Warn("failed to invalidate booking history cache", "owner_id", ownerID, "error", err)
	}
}
