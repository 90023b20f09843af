package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumenspa/bookingflow/pkg/logging"
)

// snapshotSchemaVersion is bumped whenever the snapshot layout changes in a
// way older readers cannot decode.
const snapshotSchemaVersion = 1

// ErrNoSession is returned when no snapshot exists for the owner.
var ErrNoSession = errors.New("session: no snapshot")

// ErrSessionExists is returned when starting a flow would overwrite a live
// session without explicit user confirmation.
var ErrSessionExists = errors.New("session: another booking is in progress")

// snapshot is the single typed, versioned durable record for a session.
// All step state goes through this one envelope; there are no per-step keys.
type snapshot struct {
	SchemaVersion int      `json:"schema_version"`
	Session       *Session `json:"session"`
}

// Store persists session snapshots in Redis.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewStore creates a snapshot store.
func NewStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Store {
	if client == nil {
		panic("session: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Store{redis: client, ttl: ttl, logger: logger}
}

func sessionKey(ownerID string) string {
	return "bookingflow:current-session:" + ownerID
}

// Save writes the session snapshot, replacing any previous one.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	encoded, err := json.Marshal(snapshot{SchemaVersion: snapshotSchemaVersion, Session: sess})
	if err != nil {
		return fmt.Errorf("session: encode snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.OwnerID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: write snapshot: %w", err)
	}
	return nil
}

// Load rehydrates the owner's session. Returns ErrNoSession when absent and
// treats an unreadable or wrong-version snapshot the same way, logging it:
// a stale snapshot must never wedge the flow.
func (s *Store) Load(ctx context.Context, ownerID string) (*Session, error) {
	raw, err := s.redis.Get(ctx, sessionKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("session: read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("discarding unreadable session snapshot", "owner_id", ownerID, "error", err)
		return nil, ErrNoSession
	}
	if snap.SchemaVersion != snapshotSchemaVersion || snap.Session == nil {
		s.logger.Warn("discarding incompatible session snapshot",
			"owner_id", ownerID, "schema_version", snap.SchemaVersion)
		return nil, ErrNoSession
	}
	return snap.Session, nil
}

// Exists reports whether a snapshot exists for the owner.
func (s *Store) Exists(ctx context.Context, ownerID string) (bool, error) {
	n, err := s.redis.Exists(ctx, sessionKey(ownerID)).Result()
	if err != nil {
		return false, fmt.Errorf("session: check snapshot: %w", err)
	}
	return n > 0, nil
}

// Delete removes the owner's snapshot. Called on explicit user-confirmed
// exit and on successful submission.
func (s *Store) Delete(ctx context.Context, ownerID string) error {
	if err := s.redis.Del(ctx, sessionKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("session: delete snapshot: %w", err)
	}
	return nil
}
