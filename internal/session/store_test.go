package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenspa/bookingflow/internal/domain"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore(setupTestRedis(t), 0, nil)
	ctx := context.Background()

	sess := New("acct-1")
	sess.SetTreatment(domain.Treatment{ID: "t1", Name: "Hot Stone Massage", DurationMinutes: 90, PriceCents: 15000})
	require.NoError(t, sess.SetSlotSelection(
		domain.SlotSelection{Date: "2026-09-14", SlotIDs: []string{"s1", "s2"}},
		[]domain.TimeSlot{
			{ID: "s1", StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
			{ID: "s2", StartTime: "11:00", EndTime: "12:00", IsAvailable: true},
		},
	))
	sess.SetSpecialist(&domain.SpecialistChoice{Specialist: &domain.Specialist{ID: "sp1", Name: "Ana Ruiz"}})
	sess.SetPromo("WELCOME20", 3000)
	sess.SetNotes("ground floor room please")

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, sess, got, "rehydrated snapshot must be field-for-field identical")
}

func TestLoadMissing(t *testing.T) {
	store := NewStore(setupTestRedis(t), 0, nil)
	_, err := store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadDiscardsIncompatibleSnapshot(t *testing.T) {
	client := setupTestRedis(t)
	store := NewStore(client, 0, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, sessionKey("acct-1"), `{"schema_version":99,"session":{}}`, 0).Err())
	_, err := store.Load(ctx, "acct-1")
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, client.Set(ctx, sessionKey("acct-2"), `not json`, 0).Err())
	_, err = store.Load(ctx, "acct-2")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestServiceStartGuardsOverwrite(t *testing.T) {
	store := NewStore(setupTestRedis(t), 0, nil)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, "acct-1", false)
	require.NoError(t, err)

	_, err = svc.Start(ctx, "acct-1", false)
	assert.ErrorIs(t, err, ErrSessionExists)

	sess, err := svc.Start(ctx, "acct-1", true)
	require.NoError(t, err)
	assert.Equal(t, StepTreatment, sess.Step)
}

func TestServiceMutatePersistsOnlyOnSuccess(t *testing.T) {
	store := NewStore(setupTestRedis(t), 0, nil)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, "acct-1", false)
	require.NoError(t, err)

	_, err = svc.Mutate(ctx, "acct-1", func(s *Session) error {
		s.SetTreatment(domain.Treatment{ID: "t1", DurationMinutes: 60})
		return s.SetSlotSelection(domain.SlotSelection{SlotIDs: []string{"s1"}}, nil)
	})
	require.Error(t, err)

	got, err := svc.Current(ctx, "acct-1")
	require.NoError(t, err)
	assert.Nil(t, got.Treatment, "failed mutation must not be persisted")

	_, err = svc.Mutate(ctx, "acct-1", func(s *Session) error {
		s.SetTreatment(domain.Treatment{ID: "t1", DurationMinutes: 60})
		return nil
	})
	require.NoError(t, err)

	got, err = svc.Current(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, got.Treatment)
	assert.Equal(t, "t1", got.Treatment.ID)
}

func TestServiceEnd(t *testing.T) {
	store := NewStore(setupTestRedis(t), 0, nil)
	svc := NewService(store, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, "acct-1", false)
	require.NoError(t, err)
	require.NoError(t, svc.End(ctx, "acct-1"))

	_, err = svc.Current(ctx, "acct-1")
	assert.ErrorIs(t, err, ErrNoSession)

	assert.NoError(t, svc.End(ctx, "acct-1"), "ending an absent session is not an error")
}
