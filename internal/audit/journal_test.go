package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO flow_audit_events").
		WithArgs(sqlmock.AnyArg(), "flow.window_selected", "acct-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	j := NewJournal(db)
	err = j.Record(context.Background(), Event{
		EventType: EventWindowSelected,
		OwnerID:   "acct-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDetailsMarshals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO flow_audit_events").
		WithArgs(sqlmock.AnyArg(), "flow.promo_rejected", "acct-1", sqlmock.AnyArg(),
			[]byte(`{"code":"SUMMER50"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	j := NewJournal(db)
	err = j.RecordDetails(context.Background(), EventPromoRejected, "acct-1",
		map[string]string{"code": "SUMMER50"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentForOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "event_type", "owner_id", "booking_id", "details", "created_at"}).
		AddRow("e2", "flow.booking_created", "acct-1", "b-77", []byte(`{"total_cents":12000}`), now).
		AddRow("e1", "flow.session_started", "acct-1", nil, nil, now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, event_type, owner_id").
		WithArgs("acct-1", 50).
		WillReturnRows(rows)

	j := NewJournal(db)
	events, err := j.RecentForOwner(context.Background(), "acct-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventBookingCreated, events[0].EventType)
	assert.Equal(t, "b-77", events[0].BookingID)
	assert.Empty(t, events[1].BookingID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal
	assert.NoError(t, j.Record(context.Background(), Event{EventType: EventSessionStarted}))
	events, err := j.RecentForOwner(context.Background(), "acct-1", 10)
	assert.NoError(t, err)
	assert.Nil(t, events)
}
