package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenspa/bookingflow/internal/domain"
)

func TestDaySlotsSortedAndDated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slots", r.URL.Path)
		assert.Equal(t, "2026-09-14", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		// Deliberately out of order; client must sort by start time.
		w.Write([]byte(`{"slots":[
			{"id":"s2","start_time":"11:00","end_time":"12:00","is_available":true},
			{"id":"s1","start_time":"10:00","end_time":"11:00","is_available":true}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, nil)
	slots, err := c.DaySlots(context.Background(), "2026-09-14")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "s1", slots[0].ID)
	assert.Equal(t, "s2", slots[1].ID)
	assert.Equal(t, "2026-09-14", slots[0].Date)
}

func TestDaySlotsEscapesDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-09-14&x=1", r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"slots":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, nil)
	_, err := c.DaySlots(context.Background(), "2026-09-14&x=1")
	require.NoError(t, err)
}

func TestFreeSpecialistsSendsWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/specialists/free", r.URL.Path)

		var body struct {
			Date    string   `json:"date"`
			SlotIDs []string `json:"slot_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-09-14", body.Date)
		assert.Equal(t, []string{"s1", "s2"}, body.SlotIDs)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"specialists":[{"id":"sp1","name":"Ana Ruiz","specialization":"massage"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, nil)
	free, err := c.FreeSpecialists(context.Background(), "2026-09-14", []string{"s1", "s2"})
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "sp1", free[0].ID)
}

func TestFreeSpecialistsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, nil)
	_, err := c.FreeSpecialists(context.Background(), "2026-09-14", []string{"s1"})
	var nerr *domain.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "scheduling", nerr.Collaborator)
}
