package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenspa/bookingflow/internal/domain"
)

func TestListTreatments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/treatments", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"treatments":[{"id":"t1","name":"Deep Tissue Massage","duration_minutes":90,"price_cents":12000}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 0, nil)
	treatments, err := c.ListTreatments(context.Background())
	require.NoError(t, err)
	require.Len(t, treatments, 1)
	assert.Equal(t, "t1", treatments[0].ID)
	assert.Equal(t, 90, treatments[0].DurationMinutes)
	assert.Equal(t, 2, treatments[0].RequiredSlots())
}

func TestGetTreatmentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0, nil)
	_, err := c.GetTreatment(context.Background(), "t1")
	var nerr *domain.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "catalog", nerr.Collaborator)
}

func TestListTreatmentsUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 0, nil)
	_, err := c.ListTreatments(context.Background())
	var nerr *domain.NetworkError
	require.ErrorAs(t, err, &nerr)
}
