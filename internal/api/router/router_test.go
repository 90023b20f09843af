package router

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenspa/bookingflow/internal/bookingapi"
	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/internal/http/handlers"
	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/internal/pricing"
	"github.com/lumenspa/bookingflow/internal/session"
	"github.com/lumenspa/bookingflow/internal/slots"
	"github.com/lumenspa/bookingflow/internal/specialist"
	"github.com/lumenspa/bookingflow/internal/submission"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

const (
	jwtSecret     = "test-jwt-secret"
	webhookSecret = "test-webhook-secret"
	testOwner     = "acct-1"
)

type stubCatalog struct{}

func (stubCatalog) ListTreatments(_ context.Context) ([]domain.Treatment, error) {
	return []domain.Treatment{{ID: "tr-1", Name: "Deep Tissue", DurationMinutes: 120, PriceCents: 15000}}, nil
}

func (stubCatalog) GetTreatment(_ context.Context, id string) (*domain.Treatment, error) {
	if id != "tr-1" {
		return nil, &domain.NetworkError{Collaborator: "catalog", Err: errors.New("not found")}
	}
	return &domain.Treatment{ID: "tr-1", Name: "Deep Tissue", DurationMinutes: 120, PriceCents: 15000}, nil
}

type stubScheduling struct{}

func (stubScheduling) DaySlots(_ context.Context, _ string) ([]domain.TimeSlot, error) {
	return []domain.TimeSlot{
		{ID: "s1", Date: "2026-09-10", StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
		{ID: "s2", Date: "2026-09-10", StartTime: "11:00", EndTime: "12:00", IsAvailable: true},
		{ID: "s3", Date: "2026-09-10", StartTime: "12:00", EndTime: "13:00", IsAvailable: true},
	}, nil
}

func (stubScheduling) FreeSpecialists(_ context.Context, _ string, _ []string) ([]domain.Specialist, error) {
	return []domain.Specialist{{ID: "sp1", Name: "Mira Chen"}}, nil
}

type stubSubmitter struct{}

func (stubSubmitter) Submit(_ context.Context, sess *session.Session) (*submission.Result, error) {
	record := domain.BookingRecord{
		BookingID:     "bk-1",
		TreatmentID:   sess.Treatment.ID,
		TotalCents:    15000,
		PaymentMethod: sess.PaymentMethod,
		Status:        "confirmed",
		PaymentStatus: domain.PaymentStatusPending,
	}
	return &submission.Result{
		Record:   record,
		Response: &bookingapi.CreateBookingResponse{BookingID: "bk-1"},
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
	}, nil
}

type stubBookings struct{}

func (stubBookings) CancelBooking(_ context.Context, _ string) error { return nil }

func (stubBookings) BookingHistory(_ context.Context, _ string) ([]domain.BookingRecord, error) {
	return []domain.BookingRecord{{BookingID: "bk-old"}}, nil
}

type openLauncher struct{}

func (openLauncher) Open(_ context.Context, _ string) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := logging.Default()
	orchestrator := payment.NewOrchestrator(
		payment.NewTransactionStore(client, 0, nil),
		openLauncher{}, nil, nil, 1, time.Millisecond, logger,
	)
	hub := handlers.NewPaymentHub(logger)
	orchestrator.SetTransitionListener(hub.OnTransition)

	scheduling := stubScheduling{}
	controller := flow.NewController(flow.ControllerDeps{
		Sessions:    session.NewService(session.NewStore(client, 0, nil), nil),
		Catalog:     stubCatalog{},
		Slots:       slots.NewResolver(scheduling, nil),
		Specialists: specialist.NewResolver(scheduling, nil),
		Pricing:     pricing.NewEngine(825, nil),
		Submitter:   stubSubmitter{},
		Payments:    orchestrator,
		Bookings:    stubBookings{},
		History:     flow.NewHistoryCache(client, time.Minute, nil),
		Redis:       client,
		PendingTTL:  time.Minute,
		Logger:      logger,
	})

	return New(&Config{
		Logger:            logger,
		FlowHandler:       handlers.NewFlowHandler(controller, logger),
		PaymentHandler:    handlers.NewPaymentHandler(controller, hub, webhookSecret, logger),
		PaymentHub:        hub,
		BookingsHandler:   handlers.NewBookingsHandler(controller, logger),
		CustomerJWTSecret: jwtSecret,
	})
}

func authToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   testOwner,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+authToken(t))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestFlowRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/flow/session", "/flow/events", "/bookings/history", "/treatments"} {
		rr := doJSON(t, router, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRecentEventsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	// Without a journal database there is no history, only an empty list.
	rr := doJSON(t, router, http.MethodGet, "/flow/events?limit=10", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Events []json.RawMessage `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotNil(t, resp.Events)
	assert.Empty(t, resp.Events)
}

func TestFullFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/flow/session", nil, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPut, "/flow/session/treatment",
		map[string]string{"treatment_id": "tr-1"}, true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/flow/session/slots/tap",
		map[string]string{"date": "2026-09-10", "slot_id": "s1"}, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var tap struct {
		Session struct {
			SlotSelection domain.SlotSelection `json:"slot_selection"`
		} `json:"session"`
		Resolution *specialist.Resolution `json:"resolution"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tap))
	assert.Equal(t, []string{"s1", "s2"}, tap.Session.SlotSelection.SlotIDs)
	require.NotNil(t, tap.Resolution)
	assert.Equal(t, specialist.OutcomeChoices, tap.Resolution.Outcome)

	rr = doJSON(t, router, http.MethodPost, "/flow/session/specialist",
		map[string]any{"specialist_id": "sp1"}, true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPut, "/flow/session/promo",
		map[string]string{"code": "WELCOME20"}, true)
	require.Equal(t, http.StatusOK, rr.Code)
	var promo struct {
		Applied bool          `json:"applied"`
		Quote   pricing.Quote `json:"quote"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&promo))
	assert.True(t, promo.Applied)
	assert.Equal(t, int64(12000), promo.Quote.TotalCents)

	rr = doJSON(t, router, http.MethodGet, "/flow/session/quote", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/flow/submit", map[string]string{
		"full_name":      "Ada Lovelace",
		"phone":          "+15550001",
		"payment_method": "cash",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	// Session is gone after a successful submission.
	rr = doJSON(t, router, http.MethodGet, "/flow/session", nil, true)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/flow/payment/state", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	var state payment.StateRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	assert.Equal(t, domain.PaymentStateAwaitingConfirmation, state.State)

	rr = doJSON(t, router, http.MethodPost, "/flow/payment/confirm", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	assert.Equal(t, domain.PaymentStateCompleted, state.State)
}

func TestUnknownPromoCodeIsNotAnHTTPError(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/flow/session", nil, true)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = doJSON(t, router, http.MethodPut, "/flow/session/treatment",
		map[string]string{"treatment_id": "tr-1"}, true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPut, "/flow/session/promo",
		map[string]string{"code": "BOGUS"}, true)
	require.Equal(t, http.StatusOK, rr.Code)

	var promo struct {
		Applied bool          `json:"applied"`
		Quote   pricing.Quote `json:"quote"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&promo))
	assert.False(t, promo.Applied)
	assert.Equal(t, int64(15000), promo.Quote.TotalCents)
}

func TestStartConflictsWithLiveSession(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/flow/session", nil, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/flow/session", nil, true)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/flow/session",
		map[string]bool{"confirm_overwrite": true}, true)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestBookingsEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/bookings/history", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	var hist struct {
		Bookings []domain.BookingRecord `json:"bookings"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&hist))
	require.Len(t, hist.Bookings, 1)

	rr = doJSON(t, router, http.MethodPost, "/bookings/bk-old/cancel", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPaymentWebhookSignature(t *testing.T) {
	router := newTestRouter(t)

	payload, err := json.Marshal(map[string]string{
		"owner_id": testOwner,
		"order_id": "ord-1",
		"status":   "CAPTURED",
	})
	require.NoError(t, err)

	// Unsigned request is rejected.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// A correctly signed event for an unknown payment is a 404.
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(payload))
	req.Header.Set("X-Payment-Signature", hex.EncodeToString(mac.Sum(nil)))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
