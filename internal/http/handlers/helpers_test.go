package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/internal/session"
)

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "hook-secret"
	payload := []byte(`{"owner_id":"acct-1","status":"CAPTURED"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !verifyWebhookSignature(secret, payload, sig) {
		t.Fatal("expected signature to verify")
	}
	if verifyWebhookSignature(secret, payload, "deadbeef") {
		t.Fatal("expected wrong signature to fail")
	}
	if verifyWebhookSignature(secret, payload, "not-hex") {
		t.Fatal("expected malformed signature to fail")
	}
	if verifyWebhookSignature("", payload, sig) {
		t.Fatal("expected empty secret to fail closed")
	}
	if verifyWebhookSignature(secret, payload, "") {
		t.Fatal("expected missing signature to fail")
	}
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no session", session.ErrNoSession, http.StatusNotFound, "no_session"},
		{"session exists", session.ErrSessionExists, http.StatusConflict, "session_exists"},
		{"resolution in flight", flow.ErrResolutionInFlight, http.StatusConflict, "resolution_in_flight"},
		{"no pending confirmation", flow.ErrNoPendingConfirmation, http.StatusNotFound, "no_payment"},
		{"no payment record", payment.ErrNoPayment, http.StatusNotFound, "no_payment"},
		{"validation", &domain.ValidationError{Field: "full_name", Reason: "required"}, http.StatusUnprocessableEntity, "validation"},
		{"availability conflict", &domain.AvailabilityConflict{Reason: "slot taken"}, http.StatusConflict, "availability_conflict"},
		{"submission rejected", &domain.SubmissionError{StatusCode: 422, Message: "rejected"}, http.StatusUnprocessableEntity, "submission_rejected"},
		{"launch failed", &domain.PaymentLaunchError{Reason: "no target"}, http.StatusBadGateway, "payment_launch_failed"},
		{"collaborator down", &domain.NetworkError{Collaborator: "catalog", Err: errors.New("timeout")}, http.StatusBadGateway, "collaborator_unreachable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			respondError(rr, tc.err)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, body["error"])
			}
		})
	}
}

func TestOwnerIDRejectsUnauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/flow/session", nil)
	rr := httptest.NewRecorder()

	if _, ok := ownerID(rr, req); ok {
		t.Fatal("expected missing identity to be rejected")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
