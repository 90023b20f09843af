package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/internal/http/middleware"
	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// respondError maps domain errors onto HTTP statuses in one place so every
// handler reports failures the same way.
func respondError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		conflict   *domain.AvailabilityConflict
		network    *domain.NetworkError
		subErr     *domain.SubmissionError
		launchErr  *domain.PaymentLaunchError
	)
	switch {
	case errors.Is(err, session.ErrNoSession):
		writeError(w, http.StatusNotFound, "no_session", "no booking in progress")
	case errors.Is(err, session.ErrSessionExists):
		writeError(w, http.StatusConflict, "session_exists", "another booking is in progress")
	case errors.Is(err, flow.ErrResolutionInFlight):
		writeError(w, http.StatusConflict, "resolution_in_flight", "a slot resolution is already running")
	case errors.Is(err, flow.ErrNoPendingConfirmation), errors.Is(err, payment.ErrNoPayment):
		writeError(w, http.StatusNotFound, "no_payment", "no payment awaiting confirmation")
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, "validation", validation.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "availability_conflict", conflict.Error())
	case errors.As(err, &subErr):
		writeError(w, http.StatusUnprocessableEntity, "submission_rejected", subErr.Message)
	case errors.As(err, &launchErr):
		writeError(w, http.StatusBadGateway, "payment_launch_failed", launchErr.Error())
	case errors.As(err, &network):
		writeError(w, http.StatusBadGateway, "collaborator_unreachable", network.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// ownerID pulls the authenticated owner from the request, rejecting
// unauthenticated calls that slipped past the middleware.
func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.OwnerIDFromContext(r.Context())
	if !ok || id == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing customer identity")
		return "", false
	}
	return id, true
}

func decodeWebhookEvent(payload []byte, dst any) error {
	return json.Unmarshal(payload, dst)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}
