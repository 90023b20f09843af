package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// BookingsHandler exposes booking management outside the active flow.
type BookingsHandler struct {
	controller *flow.Controller
	logger     *logging.Logger
}

// NewBookingsHandler creates the bookings handler.
func NewBookingsHandler(controller *flow.Controller, logger *logging.Logger) *BookingsHandler {
	if controller == nil {
		panic("handlers: flow controller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{controller: controller, logger: logger}
}

// Cancel handles POST /bookings/{id}/cancel.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	bookingID := chi.URLParam(r, "id")
	if bookingID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "booking id is required")
		return
	}
	if err := h.controller.CancelBooking(r.Context(), owner, bookingID); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// History handles GET /bookings/history.
func (h *BookingsHandler) History(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	records, err := h.controller.History(r.Context(), owner)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": records})
}
