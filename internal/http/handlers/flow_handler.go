package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumenspa/bookingflow/internal/audit"
	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// FlowHandler exposes the booking flow to the UI layer. It stays thin: JSON
// in, controller call, JSON out.
type FlowHandler struct {
	controller *flow.Controller
	logger     *logging.Logger
}

// NewFlowHandler creates the flow handler.
func NewFlowHandler(controller *flow.Controller, logger *logging.Logger) *FlowHandler {
	if controller == nil {
		panic("handlers: flow controller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FlowHandler{controller: controller, logger: logger}
}

// StartSession handles POST /flow/session.
func (h *FlowHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req struct {
		ConfirmOverwrite bool `json:"confirm_overwrite"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.controller.Start(r.Context(), owner, req.ConfirmOverwrite)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// CurrentSession handles GET /flow/session.
func (h *FlowHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	sess, err := h.controller.Current(r.Context(), owner)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// EndSession handles DELETE /flow/session.
func (h *FlowHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	if err := h.controller.End(r.Context(), owner); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTreatments handles GET /treatments.
func (h *FlowHandler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	treatments, err := h.controller.ListTreatments(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treatments": treatments})
}

// ChooseTreatment handles PUT /flow/session/treatment.
func (h *FlowHandler) ChooseTreatment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req struct {
		TreatmentID string `json:"treatment_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TreatmentID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "treatment_id is required")
		return
	}
	sess, err := h.controller.ChooseTreatment(r.Context(), owner, req.TreatmentID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// TapSlot handles POST /flow/session/slots/tap.
func (h *FlowHandler) TapSlot(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Date   string `json:"date"`
		SlotID string `json:"slot_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date == "" || req.SlotID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "date and slot_id are required")
		return
	}
	outcome, err := h.controller.TapSlot(r.Context(), owner, req.Date, req.SlotID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// DecideSpecialist handles POST /flow/session/specialist.
func (h *FlowHandler) DecideSpecialist(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req flow.SpecialistDecision
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.controller.DecideSpecialist(r.Context(), owner, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ApplyPromo handles PUT /flow/session/promo. An unknown code is not an
// HTTP failure: the response carries applied=false so the UI can show inline
// guidance while the flow keeps going.
func (h *FlowHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess, quote, err := h.controller.ApplyPromo(r.Context(), owner, req.Code)
	var invalid *domain.InvalidPromoCode
	if err != nil && !errors.As(err, &invalid) {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": invalid == nil && quote.PromoCode != "",
		"session": sess,
		"quote":   quote,
	})
}

// SetNotes handles PUT /flow/session/notes.
func (h *FlowHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := h.controller.SetNotes(r.Context(), owner, req.Notes)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Quote handles GET /flow/session/quote.
func (h *FlowHandler) Quote(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	quote, err := h.controller.CurrentQuote(r.Context(), owner)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// Submit handles POST /flow/submit.
func (h *FlowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var req flow.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, err := h.controller.Submit(r.Context(), owner, req)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

// ListEvents handles GET /flow/events: the owner's recent flow activity,
// newest first.
func (h *FlowHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.controller.RecentEvents(r.Context(), owner, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Routes mounts the session endpoints on a chi router.
func (h *FlowHandler) Routes(r chi.Router) {
	r.Post("/session", h.StartSession)
	r.Get("/session", h.CurrentSession)
	r.Delete("/session", h.EndSession)
	r.Put("/session/treatment", h.ChooseTreatment)
	r.Post("/session/slots/tap", h.TapSlot)
	r.Post("/session/specialist", h.DecideSpecialist)
	r.Put("/session/promo", h.ApplyPromo)
	r.Put("/session/notes", h.SetNotes)
	r.Get("/session/quote", h.Quote)
	r.Get("/events", h.ListEvents)
	r.Post("/submit", h.Submit)
}
