package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// PaymentHandler exposes the payment confirmation endpoints, including the
// external wallet webhook.
type PaymentHandler struct {
	controller    *flow.Controller
	hub           *PaymentHub
	webhookSecret string
	logger        *logging.Logger
}

// NewPaymentHandler creates the payment handler.
func NewPaymentHandler(controller *flow.Controller, hub *PaymentHub, webhookSecret string, logger *logging.Logger) *PaymentHandler {
	if controller == nil {
		panic("handlers: flow controller required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentHandler{
		controller:    controller,
		hub:           hub,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Confirm handles POST /flow/payment/confirm: the user's explicit
// confirmation, cash completing immediately and wallet launching the
// redirect.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	rec, err := h.controller.ConfirmPayment(r.Context(), owner)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// State handles GET /flow/payment/state.
func (h *PaymentHandler) State(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	rec, err := h.controller.PaymentState(r.Context(), owner)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Abandon handles POST /flow/payment/abandon: explicit user abandonment of
// a pending wallet payment.
func (h *PaymentHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	rec, err := h.controller.AbandonPayment(r.Context(), owner)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Webhook handles POST /webhooks/payment: the wallet provider's
// confirmation event, HMAC-signed with a shared secret. Redelivery of a
// settled payment is a no-op.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	if !verifyWebhookSignature(h.webhookSecret, payload, r.Header.Get("X-Payment-Signature")) {
		h.logger.Warn("payment webhook signature rejected", "remote_ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "bad_signature", "signature verification failed")
		return
	}

	var event struct {
		OwnerID string `json:"owner_id"`
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := decodeWebhookEvent(payload, &event); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if event.OwnerID == "" || event.Status == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "owner_id and status are required")
		return
	}

	rec, err := h.controller.ResolveExternalPayment(r.Context(), event.OwnerID, event.Status)
	if err != nil {
		respondError(w, err)
		return
	}
	h.logger.Info("payment webhook applied",
		"owner_id", event.OwnerID, "order_id", event.OrderID, "state", rec.State)
	writeJSON(w, http.StatusOK, map[string]string{"state": string(rec.State)})
}

func verifyWebhookSignature(secret string, payload []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	providedSig, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), providedSig)
}
