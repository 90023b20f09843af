package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// PaymentHub pushes payment state machine transitions to subscribed UIs
// over WebSocket. It implements payment.TransitionListener.
type PaymentHub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu    sync.RWMutex
	conns map[string]map[*wsConn]struct{} // ownerID -> connections
}

// wsConn serializes writes to a single connection. Transitions arrive from
// HTTP request goroutines and the detached confirmation poller at once, and
// gorilla/websocket allows only one concurrent writer per connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// stateMessage is the wire form of a pushed transition.
type stateMessage struct {
	Type      string `json:"type"`
	State     string `json:"state"`
	Method    string `json:"method,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// NewPaymentHub creates the hub.
func NewPaymentHub(logger *logging.Logger) *PaymentHub {
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS layer; the JWT on the upgrade
			// request is what gates access here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[string]map[*wsConn]struct{}),
	}
}

// Serve handles GET /flow/payment/ws: upgrades the connection and streams
// transitions for the authenticated owner until the client disconnects.
func (h *PaymentHub) Serve(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("payment ws upgrade failed", "owner_id", owner, "error", err)
		return
	}
	wc := &wsConn{conn: conn}
	h.subscribe(owner, wc)
	h.logger.Info("payment ws subscribed", "owner_id", owner)

	// Reads only service control frames; any read error means the client is
	// gone.
	go func() {
		defer h.unsubscribe(owner, wc)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// OnTransition is wired as the payment orchestrator's TransitionListener.
func (h *PaymentHub) OnTransition(ownerID string, rec payment.StateRecord) {
	msg := stateMessage{
		Type:      "payment_state",
		State:     string(rec.State),
		Method:    string(rec.Method),
		BookingID: rec.BookingID,
		LastError: rec.LastError,
	}

	h.mu.RLock()
	conns := make([]*wsConn, 0, len(h.conns[ownerID]))
	for c := range h.conns[ownerID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, wc := range conns {
		if err := wc.writeJSON(msg); err != nil {
			h.logger.Warn("payment ws write failed, dropping connection",
				"owner_id", ownerID, "error", err)
			h.unsubscribe(ownerID, wc)
		}
	}
}

func (h *PaymentHub) subscribe(ownerID string, wc *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[ownerID] == nil {
		h.conns[ownerID] = make(map[*wsConn]struct{})
	}
	h.conns[ownerID][wc] = struct{}{}
}

func (h *PaymentHub) unsubscribe(ownerID string, wc *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[ownerID]; ok {
		delete(set, wc)
		if len(set) == 0 {
			delete(h.conns, ownerID)
		}
	}
	_ = wc.conn.Close()
}
