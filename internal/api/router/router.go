package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumenspa/bookingflow/internal/http/handlers"
	httpmiddleware "github.com/lumenspa/bookingflow/internal/http/middleware"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	FlowHandler        *handlers.FlowHandler
	PaymentHandler     *handlers.PaymentHandler
	PaymentHub         *handlers.PaymentHub
	BookingsHandler    *handlers.BookingsHandler
	MetricsHandler     http.Handler
	CustomerJWTSecret  string
	CORSAllowedOrigins []string
	// WebhookRatePerSec limits unauthenticated webhook traffic per IP.
	// Zero disables the limiter.
	WebhookRatePerSec float64
	WebhookBurst      int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, and the wallet webhook. The webhook
	// authenticates by HMAC signature, not JWT.
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.PaymentHandler != nil {
			webhook := public
			if cfg.WebhookRatePerSec > 0 {
				webhook = public.With(httpmiddleware.RateLimit(cfg.WebhookRatePerSec, cfg.WebhookBurst))
			}
			webhook.Post("/webhooks/payment", cfg.PaymentHandler.Webhook)
		}
	})

	// Customer endpoints behind JWT auth: the flow itself, payment
	// confirmation, and booking management.
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.CustomerJWT(cfg.CustomerJWTSecret))

		if cfg.FlowHandler != nil {
			authed.Get("/treatments", cfg.FlowHandler.ListTreatments)
			authed.Route("/flow", func(fr chi.Router) {
				cfg.FlowHandler.Routes(fr)
				if cfg.PaymentHandler != nil {
					fr.Post("/payment/confirm", cfg.PaymentHandler.Confirm)
					fr.Get("/payment/state", cfg.PaymentHandler.State)
					fr.Post("/payment/abandon", cfg.PaymentHandler.Abandon)
				}
				if cfg.PaymentHub != nil {
					fr.Get("/payment/ws", cfg.PaymentHub.Serve)
				}
			})
		}
		if cfg.BookingsHandler != nil {
			authed.Route("/bookings", func(br chi.Router) {
				br.Post("/{id}/cancel", cfg.BookingsHandler.Cancel)
				br.Get("/history", cfg.BookingsHandler.History)
			})
		}
	})

	return r
}
