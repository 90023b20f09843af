package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lumenspa/bookingflow/internal/api/router"
	"github.com/lumenspa/bookingflow/internal/audit"
	"github.com/lumenspa/bookingflow/internal/bookingapi"
	"github.com/lumenspa/bookingflow/internal/catalog"
	appconfig "github.com/lumenspa/bookingflow/internal/config"
	"github.com/lumenspa/bookingflow/internal/flow"
	"github.com/lumenspa/bookingflow/internal/http/handlers"
	"github.com/lumenspa/bookingflow/internal/identity"
	"github.com/lumenspa/bookingflow/internal/notify"
	"github.com/lumenspa/bookingflow/internal/observability/metrics"
	"github.com/lumenspa/bookingflow/internal/payment"
	"github.com/lumenspa/bookingflow/internal/pricing"
	"github.com/lumenspa/bookingflow/internal/scheduling"
	"github.com/lumenspa/bookingflow/internal/session"
	"github.com/lumenspa/bookingflow/internal/slots"
	"github.com/lumenspa/bookingflow/internal/specialist"
	"github.com/lumenspa/bookingflow/internal/submission"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

// walletStatusSource adapts the booking service client to the payment
// orchestrator's polling interface.
type walletStatusSource struct {
	client *bookingapi.Client
}

func (s walletStatusSource) PaymentStatus(ctx context.Context, orderID string) (string, error) {
	resp, err := s.client.PaymentStatus(ctx, orderID)
	if err != nil {
		return "", err
	}
	return resp.ExternalStatus, nil
}

func setupMetrics() (http.Handler, *metrics.FlowMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	flowMetrics := metrics.NewFlowMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), flowMetrics
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookingflow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	// The audit journal degrades to a no-op without a database so local
	// setups run with Redis alone.
	var journal *audit.Journal
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.Ping(); err != nil {
			logger.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		journal = audit.NewJournal(db)
	} else {
		logger.Warn("DATABASE_URL not set, audit journal disabled")
	}

	metricsHandler, flowMetrics := setupMetrics()

	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CollaboratorToken, cfg.HTTPTimeout, logger)
	schedulingClient := scheduling.NewClient(cfg.SchedulingBaseURL, cfg.CollaboratorToken, cfg.HTTPTimeout, logger)
	identityClient := identity.NewClient(cfg.IdentityBaseURL, cfg.CollaboratorToken, cfg.HTTPTimeout, logger)
	bookingClient := bookingapi.NewClient(cfg.BookingBaseURL, cfg.CollaboratorToken, cfg.HTTPTimeout, logger)

	sessions := session.NewService(session.NewStore(redisClient, cfg.SessionSnapshotTTL, logger), logger)
	slotResolver := slots.NewResolver(schedulingClient, logger)
	specialistResolver := specialist.NewResolver(schedulingClient, logger)
	pricingEngine := pricing.NewEngine(cfg.TaxRateBasisPoints, logger)
	submitter := submission.NewService(bookingClient, identityClient, schedulingClient, pricingEngine, journal, logger)

	orchestrator := payment.NewOrchestrator(
		payment.NewTransactionStore(redisClient, cfg.PendingTransactionTTL, logger),
		payment.NewRedirectLauncher(),
		walletStatusSource{client: bookingClient},
		journal,
		cfg.WalletPollMaxAttempts,
		cfg.WalletPollInterval,
		logger,
	)
	paymentHub := handlers.NewPaymentHub(logger)
	orchestrator.SetTransitionListener(paymentHub.OnTransition)

	var notifier flow.Notifier
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		notifier = notify.NewService(sender, logger)
	} else {
		logger.Warn("SENDGRID_API_KEY not set, confirmation emails disabled")
	}

	controller := flow.NewController(flow.ControllerDeps{
		Sessions:    sessions,
		Catalog:     catalogClient,
		Slots:       slotResolver,
		Specialists: specialistResolver,
		Pricing:     pricingEngine,
		Submitter:   submitter,
		Payments:    orchestrator,
		Bookings:    bookingClient,
		History:     flow.NewHistoryCache(redisClient, cfg.BookingHistoryCacheTTL, logger),
		Redis:       redisClient,
		PendingTTL:  cfg.PendingTransactionTTL,
		Notifier:    notifier,
		Journal:     journal,
		Metrics:     flowMetrics,
		Logger:      logger,
	})

	routerCfg := &router.Config{
		Logger:             logger,
		FlowHandler:        handlers.NewFlowHandler(controller, logger),
		PaymentHandler:     handlers.NewPaymentHandler(controller, paymentHub, cfg.PaymentWebhookSecret, logger),
		PaymentHub:         paymentHub,
		BookingsHandler:    handlers.NewBookingsHandler(controller, logger),
		MetricsHandler:     metricsHandler,
		CustomerJWTSecret:  cfg.CustomerJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		WebhookRatePerSec:  5,
		WebhookBurst:       10,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
