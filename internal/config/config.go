package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// External collaborators
	CatalogBaseURL    string
	SchedulingBaseURL string
	BookingBaseURL    string
	IdentityBaseURL   string
	CollaboratorToken string
	HTTPTimeout       time.Duration

	// Durable stores
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DatabaseURL   string

	// Auth
	CustomerJWTSecret string

	// Payments
	PaymentWebhookSecret   string
	WalletPollMaxAttempts  int
	WalletPollInterval     time.Duration
	PendingTransactionTTL  time.Duration
	SessionSnapshotTTL     time.Duration
	BookingHistoryCacheTTL time.Duration
	TaxRateBasisPoints     int

	// Notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		CatalogBaseURL:    getEnv("CATALOG_BASE_URL", ""),
		SchedulingBaseURL: getEnv("SCHEDULING_BASE_URL", ""),
		BookingBaseURL:    getEnv("BOOKING_BASE_URL", ""),
		IdentityBaseURL:   getEnv("IDENTITY_BASE_URL", ""),
		CollaboratorToken: getEnv("COLLABORATOR_API_TOKEN", ""),
		HTTPTimeout:       getEnvAsDuration("COLLABORATOR_HTTP_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		CustomerJWTSecret: getEnv("CUSTOMER_JWT_SECRET", ""),

		PaymentWebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		WalletPollMaxAttempts:  getEnvAsInt("WALLET_POLL_MAX_ATTEMPTS", 20),
		WalletPollInterval:     getEnvAsDuration("WALLET_POLL_INTERVAL", 3*time.Second),
		PendingTransactionTTL:  getEnvAsDuration("PENDING_TRANSACTION_TTL", 24*time.Hour),
		SessionSnapshotTTL:     getEnvAsDuration("SESSION_SNAPSHOT_TTL", 72*time.Hour),
		BookingHistoryCacheTTL: getEnvAsDuration("BOOKING_HISTORY_CACHE_TTL", 15*time.Minute),
		TaxRateBasisPoints:     getEnvAsInt("TAX_RATE_BASIS_POINTS", 0),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Lumen Spa"),

		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
