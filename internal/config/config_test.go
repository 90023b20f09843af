package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 20, cfg.WalletPollMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.WalletPollInterval)
	assert.Equal(t, 72*time.Hour, cfg.SessionSnapshotTTL)
	assert.Equal(t, 0, cfg.TaxRateBasisPoints)
	assert.Nil(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WALLET_POLL_MAX_ATTEMPTS", "5")
	t.Setenv("WALLET_POLL_INTERVAL", "500ms")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5, cfg.WalletPollMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.WalletPollInterval)
	assert.True(t, cfg.RedisTLS)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WALLET_POLL_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("WALLET_POLL_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 20, cfg.WalletPollMaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.WalletPollInterval)
}
