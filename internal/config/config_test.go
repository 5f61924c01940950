package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.API.RequestTimeout)
	assert.Equal(t, StoreBackendFile, cfg.Store.Backend)
	assert.Equal(t, "254", cfg.Payment.CountryCode)
	assert.Equal(t, 6*time.Second, cfg.Payment.PollInterval)
	assert.Equal(t, 20, cfg.Payment.PollAttempts)
	assert.Equal(t, 2*time.Second, cfg.Payment.SuccessDelay)
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://market.example/api")
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("PAYMENT_POLL_ATTEMPTS", "5")
	t.Setenv("PAYMENT_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://market.example/api", cfg.API.BaseURL)
	assert.Equal(t, StoreBackendRedis, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Payment.PollAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Payment.PollInterval)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	require.ErrorContains(t, err, "unknown STORE_BACKEND")
}

func TestLoad_RejectsZeroAttempts(t *testing.T) {
	t.Setenv("PAYMENT_POLL_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}
