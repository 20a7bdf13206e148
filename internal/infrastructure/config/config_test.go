package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, int64(0), cfg.PlatformFeeBps)
	assert.Equal(t, 5, cfg.MaxCASRetries)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_FromEnvAndFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PLATFORM_FEE_BPS=1500\nCURRENCY=EUR\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("GATEWAY_TIMEOUT", "5s")
	// Registered for cleanup, then unset so the file can supply them.
	t.Setenv("PLATFORM_FEE_BPS", "")
	os.Unsetenv("PLATFORM_FEE_BPS")
	t.Setenv("CURRENCY", "")
	os.Unsetenv("CURRENCY")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, int64(1500), cfg.PlatformFeeBps)
	assert.Equal(t, "eur", cfg.Currency)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.GatewayTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("MAX_CAS_RETRIES", "many")
	t.Setenv("RECONCILE_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CAS_RETRIES")
	assert.Contains(t, err.Error(), "RECONCILE_INTERVAL")

	t.Setenv("MAX_CAS_RETRIES", "")
	t.Setenv("RECONCILE_INTERVAL", "")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("PLATFORM_FEE_BPS", "10000")

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "PLATFORM_FEE_BPS")
}
