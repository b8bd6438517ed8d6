package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears key for the duration of the test while keeping
// t.Setenv's restore behavior.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestValidateEnvDefaults(t *testing.T) {
	// start from a clean slate
	for _, key := range []string{"PORT", "GO_ENV", "LOG_LEVEL", "ALLOWED_ORIGINS", "DEVELOPMENT_MODE", "OTEL_ENABLED", "OTEL_COLLECTOR_ADDR"} {
		unsetEnv(t, key)
	}

	cfg, err := ValidateEnv()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "production", cfg.GoEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevelopmentMode)
	assert.False(t, cfg.OtelEnabled)
}

func TestValidateEnvRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := ValidateEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestValidateEnvRejectsOutOfRangePort(t *testing.T) {
	t.Setenv("PORT", "70000")

	_, err := ValidateEnv()

	assert.Error(t, err)
}

func TestValidateEnvOtelDefaultsCollector(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_COLLECTOR_ADDR", "")

	cfg, err := ValidateEnv()

	require.NoError(t, err)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "localhost:4317", cfg.OtelCollectorAddr)
}

func TestValidateEnvOtelRejectsBadCollector(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_COLLECTOR_ADDR", "no-port-here")

	_, err := ValidateEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_COLLECTOR_ADDR")
}

func TestIsValidHostPort(t *testing.T) {
	assert.True(t, isValidHostPort("localhost:4317"))
	assert.True(t, isValidHostPort("10.0.0.1:80"))
	assert.False(t, isValidHostPort("localhost"))
	assert.False(t, isValidHostPort(":4317"))
	assert.False(t, isValidHostPort("host:zero"))
	assert.False(t, isValidHostPort("host:0"))
}
