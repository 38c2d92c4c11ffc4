package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DivineUX23/pump-fun-monitor/internal/pumpfun"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(EnvUpstreamHTTPURL, "https://rpc.example.com")
	t.Setenv(EnvUpstreamWSSURL, "wss://rpc.example.com")
	t.Setenv(EnvServerPort, "8080")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvProgramID, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvMetricsAddr, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.UpstreamHTTPURL)
	assert.Equal(t, "wss://rpc.example.com", cfg.UpstreamWSSURL)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, pumpfun.ProgramID, cfg.ProgramID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.False(t, cfg.VerifyReserves)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvProgramID, "SomeOtherProgram")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvVerifyReserves, "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "SomeOtherProgram", cfg.ProgramID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.VerifyReserves)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvUpstreamHTTPURL, "")
	_, err := Load()
	assert.ErrorContains(t, err, EnvUpstreamHTTPURL)

	setRequired(t)
	t.Setenv(EnvUpstreamWSSURL, "")
	_, err = Load()
	assert.ErrorContains(t, err, EnvUpstreamWSSURL)

	setRequired(t)
	t.Setenv(EnvServerPort, "")
	_, err = Load()
	assert.ErrorContains(t, err, EnvServerPort)
}

func TestLoad_InvalidPort(t *testing.T) {
	for _, port := range []string{"abc", "0", "-1", "70000"} {
		setRequired(t)
		t.Setenv(EnvServerPort, port)
		_, err := Load()
		assert.Error(t, err, "port %q", port)
	}
}
