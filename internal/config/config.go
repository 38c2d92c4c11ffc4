// Package config loads and validates the service configuration from
// environment variables. A .env file in the working directory is honored
// without overriding the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/DivineUX23/pump-fun-monitor/internal/pumpfun"
)

// Environment variable names.
const (
	EnvUpstreamHTTPURL = "UPSTREAM_HTTP_URL"
	EnvUpstreamWSSURL  = "UPSTREAM_WSS_URL"
	EnvServerPort      = "SERVER_PORT"
	EnvProgramID       = "PROGRAM_ID"
	EnvLogLevel        = "LOG_LEVEL"
	EnvMetricsAddr     = "METRICS_ADDR"
	EnvVerifyReserves  = "VERIFY_RESERVES"
)

// Config is the validated service configuration.
type Config struct {
	UpstreamHTTPURL string
	UpstreamWSSURL  string
	ServerPort      int
	ProgramID       string

	LogLevel       string
	MetricsAddr    string // empty disables the metrics listener; Load never leaves it empty
	VerifyReserves bool
}

// Load reads the environment (and an optional .env file) and validates the
// result. Any error here is fatal to startup.
func Load() (*Config, error) {
	// Missing .env is fine; the process environment wins either way.
	_ = godotenv.Load()

	cfg := &Config{
		UpstreamHTTPURL: os.Getenv(EnvUpstreamHTTPURL),
		UpstreamWSSURL:  os.Getenv(EnvUpstreamWSSURL),
		ProgramID:       getEnvWithDefault(EnvProgramID, pumpfun.ProgramID),
		LogLevel:        getEnvWithDefault(EnvLogLevel, "info"),
		MetricsAddr:     getEnvWithDefault(EnvMetricsAddr, ":9090"),
		VerifyReserves:  os.Getenv(EnvVerifyReserves) == "true",
	}

	if cfg.UpstreamHTTPURL == "" {
		return nil, fmt.Errorf("%s must be set", EnvUpstreamHTTPURL)
	}
	if cfg.UpstreamWSSURL == "" {
		return nil, fmt.Errorf("%s must be set", EnvUpstreamWSSURL)
	}

	portStr := os.Getenv(EnvServerPort)
	if portStr == "" {
		return nil, fmt.Errorf("%s must be set", EnvServerPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%s: invalid port %q", EnvServerPort, portStr)
	}
	cfg.ServerPort = port

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
