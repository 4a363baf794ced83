// Package config provides configuration for the agentkit service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Storage
	DatabaseURL string
	RedisAddr   string

	// Tooling
	ToolsFile  string
	PolicyFile string

	// Webhook notifier. Either value empty disables notifications.
	WebhookURL         string
	WebhookSecret      string
	WebhookTimeout     time.Duration
	WebhookMaxAttempts int

	// Forwarding to agent callback addresses
	ForwardTimeout     time.Duration
	ForwardMaxAttempts int

	// Remote tool calls
	ToolTimeout time.Duration

	// State ingestion key. It also guards the delivery log. Empty leaves the
	// state routes unmounted.
	StateAPIKey string

	// Background executor
	WorkerConcurrency int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8000),
		DatabaseURL:        getEnv("DATABASE_URL", "file:agentkit.db?cache=shared&mode=rwc"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		ToolsFile:          getEnv("TOOLS_FILE", ""),
		PolicyFile:         getEnv("POLICY_FILE", ""),
		WebhookURL:         getEnv("WEBHOOK_URL", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		WebhookTimeout:     time.Duration(getEnvInt("WEBHOOK_TIMEOUT_MS", 5000)) * time.Millisecond,
		WebhookMaxAttempts: getEnvInt("WEBHOOK_MAX_ATTEMPTS", 1),
		ForwardTimeout:     time.Duration(getEnvInt("FORWARD_TIMEOUT_MS", 10000)) * time.Millisecond,
		ForwardMaxAttempts: getEnvInt("FORWARD_MAX_ATTEMPTS", 1),
		ToolTimeout:        time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 30000)) * time.Millisecond,
		StateAPIKey:        getEnv("STATE_API_KEY", ""),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 32),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if cfg.WebhookMaxAttempts < 1 {
		cfg.WebhookMaxAttempts = 1
	}
	if cfg.ForwardMaxAttempts < 1 {
		cfg.ForwardMaxAttempts = 1
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	return cfg
}

// WebhookEnabled reports whether both webhook URL and secret are configured.
func (c *Config) WebhookEnabled() bool {
	return c.WebhookURL != "" && c.WebhookSecret != ""
}

// StateIngestionEnabled reports whether the state ingestion routes should be mounted.
func (c *Config) StateIngestionEnabled() bool {
	return c.StateAPIKey != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
