// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds nexus-server configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"nexus-server"`

	// Wire binding
	NexusSubject  string `envconfig:"NEXUS_SUBJECT" default:"nexus.v1"`
	EventSubject  string `envconfig:"NEXUS_EVENT_SUBJECT" default:"nexus.events"`
	PublishEvents bool   `envconfig:"NEXUS_PUBLISH_EVENTS" default:"true"`
	MaxInFlight   int64  `envconfig:"NEXUS_MAX_IN_FLIGHT" default:"256"`

	// Timeouts
	RequestTimeout     time.Duration `envconfig:"NEXUS_REQUEST_TIMEOUT" default:"25s"`
	FetchResultMaxWait time.Duration `envconfig:"NEXUS_FETCH_RESULT_MAX_WAIT" default:"10s"`

	// Sample greeting service
	CompletionDelay    time.Duration `envconfig:"GREETING_COMPLETION_DELAY" default:"2s"`
	OperationRetention time.Duration `envconfig:"GREETING_OPERATION_RETENTION" default:"1h"`

	// Database (empty = in-memory operation store)
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	EnsureDatabase bool   `envconfig:"DATABASE_ENSURE" default:"false"`
	RunMigrations  bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath  string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP health endpoint (NEXUS_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"NEXUS_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &c, nil
}

// UseDatabase reports whether operations are persisted in Postgres.
func (c *Config) UseDatabase() bool {
	return c.DatabaseURL != ""
}

// ValidateForServe checks required config when running the server.
func (c *Config) ValidateForServe() error {
	if c.NexusSubject == "" {
		return fmt.Errorf("%s - NEXUS_SUBJECT must not be empty", logPrefix)
	}
	if c.PublishEvents && c.EventSubject == "" {
		return fmt.Errorf("%s - NEXUS_EVENT_SUBJECT must not be empty when events are published", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - NEXUS_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.FetchResultMaxWait < 0 {
		return fmt.Errorf("%s - NEXUS_FETCH_RESULT_MAX_WAIT must not be negative", logPrefix)
	}
	if c.MaxInFlight <= 0 {
		return fmt.Errorf("%s - NEXUS_MAX_IN_FLIGHT must be positive", logPrefix)
	}
	if c.CompletionDelay < 0 {
		return fmt.Errorf("%s - GREETING_COMPLETION_DELAY must not be negative", logPrefix)
	}
	if c.OperationRetention <= 0 {
		return fmt.Errorf("%s - GREETING_OPERATION_RETENTION must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
