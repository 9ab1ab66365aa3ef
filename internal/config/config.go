package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the doorbell service.
// Environment variables are parsed from the DOORBELL_ prefix; the bare
// variable names (MAX_CONCURRENT_SESSIONS, DATA_DIR, ...) are honored as
// fallbacks when the prefixed form is unset.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Pipeline scheduling
	MaxConcurrentSessions int `envconfig:"MAX_CONCURRENT_SESSIONS" default:"2"`
	SessionIdleTimeoutSec int `envconfig:"SESSION_IDLE_TIMEOUT_SEC" default:"90"`
	SessionQueueDepth     int `envconfig:"SESSION_QUEUE_DEPTH" default:"4"`
	AdmitTimeoutSec       int `envconfig:"ADMIT_TIMEOUT_SEC" default:"60"`
	WorkerPoolSize        int `envconfig:"WORKER_POOL_SIZE" default:"2"`

	// Stage budgets
	ProviderTimeoutSec int `envconfig:"PROVIDER_TIMEOUT_SEC" default:"8"`
	ActionTimeoutSec   int `envconfig:"ACTION_TIMEOUT_SEC" default:"10"`

	// Device policy: whether low-risk visits may be answered without the
	// owner (decision rule R2).
	AutoReplyAllowed bool `envconfig:"AUTO_REPLY_ALLOWED" default:"true"`

	// Persistence
	DataDir  string `envconfig:"DATA_DIR" default:"./data"`
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN    string `envconfig:"DB_DSN" default:""`

	// Reply provider (optional external generator). The key is an opaque
	// secret; it must never be logged or embedded in errors.
	ReplyProviderURL   string `envconfig:"REPLY_PROVIDER_URL" default:""`
	ReplyProviderKey   string `envconfig:"REPLY_PROVIDER_KEY" default:""`
	ReplyProviderModel string `envconfig:"REPLY_PROVIDER_MODEL" default:"llama-3.1-8b-instant"`

	// External vision/STT analyzer; empty keeps the built-in heuristics.
	ModelServerURL string `envconfig:"MODEL_SERVER_URL" default:""`

	// Degraded mode: heuristic perception, template replies, silent TTS.
	DisableModels bool `envconfig:"DISABLE_MODELS" default:"true"`

	// External TTS command template; empty means write-text-only TTS.
	TTSCommand string `envconfig:"TTS_COMMAND" default:""`

	// Event fan-out
	EventBufferSize int `envconfig:"EVENT_BUFFER_SIZE" default:"64"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ResolveDefaults validates the parsed values and derives the DB DSN when
// unset.
func (c *Config) ResolveDefaults() error {
	if c.MaxConcurrentSessions < 1 {
		return fmt.Errorf("MAX_CONCURRENT_SESSIONS must be >= 1, got %d", c.MaxConcurrentSessions)
	}
	if c.SessionQueueDepth < 1 {
		return fmt.Errorf("SESSION_QUEUE_DEPTH must be >= 1, got %d", c.SessionQueueDepth)
	}
	if c.SessionIdleTimeoutSec < 1 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT_SEC must be >= 1, got %d", c.SessionIdleTimeoutSec)
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be >= 1, got %d", c.WorkerPoolSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}

	switch c.DBDriver {
	case "sqlite":
		if c.DBDSN == "" {
			c.DBDSN = filepath.Join(c.DataDir, "doorbell.db")
		}
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: DOORBELL_HTTP_PORT, DOORBELL_MAX_CONCURRENT_SESSIONS.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("DOORBELL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Int("port", cfg.HTTPPort).
		Int("max_concurrent_sessions", cfg.MaxConcurrentSessions).
		Int("session_idle_timeout_sec", cfg.SessionIdleTimeoutSec).
		Int("session_queue_depth", cfg.SessionQueueDepth).
		Str("data_dir", cfg.DataDir).
		Str("db_driver", cfg.DBDriver).
		Bool("disable_models", cfg.DisableModels).
		Bool("reply_provider_configured", cfg.ReplyProviderURL != "").
		Bool("reply_provider_key_present", cfg.ReplyProviderKey != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests: in-memory store,
// tight timeouts, models disabled.
func NewForTesting(dataDir string) *Config {
	cfg := &Config{
		HTTPPort:                  8080,
		MaxConcurrentSessions:     2,
		SessionIdleTimeoutSec:     90,
		SessionQueueDepth:         4,
		AdmitTimeoutSec:           60,
		WorkerPoolSize:            2,
		ProviderTimeoutSec:        8,
		ActionTimeoutSec:          10,
		AutoReplyAllowed:          true,
		DataDir:                   dataDir,
		DBDriver:                  "sqlite",
		DBDSN:                     "file::memory:?cache=shared",
		DisableModels:             true,
		EventBufferSize:           64,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		LogLevel:                  "error",
	}
	return cfg
}

// SessionIdleTimeout returns the idle window after which a session runner
// shuts down.
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutSec) * time.Second
}

// AdmitTimeout returns how long a session waits for a pipeline slot before
// failing.
func (c *Config) AdmitTimeout() time.Duration {
	return time.Duration(c.AdmitTimeoutSec) * time.Second
}

// ProviderTimeout returns the per-call budget for external providers.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSec) * time.Second
}

// ActionTimeout returns the budget for one action execution.
func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.ActionTimeoutSec) * time.Second
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
