// Package config provides configuration management for WARNO.
//
// This package has no I/O dependencies (no file operations, no network calls).
// Validation functions may write user-facing warnings via gn.Warn().
//
// # Configuration Sources
//
// Precedence (highest to lowest): CLI flags > env vars > config.yaml > defaults
//
// # Design Principles
//
// - Default config (from New()) is always valid - no validation needed
// - All mutations go through Option functions - the only way to modify Config
// - Invalid options are rejected with gn.Warn() - config remains in valid state
// - ToOptions() converts persistent fields (those in config.yaml)
// - Environment variables match ToOptions() fields exactly
//
// # Persistent vs Runtime Fields
//
// Persistent fields (in ToOptions, config.yaml, and env vars):
//   - Database: host, port, user, password, database, ssl_mode
//   - Log: level, format, destination
//   - Site: name, central, central_url, cert_verify
//   - Agent: run, event_manager_url, plugin_dir, max_conn_attempts,
//     conn_retry_interval, poll_interval, status_addr
//   - EventManager: addr, replay_interval
//   - Transport: timeout, max_retries, breaker_failures, breaker_cooldown
//   - General: jobs_number
//
// Runtime-only fields (CLI flags only):
//   - HomeDir (set once at startup)
//
// # Environment Variables
//
// Use WARNO_ prefix with underscores for nesting:
//
//	WARNO_DATABASE_HOST=localhost
//	WARNO_SITE_NAME=OLI
//	WARNO_SITE_CENTRAL=true
//	WARNO_AGENT_EVENT_MANAGER_URL=http://localhost:8080/eventmanager/event
package config

import (
	"runtime"
	"time"
)

// Config represents the complete WARNO configuration.
type Config struct {
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Site describes the deployment this process belongs to.
	Site SiteConfig `mapstructure:"site" yaml:"site"`

	// Agent contains settings of the on-site plugin coordinator.
	Agent AgentConfig `mapstructure:"agent" yaml:"agent"`

	// EventManager contains settings of the ingestion service.
	EventManager EventManagerConfig `mapstructure:"event_manager" yaml:"event_manager"`

	// Transport tunes every HTTP call made to another tier.
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// JobsNumber limits concurrent workers (spool replay, flush).
	JobsNumber int `mapstructure:"jobs_number" yaml:"jobs_number"`

	// HomeDir determines where config, cache and logs directories reside.
	// It must be set by CLI during init, there is no default value for it.
	HomeDir string
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname or IP address.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the PostgreSQL server port number.
	Port int `mapstructure:"port" yaml:"port"`

	// User is the PostgreSQL database username.
	User string `mapstructure:"user" yaml:"user"`

	// Password is the PostgreSQL database password.
	Password string `mapstructure:"password" yaml:"password"`

	// Database is the PostgreSQL database name to connect to.
	Database string `mapstructure:"database" yaml:"database"`

	// SSLMode specifies the SSL connection mode.
	// Valid values: "disable", "require", "verify-ca", "verify-full"
	SSLMode string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
}

// LogConfig provides typical settings for application logs.
type LogConfig struct {
	// Format can be 'json', 'text' or 'tint' (user-facing and colored).
	Format string `mapstructure:"format"      yaml:"format"`
	// Level of logging -- 'error', 'warn', 'info', 'debug'
	Level string `mapstructure:"level"       yaml:"level"`
	// Destination can be a log file (to default place), STDERR or STDOUT
	Destination string `mapstructure:"destination" yaml:"destination"`
}

// SiteConfig identifies the deployment and its place in the two tiers.
type SiteConfig struct {
	// Name is the site short name, the natural key used for site resolution.
	Name string `mapstructure:"name" yaml:"name"`

	// Central is true for the central facility. The central tier is the
	// only one that allocates identifiers.
	Central bool `mapstructure:"central" yaml:"central"`

	// CentralURL is the ingestion endpoint of the central facility.
	// Ignored when Central is true.
	CentralURL string `mapstructure:"central_url" yaml:"central_url"`

	// CertVerify toggles TLS certificate verification for upstream calls.
	CertVerify bool `mapstructure:"cert_verify" yaml:"cert_verify"`
}

// AgentConfig contains settings of the agent coordinator.
type AgentConfig struct {
	// Run is false when this node should not run an agent at all.
	Run bool `mapstructure:"run" yaml:"run"`

	// EventManagerURL is the ingestion endpoint of the local Event-Manager.
	EventManagerURL string `mapstructure:"event_manager_url" yaml:"event_manager_url"`

	// PluginDir holds plugin descriptors. Relative paths are resolved
	// against the config directory.
	PluginDir string `mapstructure:"plugin_dir" yaml:"plugin_dir"`

	// MaxConnAttempts bounds site identifier acquisition attempts.
	MaxConnAttempts int `mapstructure:"max_conn_attempts" yaml:"max_conn_attempts"`

	// ConnRetryInterval is the fixed delay between acquisition attempts.
	ConnRetryInterval time.Duration `mapstructure:"conn_retry_interval" yaml:"conn_retry_interval"`

	// PollInterval is the sleep of the drain loop when the queue is empty.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// StatusAddr enables the plugin status endpoint when not empty.
	StatusAddr string `mapstructure:"status_addr" yaml:"status_addr"`
}

// EventManagerConfig contains settings of the ingestion service.
type EventManagerConfig struct {
	// Addr is the listen address of the HTTP service.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// ReplayInterval is how often spooled envelopes are retried upstream.
	ReplayInterval time.Duration `mapstructure:"replay_interval" yaml:"replay_interval"`
}

// TransportConfig tunes calls between tiers.
type TransportConfig struct {
	// Timeout of a single HTTP request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxRetries is the number of attempts for one forward.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// BreakerFailures is the number of consecutive failures that opens
	// the circuit breaker.
	BreakerFailures int `mapstructure:"breaker_failures" yaml:"breaker_failures"`

	// BreakerCooldown is how long an open breaker rejects calls.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// New creates a Config with sensible default values.
// The returned config is always valid and ready to use.
// Default values can be overridden using Option functions via Update().
func New() *Config {
	res := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "warno",
			Password: "warno",
			Database: "warno",
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Format:      "json",
			Level:       "info",
			Destination: "file",
		},
		Site: SiteConfig{
			Name:       "TEST",
			CertVerify: true,
		},
		Agent: AgentConfig{
			Run:               true,
			EventManagerURL:   "http://localhost:8080/eventmanager/event",
			PluginDir:         "plugins",
			MaxConnAttempts:   20,
			ConnRetryInterval: 10 * time.Second,
			PollInterval:      100 * time.Millisecond,
		},
		EventManager: EventManagerConfig{
			Addr:           ":8080",
			ReplayInterval: time.Minute,
		},
		Transport: TransportConfig{
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		JobsNumber: runtime.NumCPU(),
	}

	return res
}
