package config

import (
	"net/url"
	"strings"
	"time"
)

// Option is a function that modifies a Config.
// Options validate inputs and reject invalid values with warnings.
type Option func(*Config)

// OptDatabaseHost sets the PostgreSQL server hostname or IP address.
func OptDatabaseHost(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Host", s) {
			c.Database.Host = s
		}
	}
}

// OptDatabasePort sets the PostgreSQL server port number.
func OptDatabasePort(i int) Option {
	return func(c *Config) {
		if isValidInt("Database Port", i) {
			c.Database.Port = i
		}
	}
}

// OptDatabaseUser sets the PostgreSQL database username.
func OptDatabaseUser(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database User", s) {
			c.Database.User = s
		}
	}
}

// OptDatabasePassword sets the PostgreSQL database password.
func OptDatabasePassword(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Password", s) {
			c.Database.Password = s
		}
	}
}

// OptDatabaseDatabase sets the PostgreSQL database name to connect to.
func OptDatabaseDatabase(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Name", s) {
			c.Database.Database = s
		}
	}
}

// OptDatabaseSSLMode sets the SSL connection mode.
// Valid values: "disable", "require", "verify-ca", "verify-full".
func OptDatabaseSSLMode(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Database.SSLMode", s) {
			c.Database.SSLMode = s
		}
	}
}

// OptLogLevel sets the logging level.
// Valid values: "debug", "info", "warn", "error".
func OptLogLevel(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Level", s) {
			c.Log.Level = s
		}
	}
}

// OptLogFormat sets the log output format.
// Valid values: "json", "text", "tint".
func OptLogFormat(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Format", s) {
			c.Log.Format = s
		}
	}
}

// OptLogDestination sets where logs are written.
// Valid values: "file", "stderr", "stdout".
func OptLogDestination(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Destination", s) {
			c.Log.Destination = s
		}
	}
}

// OptSiteName sets the short name of the site this process serves.
func OptSiteName(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Site Name", s) {
			c.Site.Name = s
		}
	}
}

// OptSiteCentral marks this process as the central facility.
func OptSiteCentral(b bool) Option {
	return func(c *Config) {
		c.Site.Central = b
	}
}

// OptSiteCentralURL sets the ingestion endpoint of the central facility.
func OptSiteCentralURL(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidURL("Site Central URL", s) {
			c.Site.CentralURL = s
		}
	}
}

// OptSiteCertVerify toggles TLS verification of upstream calls.
func OptSiteCertVerify(b bool) Option {
	return func(c *Config) {
		c.Site.CertVerify = b
	}
}

// OptAgentRun enables or disables the agent on this node.
func OptAgentRun(b bool) Option {
	return func(c *Config) {
		c.Agent.Run = b
	}
}

// OptAgentEventManagerURL sets the local Event-Manager endpoint.
func OptAgentEventManagerURL(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidURL("Agent Event Manager URL", s) {
			c.Agent.EventManagerURL = s
		}
	}
}

// OptAgentPluginDir sets the directory with plugin descriptors.
func OptAgentPluginDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Agent Plugin Dir", s) {
			c.Agent.PluginDir = s
		}
	}
}

// OptAgentMaxConnAttempts bounds site identifier acquisition attempts.
func OptAgentMaxConnAttempts(i int) Option {
	return func(c *Config) {
		if isValidInt("Agent Max Conn Attempts", i) {
			c.Agent.MaxConnAttempts = i
		}
	}
}

// OptAgentConnRetryInterval sets the delay between acquisition attempts.
func OptAgentConnRetryInterval(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("Agent Conn Retry Interval", d) {
			c.Agent.ConnRetryInterval = d
		}
	}
}

// OptAgentPollInterval sets the sleep of the drain loop.
func OptAgentPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("Agent Poll Interval", d) {
			c.Agent.PollInterval = d
		}
	}
}

// OptAgentStatusAddr sets the listen address of the plugin status endpoint.
// An empty string keeps the endpoint disabled.
func OptAgentStatusAddr(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		c.Agent.StatusAddr = s
	}
}

// OptEventManagerAddr sets the listen address of the Event-Manager.
func OptEventManagerAddr(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Event Manager Addr", s) {
			c.EventManager.Addr = s
		}
	}
}

// OptEventManagerReplayInterval sets how often the spool is replayed.
func OptEventManagerReplayInterval(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("Event Manager Replay Interval", d) {
			c.EventManager.ReplayInterval = d
		}
	}
}

// OptTransportTimeout sets the timeout of one upstream HTTP request.
func OptTransportTimeout(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("Transport Timeout", d) {
			c.Transport.Timeout = d
		}
	}
}

// OptTransportMaxRetries sets the number of attempts of one forward.
func OptTransportMaxRetries(i int) Option {
	return func(c *Config) {
		if isValidInt("Transport Max Retries", i) {
			c.Transport.MaxRetries = i
		}
	}
}

// OptTransportBreakerFailures sets consecutive failures opening the breaker.
func OptTransportBreakerFailures(i int) Option {
	return func(c *Config) {
		if isValidInt("Transport Breaker Failures", i) {
			c.Transport.BreakerFailures = i
		}
	}
}

// OptTransportBreakerCooldown sets how long an open breaker rejects calls.
func OptTransportBreakerCooldown(d time.Duration) Option {
	return func(c *Config) {
		if isValidDuration("Transport Breaker Cooldown", d) {
			c.Transport.BreakerCooldown = d
		}
	}
}

// OptJobsNumber sets the number of concurrent workers.
// Default is runtime.NumCPU().
func OptJobsNumber(i int) Option {
	return func(c *Config) {
		if isValidInt("Jobs Number", i) {
			c.JobsNumber = i
		}
	}
}

// OptHomeDir sets the home directory for config, cache, and log locations.
// Set once at startup from os.UserHomeDir().
// Runtime-only field - not in ToOptions().
func OptHomeDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Home Directory", s) {
			c.HomeDir = s
		}
	}
}

func isValidURL(name, s string) bool {
	if !isValidString(name, s) {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		warnInvalid(name, s)
		return false
	}
	return true
}
