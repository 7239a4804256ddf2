package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gnames/gn"
)

// Update applies a slice of Option functions to the Config.
// This is the only way to modify a Config after creation.
// Invalid options are rejected with warnings - config remains in valid state.
func (c *Config) Update(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// ToOptions converts the Config to a slice of Option functions.
// Only includes persistent fields appropriate for config.yaml.
// Excludes runtime-only fields (HomeDir).
// Used for round-tripping config.yaml ↔ Config conversions.
func (c *Config) ToOptions() []Option {
	var res []Option
	var s string
	var i int
	var d time.Duration
	s = c.Database.Host
	if s != "" {
		res = append(res, OptDatabaseHost(s))
	}
	i = c.Database.Port
	if i > 0 {
		res = append(res, OptDatabasePort(i))
	}
	s = c.Database.User
	if s != "" {
		res = append(res, OptDatabaseUser(s))
	}
	s = c.Database.Password
	if s != "" {
		res = append(res, OptDatabasePassword(s))
	}
	s = c.Database.Database
	if s != "" {
		res = append(res, OptDatabaseDatabase(s))
	}
	s = c.Database.SSLMode
	if s != "" {
		res = append(res, OptDatabaseSSLMode(s))
	}

	s = c.Log.Format
	if s != "" {
		res = append(res, OptLogFormat(s))
	}
	s = c.Log.Level
	if s != "" {
		res = append(res, OptLogLevel(s))
	}
	s = c.Log.Destination
	if s != "" {
		res = append(res, OptLogDestination(s))
	}

	s = c.Site.Name
	if s != "" {
		res = append(res, OptSiteName(s))
	}
	res = append(res, OptSiteCentral(c.Site.Central))
	s = c.Site.CentralURL
	if s != "" {
		res = append(res, OptSiteCentralURL(s))
	}
	res = append(res, OptSiteCertVerify(c.Site.CertVerify))

	res = append(res, OptAgentRun(c.Agent.Run))
	s = c.Agent.EventManagerURL
	if s != "" {
		res = append(res, OptAgentEventManagerURL(s))
	}
	s = c.Agent.PluginDir
	if s != "" {
		res = append(res, OptAgentPluginDir(s))
	}
	i = c.Agent.MaxConnAttempts
	if i > 0 {
		res = append(res, OptAgentMaxConnAttempts(i))
	}
	d = c.Agent.ConnRetryInterval
	if d > 0 {
		res = append(res, OptAgentConnRetryInterval(d))
	}
	d = c.Agent.PollInterval
	if d > 0 {
		res = append(res, OptAgentPollInterval(d))
	}
	s = c.Agent.StatusAddr
	if s != "" {
		res = append(res, OptAgentStatusAddr(s))
	}

	s = c.EventManager.Addr
	if s != "" {
		res = append(res, OptEventManagerAddr(s))
	}
	d = c.EventManager.ReplayInterval
	if d > 0 {
		res = append(res, OptEventManagerReplayInterval(d))
	}

	d = c.Transport.Timeout
	if d > 0 {
		res = append(res, OptTransportTimeout(d))
	}
	i = c.Transport.MaxRetries
	if i > 0 {
		res = append(res, OptTransportMaxRetries(i))
	}
	i = c.Transport.BreakerFailures
	if i > 0 {
		res = append(res, OptTransportBreakerFailures(i))
	}
	d = c.Transport.BreakerCooldown
	if d > 0 {
		res = append(res, OptTransportBreakerCooldown(d))
	}

	i = c.JobsNumber
	if i > 0 {
		res = append(res, OptJobsNumber(i))
	}
	return res
}

// UpstreamURL returns the endpoint a site tier forwards to. It is empty for
// the central facility.
func (c *Config) UpstreamURL() string {
	if c.Site.Central {
		return ""
	}
	return c.Site.CentralURL
}

// CheckTier returns an error when the node is neither the central facility
// nor a site tier with a central facility to forward to.
func (c *Config) CheckTier() error {
	if c.Site.Central || c.Site.CentralURL != "" {
		return nil
	}
	return NoCentralURLError(c.Site.Name)
}

func isValidString(name, s string) bool {
	res := s != ""
	if !res {
		gn.Warn("<em>%s</em> cannot be empty, ignoring", name)
	}
	return res
}

func isValidInt(name string, i int) bool {
	res := i > 0
	if !res {
		gn.Warn("<em>%s</em> has to be positive number, ignoring %d", name, i)
	}
	return res
}

func isValidDuration(name string, d time.Duration) bool {
	res := d > 0
	if !res {
		gn.Warn("<em>%s</em> has to be positive duration, ignoring %s", name, d)
	}
	return res
}

func warnInvalid(name, val string) {
	gn.Warn("<em>%s</em> does not accept '%s', ignoring", name, val)
}

func isValidEnum(name, val string) bool {
	s := struct{}{}
	data := map[string]map[string]struct{}{
		"Database.SSLMode": {"disable": s, "require": s,
			"verify-ca": s, "verify-full": s},
		"Log.Level":       {"debug": s, "info": s, "warn": s, "error": s},
		"Log.Format":      {"json": s, "text": s, "tint": s},
		"Log.Destination": {"file": s, "stderr": s, "stdout": s},
	}
	vals := slices.Sorted(maps.Keys(data[name]))
	var lines []string
	for _, v := range vals {
		line := fmt.Sprintf("  * %s", v)
		lines = append(lines, line)
	}
	if _, ok := data[name][val]; ok {
		return true
	}
	gn.Warn(
		"<em>%s</em> does not support '%s' as a value. "+
			"Valid values are: \n%s\nIgnoring...",
		name, val, strings.Join(lines, "\n"),
	)
	return false
}
