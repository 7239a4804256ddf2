// Package iotesting provides shared utilities for tests.
// This is an internal package for test infrastructure only.
package iotesting

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/warno/warno/pkg/config"
)

const (
	// TestDatabaseName is the database name used for all integration tests.
	// This ensures tests never accidentally run against production databases.
	TestDatabaseName = "warno_test"
)

// GetTestConfig returns a configuration suitable for integration tests.
// It starts from defaults, takes connection settings from WARNO_DATABASE_*
// environment variables and always uses TestDatabaseName.
//
// Usage in integration tests:
//
//	func TestSomething(t *testing.T) {
//	    if testing.Short() {
//	        t.Skip("Skipping integration test")
//	    }
//	    cfg := iotesting.GetTestConfig()
//	    // ... use cfg for database operations
//	}
func GetTestConfig() *config.Config {
	v := viper.New()
	v.SetEnvPrefix("WARNO")
	v.AutomaticEnv()

	cfg := config.New()
	var opts []config.Option
	if s := v.GetString("database_host"); s != "" {
		opts = append(opts, config.OptDatabaseHost(s))
	}
	if i := v.GetInt("database_port"); i > 0 {
		opts = append(opts, config.OptDatabasePort(i))
	}
	if s := v.GetString("database_user"); s != "" {
		opts = append(opts, config.OptDatabaseUser(s))
	}
	if s := v.GetString("database_password"); s != "" {
		opts = append(opts, config.OptDatabasePassword(s))
	}
	opts = append(opts,
		config.OptDatabaseDatabase(TestDatabaseName),
		config.OptLogDestination("stderr"),
	)
	cfg.Update(opts)
	return cfg
}

// GetTestDatabaseConfig returns only the database configuration for tests.
func GetTestDatabaseConfig() *config.DatabaseConfig {
	cfg := GetTestConfig()
	return &cfg.Database
}

// TempHome returns a test configuration whose home directory is a fresh
// temporary directory.
func TempHome(t *testing.T) *config.Config {
	t.Helper()
	cfg := GetTestConfig()
	cfg.Update([]config.Option{config.OptHomeDir(t.TempDir())})
	return cfg
}
