/*
Copyright © 2025 The WARNO Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gnames/gn"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warno/warno/internal/iofs"
	"github.com/warno/warno/internal/iologger"
	warno "github.com/warno/warno/pkg"
	"github.com/warno/warno/pkg/config"
)

var (
	homeDir string
	opts    []config.Option
	cfg     *config.Config
)

// getRootCmd returns the root command with every subcommand attached.
func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Version: fmt.Sprintf("version: %s\nbuild:   %s", warno.Version, warno.Build),
		Use:     "warno",
		Short:   "WARNO collects radar telemetry of ARM sites",
		Long: `WARNO collects telemetry of radars and hosts at ARM sites and
stores it in a central PostgreSQL database.

Components:
  - agent: runs instrument plugins and forwards their events
  - serve: runs the Event-Manager of a site or of the central facility
  - create, migrate: manage the database schema
  - spool: inspect or flush events that could not be delivered

Configuration precedence (highest to lowest):
  1. CLI flags
  2. Environment variables (WARNO_*)
  3. Config file (~/.config/warno/config.yaml)
  4. Built-in defaults

Nested fields use underscores, for example site.central_url
is set by WARNO_SITE_CENTRAL_URL.`,
		PersistentPreRunE: bootstrap,
		RunE:              runRoot,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Flags().BoolP("version", "V", false, "version for warno")

	rootCmd.AddCommand(
		getServeCmd(),
		getAgentCmd(),
		getCreateCmd(),
		getMigrateCmd(),
		getSpoolCmd(),
	)
	return rootCmd
}

func bootstrap(cmd *cobra.Command, args []string) error {
	var err error
	homeDir, err = os.UserHomeDir()
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if err = iofs.EnsureDirs(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	// Reconfigured once the config file is read.
	defaultLog := config.LogConfig{
		Format:      "json",
		Level:       "info",
		Destination: "file",
	}
	if err = iologger.Init(config.LogDir(homeDir), defaultLog); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	if err = iofs.EnsureConfigFile(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	var cfgViper *config.Config
	if cfgViper, err = initConfig(homeDir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	cfg = config.New()
	opts = cfgViper.ToOptions()
	cfg.Update(opts)
	cfg.Update([]config.Option{config.OptHomeDir(homeDir)})

	if err = reconfigureLogging(cfg); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	slog.Info("Configuration loaded",
		"config_file", config.ConfigFilePath(homeDir),
		"site", cfg.Site.Name,
		"central", cfg.Site.Central,
	)
	return nil
}

// reconfigureLogging applies the log settings of the loaded config.
func reconfigureLogging(cfg *config.Config) error {
	return iologger.Init(config.LogDir(cfg.HomeDir), cfg.Log)
}

func runRoot(cmd *cobra.Command, args []string) error {
	versionFlag(cmd)
	gn.Info(
		"Configuration files are available at <em>%s</em>",
		config.ConfigDir(homeDir),
	)
	return cmd.Help()
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig(home string) (*config.Config, error) {
	var err error
	cfgPath := config.ConfigFilePath(home)
	v := viper.New()
	v.SetConfigFile(cfgPath)

	initEnvVars(v)

	// booleans missing from an old config file keep their defaults
	def := config.New()
	v.SetDefault("site.cert_verify", def.Site.CertVerify)
	v.SetDefault("agent.run", def.Agent.Run)

	if err = v.ReadInConfig(); err != nil {
		return nil, iofs.ReadFileError(cfgPath, err)
	}

	var res config.Config
	if err = v.Unmarshal(&res); err != nil {
		return nil, iofs.ReadFileError(cfgPath, err)
	}

	return &res, nil
}

func initEnvVars(v *viper.Viper) {
	// Only fields of config.ToOptions() are bound, runtime values such as
	// HomeDir cannot come from the environment.
	v.SetEnvPrefix("WARNO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range envKeys {
		v.BindEnv(key)
	}

	v.AutomaticEnv()
}

// envKeys lists config keys that can be set by WARNO_* variables.
var envKeys = []string{
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.database",
	"database.ssl_mode",

	"log.level",
	"log.format",
	"log.destination",

	"site.name",
	"site.central",
	"site.central_url",
	"site.cert_verify",

	"agent.run",
	"agent.event_manager_url",
	"agent.plugin_dir",
	"agent.max_conn_attempts",
	"agent.conn_retry_interval",
	"agent.poll_interval",
	"agent.status_addr",

	"event_manager.addr",
	"event_manager.replay_interval",

	"transport.timeout",
	"transport.max_retries",
	"transport.breaker_failures",
	"transport.breaker_cooldown",

	"jobs_number",
}
