package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	warno "github.com/warno/warno/pkg"
	"github.com/warno/warno/pkg/config"
)

type funcFlag func(cmd *cobra.Command)

// applyFlags runs flag handlers in order. Flags override values of the
// config file and the environment.
func applyFlags(cmd *cobra.Command, flags ...funcFlag) {
	for _, f := range flags {
		f(cmd)
	}
}

func versionFlag(cmd *cobra.Command) {
	hasVersionFlag, _ := cmd.Flags().GetBool("version")
	if hasVersionFlag {
		fmt.Printf("\nversion: %s\nbuild: %s\n\n", warno.Version, warno.Build)
		os.Exit(0)
	}
}

func addrFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("addr")
	if s != "" {
		cfg.Update([]config.Option{config.OptEventManagerAddr(s)})
	}
}

func centralFlag(cmd *cobra.Command) {
	if cmd.Flags().Changed("central") {
		b, _ := cmd.Flags().GetBool("central")
		cfg.Update([]config.Option{config.OptSiteCentral(b)})
	}
}

func siteFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("site")
	if s != "" {
		cfg.Update([]config.Option{config.OptSiteName(s)})
	}
}

func pluginDirFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("plugin-dir")
	if s != "" {
		cfg.Update([]config.Option{config.OptAgentPluginDir(s)})
	}
}

func eventManagerFlag(cmd *cobra.Command) {
	s, _ := cmd.Flags().GetString("event-manager")
	if s != "" {
		cfg.Update([]config.Option{config.OptAgentEventManagerURL(s)})
	}
}

func jobsFlag(cmd *cobra.Command) {
	i, _ := cmd.Flags().GetInt("jobs")
	if i > 0 {
		cfg.Update([]config.Option{config.OptJobsNumber(i)})
	}
}
