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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/gnames/gnfmt"
	"github.com/spf13/cobra"
	"github.com/warno/warno/internal/ioagent"
	"github.com/warno/warno/internal/ioclient"
	"github.com/warno/warno/internal/iofs"
	"github.com/warno/warno/internal/ioplugin"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/internal/iosupervisor"
	"github.com/warno/warno/pkg/config"
)

// getAgentCmd returns the command that runs the plugin coordinator.
func getAgentCmd() *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the agent that coordinates instrument plugins",
		Long: `Agent discovers plugin descriptors, obtains the site identifier
from the local Event-Manager, registers every plugin and forwards the
events the plugins produce.

Plugin descriptors are YAML files in agent.plugin_dir (relative paths
are resolved against ~/.config/warno). Example descriptors are written
there when the directory does not exist.

Events that cannot be delivered are kept in the agent spool and
replayed periodically. The agent stops on SIGINT or SIGTERM, or when
every plugin exited.

Examples:
  warno agent
  warno agent --plugin-dir /etc/warno/plugins
  warno agent --event-manager http://em:8080/eventmanager/event`,
		RunE: runAgent,
	}

	agentCmd.Flags().StringP("plugin-dir", "p", "", "directory with plugin descriptors")
	agentCmd.Flags().StringP("event-manager", "e", "", "ingestion URL of the local Event-Manager")
	agentCmd.Flags().StringP("site", "s", "", "short name of the site")

	return agentCmd
}

func runAgent(cmd *cobra.Command, _ []string) error {
	applyFlags(cmd, pluginDirFlag, eventManagerFlag, siteFlag)

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	dir := config.PluginDirPath(cfg)
	if err := iofs.EnsurePluginDir(dir); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	plugins, err := iosupervisor.Discover(dir, ioplugin.NewRegistry())
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	gn.Info("Found <em>%d</em> plugins in <em>%s</em>", len(plugins), dir)

	spool, err := iospool.Open(config.AgentSpoolFilePath(cfg.HomeDir))
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	defer spool.Close()

	client := ioclient.New(cfg.Agent.EventManagerURL, cfg.Transport, cfg.Site.CertVerify)
	a := ioagent.New(cfg, client, spool)
	if err = a.Run(ctx, plugins); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	sum := a.Summary()
	gn.Info(
		"Agent stopped after %s: forwarded <em>%s</em>, "+
			"spooled <em>%s</em>, dropped <em>%s</em> events",
		gnfmt.TimeString(sum.RunTime.Seconds()),
		humanize.Comma(sum.Forwarded),
		humanize.Comma(sum.Spooled),
		humanize.Comma(sum.Dropped),
	)
	return nil
}
