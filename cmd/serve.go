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

	"github.com/gnames/gn"
	"github.com/spf13/cobra"
	"github.com/warno/warno/internal/ioclient"
	"github.com/warno/warno/internal/iomanager"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/internal/iostore"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/ingest"
	"github.com/warno/warno/pkg/protocol"
)

// getServeCmd returns the command that runs the Event-Manager.
func getServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Event-Manager ingestion service",
		Long: `Serve runs the Event-Manager, the HTTP service that receives
events from agents and sites.

At the central facility (site.central: true) the Event-Manager
allocates site, instrument and event code identifiers and stores
every event in PostgreSQL.

At a site it resolves identifiers through the central facility,
stores events locally and forwards them upstream. Events that
cannot be forwarded are kept in a spool and replayed periodically.
A site refuses to start without site.central_url.

Endpoints:
  POST /eventmanager/event   ingest one event
  GET  /eventmanager         service banner and counters
  GET  /metrics              Prometheus metrics

Examples:
  warno serve
  warno serve --addr :9090
  warno serve --central`,
		RunE: runServe,
	}

	serveCmd.Flags().StringP("addr", "a", "", "listen address of the service")
	serveCmd.Flags().BoolP("central", "c", false, "run as the central facility")
	serveCmd.Flags().StringP("site", "s", "", "short name of the site")

	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	applyFlags(cmd, addrFlag, centralFlag, siteFlag)
	if err := cfg.CheckTier(); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	op, err := connectDB(ctx)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	defer op.Close()

	spool, err := iospool.Open(config.SpoolFilePath(cfg.HomeDir))
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	defer spool.Close()

	var upstream protocol.Sender
	if url := cfg.UpstreamURL(); url != "" {
		upstream = ioclient.New(url, cfg.Transport, cfg.Site.CertVerify)
		gn.Info("Site <em>%s</em> forwards to <em>%s</em>", cfg.Site.Name, url)
	} else {
		gn.Info("Running as the central facility")
	}

	router := ingest.New(iostore.New(op.Pool()), upstream, spool)
	m := iomanager.New(cfg, router, upstream, spool)

	gn.Info("Event-Manager listens on <em>%s</em>", cfg.EventManager.Addr)
	if err = m.Run(ctx); err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	gn.Info("Event-Manager stopped")
	return nil
}
