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
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/gnames/gn"
	"github.com/spf13/cobra"
	"github.com/warno/warno/internal/ioagent"
	"github.com/warno/warno/internal/ioclient"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/protocol"
)

// getSpoolCmd returns the command group for spool maintenance.
func getSpoolCmd() *cobra.Command {
	spoolCmd := &cobra.Command{
		Use:   "spool",
		Short: "Inspect or flush events waiting for delivery",
		Long: `Spool shows and delivers events that could not be forwarded.

The Event-Manager of a site keeps events the central facility did not
accept in ~/.cache/warno/spool.db. The agent keeps events the local
Event-Manager did not accept in ~/.cache/warno/agent-spool.db.
Use --agent to work with the spool of the agent.

Both services replay their spools periodically, these commands are
for inspection and manual recovery.

Examples:
  warno spool list
  warno spool list --agent --limit 50
  warno spool flush
  warno spool flush --agent --jobs 4`,
	}

	spoolCmd.PersistentFlags().Bool("agent", false, "use the spool of the agent")
	spoolCmd.AddCommand(getSpoolListCmd(), getSpoolFlushCmd())
	return spoolCmd
}

func getSpoolListCmd() *cobra.Command {
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show spooled events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSpoolList(cmd, os.Stdout, limit)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of entries to show, 0 for all")
	return listCmd
}

func getSpoolFlushCmd() *cobra.Command {
	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Deliver spooled events now",
		RunE:  runSpoolFlush,
	}
	flushCmd.Flags().IntP("jobs", "j", 0, "number of concurrent requests")
	return flushCmd
}

func spoolPath(cmd *cobra.Command) string {
	agent, _ := cmd.Flags().GetBool("agent")
	if agent {
		return config.AgentSpoolFilePath(cfg.HomeDir)
	}
	return config.SpoolFilePath(cfg.HomeDir)
}

func runSpoolList(cmd *cobra.Command, w io.Writer, limit int) error {
	ctx := context.Background()
	spool, err := iospool.Open(spoolPath(cmd))
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	defer spool.Close()

	sum, err := spool.Summary(ctx)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	if sum.Count == 0 {
		gn.Info("Spool <em>%s</em> is empty", spool.Path())
		return nil
	}

	entries, err := spool.List(ctx, limit)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	writeSpool(w, sum, entries)
	return nil
}

func writeSpool(w io.Writer, sum iospool.Summary, entries []iospool.Entry) {
	fmt.Fprintf(w, "%s entries, oldest %s\n",
		humanize.Comma(int64(sum.Count)), humanize.Time(sum.Oldest))

	codes := make([]int, 0, len(sum.Codes))
	for k := range sum.Codes {
		codes = append(codes, k)
	}
	slices.Sort(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "  event code %-6d %s\n", c, humanize.Comma(int64(sum.Codes[c])))
	}
	fmt.Fprintln(w)

	for _, e := range entries {
		what := fmt.Sprintf("%d", e.EventCode)
		if e.EventName != "" {
			what = e.EventName
		}
		fmt.Fprintf(w, "%-8d %-20s %-16s attempts: %d",
			e.ID, what, humanize.Time(e.CreatedAt), e.Attempts)
		if e.LastError != "" {
			fmt.Fprintf(w, " last error: %s", e.LastError)
		} else if e.Reason != "" {
			fmt.Fprintf(w, " reason: %s", e.Reason)
		}
		fmt.Fprintln(w)
	}
}

func runSpoolFlush(cmd *cobra.Command, _ []string) error {
	applyFlags(cmd, jobsFlag)
	ctx := context.Background()
	agent, _ := cmd.Flags().GetBool("agent")

	var sender protocol.Sender
	var translate iospool.Translator
	if agent {
		client := ioclient.New(cfg.Agent.EventManagerURL, cfg.Transport, cfg.Site.CertVerify)
		sender = client
		translate = ioagent.Translator(client)
	} else {
		url := cfg.UpstreamURL()
		if url == "" {
			gn.Info("The central facility does not forward events, nothing to flush")
			return nil
		}
		sender = ioclient.New(url, cfg.Transport, cfg.Site.CertVerify)
	}

	spool, err := iospool.Open(spoolPath(cmd))
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	defer spool.Close()

	sum, err := spool.Summary(ctx)
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}
	if sum.Count == 0 {
		gn.Info("Spool <em>%s</em> is empty", spool.Path())
		return nil
	}

	bar := newProgressBar(sum.Count, "Flushing: ")
	res, err := spool.Flush(ctx, sender, iospool.FlushOptions{
		Jobs:      cfg.JobsNumber,
		Progress:  func() { bar.Increment() },
		Translate: translate,
	})
	bar.Finish()
	if err != nil {
		gn.PrintErrorMessage(err)
		return err
	}

	gn.Info(
		"Delivered <em>%s</em>, failed <em>%s</em>, skipped <em>%s</em>, "+
			"dropped as rejected <em>%s</em> events",
		humanize.Comma(int64(res.Sent)),
		humanize.Comma(int64(res.Failed)),
		humanize.Comma(int64(res.Skipped)),
		humanize.Comma(int64(res.Rejected)),
	)
	return nil
}

// newProgressBar creates a progress bar that disappears when finished.
func newProgressBar(total int, prefix string) *pb.ProgressBar {
	bar := pb.Full.Start(total)
	bar.Set("prefix", prefix)
	bar.Set(pb.CleanOnFinish, true)
	return bar
}
