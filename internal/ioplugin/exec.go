package ioplugin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/warno/warno/pkg/plugin"
)

const maxLineSize = 4 << 20

// Exec runs a plugin as a separate executable.
//
// The register arguments make it print a Registration as JSON. The run
// arguments make it stream events on stdout, one JSON object per line.
// Its stdin receives the RunConfig as the first line and then control
// commands, one per line. Stdin is closed after a shutdown command.
type Exec struct {
	d plugin.Descriptor
}

// NewExec creates an exec plugin.
func NewExec(d plugin.Descriptor) (plugin.Plugin, error) {
	return &Exec{d: d}, nil
}

// Name implements plugin.Plugin.
func (e *Exec) Name() string {
	return e.d.Name
}

// Register runs the executable with register arguments.
func (e *Exec) Register(ctx context.Context) (plugin.Registration, error) {
	var res plugin.Registration
	cmd := exec.CommandContext(ctx, e.d.Command, e.d.Register...)
	cmd.Env = append(os.Environ(), e.env(plugin.RunConfig{})...)
	cmd.Stderr = &lineLogger{name: e.Name()}

	b, err := cmd.Output()
	if err != nil {
		return res, plugin.RegisterError(e.Name(), err)
	}
	if err = json.Unmarshal(bytes.TrimSpace(b), &res); err != nil {
		return res, plugin.RegisterError(e.Name(), err)
	}
	if res.InstrumentName == "" {
		return res, plugin.RegisterError(e.Name(),
			fmt.Errorf("registration has no instrument name"))
	}
	return res, nil
}

// Run starts the executable with run arguments and relays its events. The
// process is asked to stop with a shutdown command, it is never killed.
func (e *Exec) Run(
	ctx context.Context,
	out chan<- []byte,
	cfg plugin.RunConfig,
	ctrl <-chan plugin.Command,
) error {
	cmd := exec.Command(e.d.Command, e.d.Run...)
	cmd.Env = append(os.Environ(), e.env(cfg)...)
	cmd.Stderr = &lineLogger{name: e.Name()}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return plugin.RunError(e.Name(), err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return plugin.RunError(e.Name(), err)
	}
	if err = cmd.Start(); err != nil {
		return plugin.RunError(e.Name(), err)
	}
	slog.Info("Started plugin process", "plugin", e.Name(), "pid", cmd.Process.Pid)

	done := make(chan struct{})
	go e.control(ctx, stdin, cfg, ctrl, done)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		ev := make([]byte, len(line))
		copy(ev, line)
		emit(ctx, out, ev)
	}
	scanErr := sc.Err()
	if scanErr != nil {
		// keep the pipe drained so the process is not blocked on write
		_, _ = io.Copy(io.Discard, stdout)
	}
	close(done)

	err = cmd.Wait()
	if scanErr != nil {
		return plugin.RunError(e.Name(), scanErr)
	}
	if err != nil {
		return plugin.RunError(e.Name(), err)
	}
	return nil
}

func (e *Exec) control(
	ctx context.Context,
	stdin io.WriteCloser,
	cfg plugin.RunConfig,
	ctrl <-chan plugin.Command,
	done <-chan struct{},
) {
	defer stdin.Close()
	enc := json.NewEncoder(stdin)
	if err := enc.Encode(cfg); err != nil {
		slog.Warn("Cannot send run config", "plugin", e.Name(), "error", err)
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = enc.Encode(plugin.Shutdown)
			return
		case cmd, ok := <-ctrl:
			if !ok {
				cmd = plugin.Shutdown
			}
			if err := enc.Encode(cmd); err != nil {
				slog.Warn("Cannot send command", "plugin", e.Name(),
					"command", cmd.Name, "error", err)
			}
			if cmd.Name == plugin.Shutdown.Name {
				return
			}
		}
	}
}

// env exposes identifiers and options as WARNO_* variables.
func (e *Exec) env(cfg plugin.RunConfig) []string {
	var res []string
	if cfg.InstrumentID > 0 {
		res = append(res, "WARNO_INSTRUMENT_ID="+strconv.FormatInt(cfg.InstrumentID, 10))
	}
	if cfg.SiteID > 0 {
		res = append(res, "WARNO_SITE_ID="+strconv.FormatInt(cfg.SiteID, 10))
	}
	opts := make(map[string]string, len(e.d.Options)+len(cfg.Options))
	for k, v := range e.d.Options {
		opts[k] = v
	}
	for k, v := range cfg.Options {
		opts[k] = v
	}
	for k, v := range opts {
		res = append(res, "WARNO_OPT_"+strings.ToUpper(k)+"="+v)
	}
	return res
}

// lineLogger logs what a plugin process writes to stderr.
type lineLogger struct {
	name string
}

func (l *lineLogger) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			slog.Warn("Plugin stderr", "plugin", l.name, "line", line)
		}
	}
	return len(p), nil
}
