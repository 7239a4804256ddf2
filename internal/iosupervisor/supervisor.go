// Package iosupervisor discovers plugins and runs each of them in its own
// goroutine. All plugins share one outbound channel; each one has its own
// control channel.
package iosupervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/warno/warno/pkg/plugin"
	"golang.org/x/sync/errgroup"
)

// Status describes a started plugin.
type Status struct {
	Name         string    `json:"name"`
	InstrumentID int64     `json:"instrument_id"`
	Running      bool      `json:"running"`
	StartedAt    time.Time `json:"started_at"`
	StoppedAt    time.Time `json:"stopped_at,omitzero"`
	Error        string    `json:"error,omitempty"`
}

// Handle is a running plugin.
type Handle struct {
	p    plugin.Plugin
	cfg  plugin.RunConfig
	ctrl chan plugin.Command

	mu        sync.Mutex
	running   bool
	stopping  bool
	startedAt time.Time
	stoppedAt time.Time
	err       error
}

// Name returns the name of the plugin.
func (h *Handle) Name() string {
	return h.p.Name()
}

// Status returns the current state of the plugin.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	res := Status{
		Name:         h.p.Name(),
		InstrumentID: h.cfg.InstrumentID,
		Running:      h.running,
		StartedAt:    h.startedAt,
		StoppedAt:    h.stoppedAt,
	}
	if h.err != nil {
		res.Error = h.err.Error()
	}
	return res
}

// stop asks the plugin to shut down once.
func (h *Handle) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running || h.stopping {
		return
	}
	h.stopping = true
	h.ctrl <- plugin.Shutdown
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.stoppedAt = time.Now()
	h.err = err
}

// Supervisor owns the goroutines of started plugins.
type Supervisor struct {
	out chan<- []byte

	mu      sync.Mutex
	handles map[string]*Handle
	g       errgroup.Group
}

// New creates a supervisor that gives out to every plugin it starts.
func New(out chan<- []byte) *Supervisor {
	return &Supervisor{
		out:     out,
		handles: make(map[string]*Handle),
	}
}

// Start runs the plugin in a new goroutine. A panic in the plugin is
// recovered and recorded as its exit error.
func (s *Supervisor) Start(
	ctx context.Context,
	p plugin.Plugin,
	cfg plugin.RunConfig,
) *Handle {
	h := &Handle{
		p:         p,
		cfg:       cfg,
		ctrl:      make(chan plugin.Command, 1),
		running:   true,
		startedAt: time.Now(),
	}

	s.mu.Lock()
	s.handles[p.Name()] = h
	s.mu.Unlock()

	slog.Info("Starting plugin",
		"plugin", p.Name(), "instrument_id", cfg.InstrumentID)

	s.g.Go(func() error {
		err := run(ctx, h, s.out)
		h.finish(err)
		if err != nil {
			slog.Error("Plugin exited", "plugin", p.Name(), "error", err)
		} else {
			slog.Info("Plugin exited", "plugin", p.Name())
		}
		return nil
	})
	return h
}

func run(ctx context.Context, h *Handle, out chan<- []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = plugin.RunError(h.p.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	return h.p.Run(ctx, out, h.cfg, h.ctrl)
}

// Stop sends a shutdown command to the named plugin.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	h, ok := s.handles[name]
	s.mu.Unlock()
	if !ok {
		return NotFoundError(name)
	}
	h.stop()
	return nil
}

// StopAll sends a shutdown command to every running plugin.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	hs := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		hs = append(hs, h)
	}
	s.mu.Unlock()

	for _, h := range hs {
		h.stop()
	}
}

// Wait blocks until every started plugin returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = s.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		var names []string
		for _, v := range s.Status() {
			if v.Running {
				names = append(names, v.Name)
			}
		}
		slog.Warn("Plugins did not stop in time", "plugins", names)
		return ctx.Err()
	}
}

// Running returns the number of plugins that have not exited.
func (s *Supervisor) Running() int {
	var res int
	for _, v := range s.Status() {
		if v.Running {
			res++
		}
	}
	return res
}

// Status lists started plugins by name.
func (s *Supervisor) Status() []Status {
	s.mu.Lock()
	res := make([]Status, 0, len(s.handles))
	for _, h := range s.handles {
		res = append(res, h.Status())
	}
	s.mu.Unlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
