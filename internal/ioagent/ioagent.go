// Package ioagent coordinates plugins of one site. The agent obtains the
// site identifier from the local Event-Manager, registers every plugin,
// starts them and forwards what they produce until it is told to stop.
package ioagent

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gnames/gnfmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/internal/iosupervisor"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/plugin"
	"github.com/warno/warno/pkg/protocol"
)

// State is a stage of the agent lifecycle.
type State int32

const (
	StateInit State = iota
	StateAcquiringSiteID
	StateRegisteringPlugins
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAcquiringSiteID:
		return "ACQUIRING_SITE_ID"
	case StateRegisteringPlugins:
		return "REGISTERING_PLUGINS"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	default:
		return "UNKNOWN"
	}
}

const (
	queueSize     = 1024
	shutdownGrace = 10 * time.Second
)

// Sender posts envelopes to the local Event-Manager. SendOnce makes a
// single attempt and is used where the caller retries on its own.
type Sender interface {
	protocol.Sender
	SendOnce(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error)
}

// Summary counts what the agent did.
type Summary struct {
	Forwarded int64         `json:"forwarded"`
	Spooled   int64         `json:"spooled"`
	Dropped   int64         `json:"dropped"`
	RunTime   time.Duration `json:"run_time"`
}

// Agent is the plugin coordinator.
type Agent struct {
	cfg    *config.Config
	client Sender
	spool  *iospool.Spool
	queue  chan []byte
	sup    *iosupervisor.Supervisor
	grace  time.Duration

	state   atomic.Int32
	siteID  atomic.Int64
	started time.Time

	mu    sync.RWMutex
	codes map[codeKey]int

	forwarded atomic.Int64
	spooled   atomic.Int64
	dropped   atomic.Int64

	reg *prometheus.Registry
}

type codeKey struct {
	instrumentID int64
	name         string
}

// New creates an agent. Envelopes that cannot be delivered are written to
// spool.
func New(cfg *config.Config, client Sender, spool *iospool.Spool) *Agent {
	queue := make(chan []byte, queueSize)
	res := &Agent{
		cfg:    cfg,
		client: client,
		spool:  spool,
		queue:  queue,
		sup:    iosupervisor.New(queue),
		grace:  shutdownGrace,
		codes:  make(map[codeKey]int),
		reg:    prometheus.NewRegistry(),
	}
	res.registerMetrics()
	return res
}

// State returns the current stage of the lifecycle.
func (a *Agent) State() State {
	return State(a.state.Load())
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
	slog.Info("Agent state changed", "state", s.String())
}

// SiteID returns the identifier of the site, zero before it is acquired.
func (a *Agent) SiteID() int64 {
	return a.siteID.Load()
}

// Supervisor gives access to started plugins.
func (a *Agent) Supervisor() *iosupervisor.Supervisor {
	return a.sup
}

// Summary returns the counters of the agent.
func (a *Agent) Summary() Summary {
	res := Summary{
		Forwarded: a.forwarded.Load(),
		Spooled:   a.spooled.Load(),
		Dropped:   a.dropped.Load(),
	}
	if !a.started.IsZero() {
		res.RunTime = time.Since(a.started)
	}
	return res
}

// Run drives the agent through its lifecycle. It returns when ctx is
// done or every plugin exited. A nil error means a clean shutdown.
func (a *Agent) Run(ctx context.Context, plugins []plugin.Plugin) error {
	a.started = time.Now()
	a.setState(StateInit)

	if !a.cfg.Agent.Run {
		slog.Info("Agent is disabled in configuration")
		a.setState(StateShuttingDown)
		return nil
	}
	if len(plugins) == 0 {
		a.setState(StateShuttingDown)
		return NoPluginsError(config.PluginDirPath(a.cfg))
	}

	if a.cfg.Agent.StatusAddr != "" {
		stop := a.serveStatus(ctx)
		defer stop()
	}

	a.setState(StateAcquiringSiteID)
	siteID, err := a.acquireSiteID(ctx)
	if err != nil {
		a.setState(StateShuttingDown)
		return err
	}
	a.siteID.Store(siteID)

	a.setState(StateRegisteringPlugins)
	regs := a.registerAll(ctx, plugins)
	if len(regs) == 0 {
		a.setState(StateShuttingDown)
		return NoPluginsError(config.PluginDirPath(a.cfg))
	}

	a.setState(StateRunning)
	pluginCtx, cancelPlugins := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPlugins()
	for _, r := range regs {
		a.sup.Start(pluginCtx, r.p, plugin.RunConfig{
			InstrumentID: r.instrumentID,
			SiteID:       siteID,
		})
	}

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Go(func() { a.replayLoop(runCtx) })
	a.drain(runCtx)
	stop()

	a.setState(StateShuttingDown)
	a.sup.StopAll()
	stopped := make(chan struct{})
	wg.Go(func() { a.keepRest(ctx, stopped) })
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.grace)
	_ = a.sup.Wait(waitCtx)
	cancel()
	cancelPlugins()
	close(stopped)
	wg.Wait()

	sum := a.Summary()
	slog.Info("Agent stopped",
		"forwarded", sum.Forwarded,
		"spooled", sum.Spooled,
		"dropped", sum.Dropped,
		"run_time", gnfmt.TimeString(sum.RunTime.Seconds()),
	)
	return nil
}

// drain forwards queued events until ctx is done or no plugin is left.
// It never blocks on an empty queue.
func (a *Agent) drain(ctx context.Context) {
	for {
		select {
		case raw := <-a.queue:
			a.handle(ctx, raw)
			continue
		default:
		}

		if ctx.Err() != nil {
			return
		}
		if a.sup.Running() == 0 {
			a.drainRest(ctx)
			slog.Warn("All plugins exited")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.Agent.PollInterval):
		}
	}
}

// drainRest forwards events left by plugins that already exited.
func (a *Agent) drainRest(ctx context.Context) {
	for {
		select {
		case raw := <-a.queue:
			a.handle(ctx, raw)
		default:
			return
		}
	}
}

// keepRest spools events emitted while plugins stop, and what is left in
// the queue once they did, as pending events for a later replay.
func (a *Agent) keepRest(ctx context.Context, stopped <-chan struct{}) {
	for {
		select {
		case raw := <-a.queue:
			a.keep(ctx, raw)
		case <-stopped:
			for {
				select {
				case raw := <-a.queue:
					a.keep(ctx, raw)
				default:
					return
				}
			}
		}
	}
}

func (a *Agent) replayLoop(ctx context.Context) {
	interval := a.cfg.EventManager.ReplayInterval
	if a.spool == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := a.spool.Flush(ctx, a.client, iospool.FlushOptions{
				Jobs:      a.cfg.JobsNumber,
				Translate: a.translate,
			})
			if err != nil && ctx.Err() == nil {
				slog.Warn("Agent spool replay failed", "error", err)
			}
		}
	}
}

// Handler serves plugin status and metrics of the agent.
func (a *Agent) Handler() http.Handler {
	return a.setupRouter()
}
