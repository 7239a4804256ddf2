package ioplugin

import (
	"context"
	"time"

	"github.com/warno/warno/pkg/plugin"
)

// Attributes of the heartbeat plugin.
const (
	AttrUptime = "uptime"
	AttrState  = "state"
)

// Heartbeat reports how long the agent has been running and a textual
// state, so that the numeric and text paths of ingestion both get traffic.
type Heartbeat struct {
	builtin
}

// NewHeartbeat creates the plugin.
func NewHeartbeat(d plugin.Descriptor) (plugin.Plugin, error) {
	return &Heartbeat{builtin: newBuiltin(d, []string{AttrUptime, AttrState})}, nil
}

// Register implements plugin.Plugin.
func (h *Heartbeat) Register(context.Context) (plugin.Registration, error) {
	return h.registration(), nil
}

// Run implements plugin.Plugin.
func (h *Heartbeat) Run(
	ctx context.Context,
	out chan<- []byte,
	cfg plugin.RunConfig,
	ctrl <-chan plugin.Command,
) error {
	start := time.Now()
	state := h.option(cfg, "state")
	if state == "" {
		state = "alive"
	}
	return h.loop(ctx, ctrl, func(t time.Time) {
		if h.reports(AttrUptime) {
			emit(ctx, out, plugin.Event(AttrUptime, cfg.InstrumentID, t,
				t.Sub(start).Seconds()))
		}
		if h.reports(AttrState) {
			emit(ctx, out, plugin.Event(AttrState, cfg.InstrumentID, t, state))
		}
	})
}
