// Package ioplugin implements plugin kinds known to the agent: external
// executables and built-in host collectors.
package ioplugin

import (
	"context"
	"time"

	"github.com/warno/warno/pkg/plugin"
)

const defaultInterval = 10 * time.Second

// NewRegistry returns a registry with every plugin kind of this package.
func NewRegistry() *plugin.Registry {
	res := plugin.NewRegistry()
	res.Add(plugin.KindExec, NewExec)
	res.Add(plugin.KindSystemStatus, NewSystemStatus)
	res.Add(plugin.KindHeartbeat, NewHeartbeat)
	return res
}

// builtin carries what built-in plugins share.
type builtin struct {
	d     plugin.Descriptor
	attrs []string
}

func newBuiltin(d plugin.Descriptor, attrs []string) builtin {
	if len(d.Attributes) > 0 {
		attrs = d.Attributes
	}
	if d.Interval <= 0 {
		d.Interval = defaultInterval
	}
	return builtin{d: d, attrs: attrs}
}

func (b builtin) Name() string {
	return b.d.Name
}

func (b builtin) registration() plugin.Registration {
	return plugin.Registration{
		InstrumentName: b.d.Instrument,
		AttributeNames: b.attrs,
	}
}

func (b builtin) reports(attr string) bool {
	for _, v := range b.attrs {
		if v == attr {
			return true
		}
	}
	return false
}

// option returns a run option, falling back to the descriptor.
func (b builtin) option(cfg plugin.RunConfig, key string) string {
	if v, ok := cfg.Options[key]; ok {
		return v
	}
	return b.d.Options[key]
}

// loop calls sample every interval until shutdown. The first sample is
// taken immediately.
func (b builtin) loop(
	ctx context.Context,
	ctrl <-chan plugin.Command,
	sample func(time.Time),
) error {
	ticker := time.NewTicker(b.d.Interval)
	defer ticker.Stop()

	sample(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-ctrl:
			if !ok || cmd.Name == plugin.Shutdown.Name {
				return nil
			}
		case t := <-ticker.C:
			sample(t)
		}
	}
}

// emit puts an event on out unless ctx is done.
func emit(ctx context.Context, out chan<- []byte, ev []byte) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
