package ioagent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/warno/warno/pkg/protocol"
)

var errStopped = errors.New("agent stopped before delivery")

// handle turns one plugin event into an envelope and forwards it.
func (a *Agent) handle(ctx context.Context, raw []byte) {
	ev, err := protocol.DecodePluginEvent(raw)
	if err != nil {
		a.dropped.Add(1)
		slog.Error("Plugin produced a malformed event", "error", err)
		return
	}
	data := protocol.WithSiteID(ev.Data, a.SiteID())

	env, err := a.translate(ctx, ev.Event, data)
	if err != nil {
		if protocol.IsRejected(err) {
			a.reject(ev.Event, 0, err)
			return
		}
		slog.Error("Cannot resolve event code", "event", ev.Event, "error", err)
		a.spoolEvent(ctx, ev.Event, data, err)
		return
	}

	if _, err = a.client.Send(ctx, env); err != nil {
		if protocol.IsRejected(err) {
			a.reject(ev.Event, env.EventCode, err)
			return
		}
		slog.Warn("Cannot forward event",
			"event", ev.Event, "event_code", env.EventCode, "error", err)
		a.spoolEnvelope(ctx, env, err)
		return
	}
	a.forwarded.Add(1)
}

// reject drops an event the Event-Manager refused. Spooling it would only
// repeat the refusal.
func (a *Agent) reject(name string, code int, cause error) {
	a.dropped.Add(1)
	slog.Error("Event-Manager rejected event, dropping it",
		"event", name, "event_code", code, "error", cause)
}

// keep spools a plugin event without sending it.
func (a *Agent) keep(ctx context.Context, raw []byte) {
	ev, err := protocol.DecodePluginEvent(raw)
	if err != nil {
		a.dropped.Add(1)
		slog.Error("Plugin produced a malformed event", "error", err)
		return
	}
	a.spoolEvent(ctx, ev.Event, protocol.WithSiteID(ev.Data, a.SiteID()), errStopped)
}

func (a *Agent) spoolEvent(ctx context.Context, name string, data json.RawMessage, cause error) {
	if a.spool == nil {
		a.dropped.Add(1)
		return
	}
	err := a.spool.PutEvent(context.WithoutCancel(ctx), name, data, cause.Error())
	if err != nil {
		a.dropped.Add(1)
		slog.Error("Event is lost", "event", name, "error", err)
		return
	}
	a.spooled.Add(1)
}

func (a *Agent) spoolEnvelope(ctx context.Context, env *protocol.Envelope, cause error) {
	if a.spool == nil {
		a.dropped.Add(1)
		return
	}
	err := a.spool.Put(context.WithoutCancel(ctx), env, cause.Error())
	if err != nil {
		a.dropped.Add(1)
		slog.Error("Envelope is lost", "event_code", env.EventCode, "error", err)
		return
	}
	a.spooled.Add(1)
}
