package ioagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/pkg/plugin"
	"github.com/warno/warno/pkg/protocol"
)

type registered struct {
	p            plugin.Plugin
	instrumentID int64
}

// acquireSiteID asks for the identifier of the configured site with a
// fixed delay between attempts.
func (a *Agent) acquireSiteID(ctx context.Context) (int64, error) {
	name := a.cfg.Site.Name
	env, err := protocol.New(protocol.CodeSiteIDRequest, name)
	if err != nil {
		return 0, SiteIDError(name, 0, err)
	}

	tries := max(a.cfg.Agent.MaxConnAttempts, 1)
	interval := a.cfg.Agent.ConnRetryInterval
	var attempt int
	op := func() (int64, error) {
		attempt++
		resp, err := a.client.SendOnce(ctx, env)
		if err != nil {
			return 0, err
		}
		var site protocol.Site
		if err = resp.Unmarshal(&site); err != nil {
			return 0, err
		}
		if site.SiteID <= 0 {
			return 0, fmt.Errorf("site %s has no identifier", name)
		}
		return site.SiteID, nil
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithMaxElapsedTime(time.Duration(tries)*interval+time.Minute),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Cannot get site identifier",
				"site", name,
				"attempt", attempt,
				"max_attempts", tries,
				"retry_in", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		return 0, SiteIDError(name, attempt, err)
	}
	slog.Info("Got site identifier", "site", name, "site_id", res)
	return res, nil
}

// registerAll registers plugins one by one. A plugin that fails is
// logged and left out.
func (a *Agent) registerAll(ctx context.Context, plugins []plugin.Plugin) []registered {
	var res []registered
	for _, p := range plugins {
		r, err := a.register(ctx, p)
		if err != nil {
			slog.Error("Plugin is excluded", "plugin", p.Name(), "error", err)
			continue
		}
		res = append(res, r)
	}
	slog.Info("Registered plugins", "registered", len(res), "total", len(plugins))
	return res
}

func (a *Agent) register(ctx context.Context, p plugin.Plugin) (registered, error) {
	var res registered
	reg, err := p.Register(ctx)
	if err != nil {
		return res, err
	}

	env, err := protocol.New(protocol.CodeInstrumentIDRequest, protocol.InstrumentRequest{
		NameShort: reg.InstrumentName,
		SiteID:    a.SiteID(),
	})
	if err != nil {
		return res, err
	}
	resp, err := a.client.Send(ctx, env)
	if err != nil {
		return res, plugin.RegisterError(p.Name(), err)
	}
	var inst protocol.Instrument
	if err = resp.Unmarshal(&inst); err != nil {
		return res, plugin.RegisterError(p.Name(), err)
	}
	if inst.InstrumentID <= 0 {
		return res, plugin.RegisterError(p.Name(),
			fmt.Errorf("instrument %s has no identifier", reg.InstrumentName))
	}

	for _, attr := range reg.AttributeNames {
		if _, err = a.eventCode(ctx, inst.InstrumentID, attr); err != nil {
			return res, plugin.RegisterError(p.Name(), err)
		}
	}

	slog.Info("Registered plugin",
		"plugin", p.Name(),
		"instrument", inst.NameShort,
		"instrument_id", inst.InstrumentID,
		"attributes", len(reg.AttributeNames),
	)
	res.p = p
	res.instrumentID = inst.InstrumentID
	return res, nil
}

// eventCode returns the code of an attribute of an instrument, asking the
// Event-Manager on first use.
func (a *Agent) eventCode(ctx context.Context, instrumentID int64, name string) (int, error) {
	if code, ok := protocol.FixedCode(name); ok {
		return code, nil
	}

	key := codeKey{instrumentID: instrumentID, name: name}
	a.mu.RLock()
	code, ok := a.codes[key]
	a.mu.RUnlock()
	if ok {
		return code, nil
	}

	code, err := resolveCode(ctx, a.client, instrumentID, name)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	a.codes[key] = code
	a.mu.Unlock()
	return code, nil
}

// resolveCode sends an event code request.
func resolveCode(
	ctx context.Context,
	sender protocol.Sender,
	instrumentID int64,
	name string,
) (int, error) {
	env, err := protocol.New(protocol.CodeEventCodeRequest, protocol.EventCodeRequest{
		Description:  name,
		InstrumentID: instrumentID,
	})
	if err != nil {
		return 0, err
	}
	resp, err := sender.Send(ctx, env)
	if err != nil {
		return 0, err
	}
	if resp.EventCode <= protocol.CodeInstrumentIDRequest {
		return 0, fmt.Errorf("no event code for %s, got %d", name, resp.EventCode)
	}
	return resp.EventCode, nil
}

// instrumentOf reads the instrument identifier of event data.
func instrumentOf(data json.RawMessage) (int64, error) {
	var d struct {
		InstrumentID int64 `json:"instrument_id"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return 0, protocol.InvalidError("plugin event", err.Error())
	}
	if d.InstrumentID <= 0 {
		return 0, protocol.InvalidError("plugin event", "event has no instrument_id")
	}
	return d.InstrumentID, nil
}

func (a *Agent) translate(
	ctx context.Context,
	name string,
	data json.RawMessage,
) (*protocol.Envelope, error) {
	instrumentID, err := instrumentOf(data)
	if err != nil {
		return nil, err
	}
	code, err := a.eventCode(ctx, instrumentID, name)
	if err != nil {
		return nil, err
	}
	return &protocol.Envelope{EventCode: code, Data: data}, nil
}

// Translator resolves pending events of an agent spool through sender.
func Translator(sender protocol.Sender) iospool.Translator {
	return func(
		ctx context.Context,
		name string,
		data json.RawMessage,
	) (*protocol.Envelope, error) {
		code, ok := protocol.FixedCode(name)
		if !ok {
			instrumentID, err := instrumentOf(data)
			if err != nil {
				return nil, err
			}
			if code, err = resolveCode(ctx, sender, instrumentID, name); err != nil {
				return nil, err
			}
		}
		return &protocol.Envelope{EventCode: code, Data: data}, nil
	}
}
