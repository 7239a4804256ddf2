// Package ident resolves names of sites, instruments and telemetry
// attributes to their numeric identifiers.
//
// The central facility is authoritative and creates identifiers on first
// sight. A site tier is a caching proxy: it answers from its own store and
// delegates misses to the central facility, keeping the answer.
package ident

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/store"
)

// Resolver answers identifier requests (event codes 1, 2 and 3).
type Resolver struct {
	reg      store.Registry
	upstream protocol.Sender

	// instruments found in the registry, they are never removed
	known sync.Map
}

// New creates a resolver. A nil upstream makes the resolver the central
// facility.
func New(reg store.Registry, upstream protocol.Sender) *Resolver {
	return &Resolver{reg: reg, upstream: upstream}
}

// CheckInstrument returns an error unless the instrument with the given
// identifier is in the registry of this tier. A site tier never asks the
// central facility here: instruments reach its registry through their
// own identifier requests.
func (r *Resolver) CheckInstrument(ctx context.Context, id int64) error {
	if _, ok := r.known.Load(id); ok {
		return nil
	}
	inst, err := r.reg.InstrumentByID(ctx, id)
	if err != nil {
		return err
	}
	if inst == nil {
		return UnknownInstrumentError(id)
	}
	r.known.Store(id, struct{}{})
	return nil
}

// IsCentral reports whether the resolver allocates identifiers itself.
func (r *Resolver) IsCentral() bool {
	return r.upstream == nil
}

// Resolve dispatches an identifier request by its code and returns the
// response envelope.
func (r *Resolver) Resolve(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	switch env.EventCode {
	case protocol.CodeEventCodeRequest:
		return r.resolveEventCode(ctx, env)
	case protocol.CodeSiteIDRequest:
		return r.resolveSite(ctx, env)
	case protocol.CodeInstrumentIDRequest:
		return r.resolveInstrument(ctx, env)
	default:
		return nil, NotResolutionError(env.EventCode)
	}
}

func (r *Resolver) resolveSite(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	if err := env.Validate(protocol.ShapeSiteIDRequest); err != nil {
		return nil, err
	}
	var name string
	if err := env.Unmarshal(&name); err != nil {
		return nil, err
	}
	site, err := r.Site(ctx, env, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	return protocol.New(protocol.CodeSiteIDRequest, site)
}

// Site returns the site with the given short name. The envelope is what
// gets forwarded upstream on a local miss at a site tier.
func (r *Resolver) Site(
	ctx context.Context,
	env *protocol.Envelope,
	name string,
) (*protocol.Site, error) {
	site, err := r.reg.SiteByName(ctx, name)
	if err != nil || site != nil {
		return site, err
	}

	if r.IsCentral() {
		site, err = r.reg.CreateSite(ctx, protocol.Site{NameShort: name})
		if err != nil {
			return nil, err
		}
		slog.Info("Created site", "site_id", site.SiteID, "name", name)
		return site, nil
	}

	var remote protocol.Site
	if err = r.delegate(ctx, env, &remote); err != nil {
		return nil, err
	}
	if remote.SiteID <= 0 || remote.NameShort != name {
		return nil, BadUpstreamError(env.EventCode, "site record does not match request")
	}
	site, err = r.reg.UpsertSite(ctx, remote)
	if err != nil {
		return nil, err
	}
	slog.Info("Cached site from central facility",
		"site_id", site.SiteID, "name", name)
	return site, nil
}

func (r *Resolver) resolveInstrument(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	if err := env.Validate(protocol.ShapeInstrumentIDRequest); err != nil {
		return nil, err
	}
	var req protocol.InstrumentRequest
	if err := env.Unmarshal(&req); err != nil {
		return nil, err
	}
	req.NameShort = strings.TrimSpace(req.NameShort)
	inst, err := r.Instrument(ctx, env, req)
	if err != nil {
		return nil, err
	}
	return protocol.New(protocol.CodeInstrumentIDRequest, inst)
}

// Instrument returns the instrument with the requested short name. At the
// central facility an unknown instrument is created for the requested
// site, which must exist.
func (r *Resolver) Instrument(
	ctx context.Context,
	env *protocol.Envelope,
	req protocol.InstrumentRequest,
) (*protocol.Instrument, error) {
	inst, err := r.reg.InstrumentByName(ctx, req.NameShort)
	if err != nil || inst != nil {
		return inst, err
	}

	if r.IsCentral() {
		if req.SiteID <= 0 {
			return nil, OwnerError(req.NameShort, req.SiteID)
		}
		site, err := r.reg.SiteByID(ctx, req.SiteID)
		if err != nil {
			return nil, err
		}
		if site == nil {
			return nil, OwnerError(req.NameShort, req.SiteID)
		}
		inst, err = r.reg.CreateInstrument(ctx, protocol.Instrument{
			SiteID:    req.SiteID,
			NameShort: req.NameShort,
			Latitude:  site.Latitude,
			Longitude: site.Longitude,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Created instrument",
			"instrument_id", inst.InstrumentID, "name", req.NameShort,
			"site_id", req.SiteID)
		return inst, nil
	}

	var remote protocol.Instrument
	if err = r.delegate(ctx, env, &remote); err != nil {
		return nil, err
	}
	if remote.InstrumentID <= 0 || remote.NameShort != req.NameShort {
		return nil, BadUpstreamError(env.EventCode,
			"instrument record does not match request")
	}
	inst, err = r.reg.UpsertInstrument(ctx, remote)
	if err != nil {
		return nil, err
	}
	slog.Info("Cached instrument from central facility",
		"instrument_id", inst.InstrumentID, "name", req.NameShort)
	return inst, nil
}

func (r *Resolver) resolveEventCode(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	if err := env.Validate(protocol.ShapeEventCodeRequest); err != nil {
		return nil, err
	}
	var req protocol.EventCodeRequest
	if err := env.Unmarshal(&req); err != nil {
		return nil, err
	}
	req.Description = strings.TrimSpace(req.Description)

	if err := r.CheckInstrument(ctx, req.InstrumentID); err != nil {
		return nil, err
	}
	ec, err := r.EventCode(ctx, env, req.Description)
	if err != nil {
		return nil, err
	}

	ref, err := r.reg.EnsureDataReference(ctx, req.InstrumentID, req.Description)
	if err != nil {
		return nil, err
	}
	slog.Debug("Data reference",
		"instrument_id", ref.InstrumentID, "description", ref.Description,
		"special", ref.Special)

	return protocol.New(ec.Code, protocol.EventCodeRequest{
		Description:  ec.Description,
		InstrumentID: req.InstrumentID,
	})
}

// EventCode returns the code of an attribute description, allocating a
// dynamic code at the central facility.
func (r *Resolver) EventCode(
	ctx context.Context,
	env *protocol.Envelope,
	desc string,
) (*store.EventCode, error) {
	ec, err := r.reg.EventCodeByDescription(ctx, desc)
	if err != nil || ec != nil {
		return ec, err
	}

	if r.IsCentral() {
		ec, err = r.reg.AllocateEventCode(ctx, desc)
		if err != nil {
			return nil, err
		}
		slog.Info("Allocated event code", "event_code", ec.Code, "description", desc)
		return ec, nil
	}

	resp, err := r.upstream.Send(ctx, env)
	if err != nil {
		return nil, UpstreamError(env.EventCode, err)
	}
	var remote protocol.EventCodeRequest
	if err = resp.Unmarshal(&remote); err != nil {
		return nil, UpstreamError(env.EventCode, err)
	}
	if resp.EventCode <= 0 || remote.Description != desc {
		return nil, BadUpstreamError(env.EventCode,
			"event code does not match request")
	}
	ec, err = r.reg.UpsertEventCode(ctx, store.EventCode{
		Code:        resp.EventCode,
		Description: remote.Description,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Cached event code from central facility",
		"event_code", ec.Code, "description", desc)
	return ec, nil
}

// delegate forwards the original request upstream and decodes the data of
// the response into v.
func (r *Resolver) delegate(
	ctx context.Context,
	env *protocol.Envelope,
	v any,
) error {
	resp, err := r.upstream.Send(ctx, env)
	if err != nil {
		return UpstreamError(env.EventCode, err)
	}
	if resp.EventCode != env.EventCode {
		return BadUpstreamError(env.EventCode, "unexpected response code")
	}
	if err = resp.Unmarshal(v); err != nil {
		return UpstreamError(env.EventCode, err)
	}
	return nil
}
