// Package ingest routes envelopes received by an Event-Manager to the
// identifier resolver or to the observation stores, and forwards accepted
// observations from a site tier to the central facility.
package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/warno/warno/pkg/errcode"
	"github.com/warno/warno/pkg/ident"
	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/store"
)

// Stats are counters of a Router since its creation.
type Stats struct {
	Resolved  int64
	Stored    int64
	Forwarded int64
	Spooled   int64
	Rejected  int64
	Dropped   int64
}

// Router dispatches envelopes by event code.
type Router struct {
	st       store.Store
	resolver *ident.Resolver
	upstream protocol.Sender
	spool    store.Spooler

	resolved  atomic.Int64
	stored    atomic.Int64
	forwarded atomic.Int64
	spooled   atomic.Int64
	rejected  atomic.Int64
	dropped   atomic.Int64
}

// New creates a router. A nil upstream makes it the central facility,
// spool keeps observations that could not be forwarded and may be nil at
// the central facility.
func New(st store.Store, upstream protocol.Sender, spool store.Spooler) *Router {
	return &Router{
		st:       st,
		resolver: ident.New(st, upstream),
		upstream: upstream,
		spool:    spool,
	}
}

// IsCentral reports whether the router is at the central facility.
func (r *Router) IsCentral() bool {
	return r.upstream == nil
}

// Stats returns a snapshot of the counters.
func (r *Router) Stats() Stats {
	return Stats{
		Resolved:  r.resolved.Load(),
		Stored:    r.stored.Load(),
		Forwarded: r.forwarded.Load(),
		Spooled:   r.spooled.Load(),
		Rejected:  r.rejected.Load(),
		Dropped:   r.dropped.Load(),
	}
}

// Handle decodes a raw envelope and processes it. Identifier requests get
// the resolved record back, observations are echoed.
func (r *Router) Handle(ctx context.Context, raw []byte) (*protocol.Envelope, error) {
	env, err := protocol.Decode(raw)
	if err != nil {
		r.rejected.Add(1)
		return nil, err
	}
	res, err := r.Dispatch(ctx, env)
	if err != nil && IsClientError(err) {
		r.rejected.Add(1)
	}
	return res, err
}

// Dispatch processes a decoded envelope.
func (r *Router) Dispatch(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	if protocol.IsResolution(env.EventCode) {
		res, err := r.resolver.Resolve(ctx, env)
		if err != nil {
			return nil, err
		}
		r.resolved.Add(1)
		return res, nil
	}

	if err := r.store(ctx, env); err != nil {
		return nil, err
	}
	r.stored.Add(1)

	if !r.IsCentral() {
		r.forward(ctx, env)
	}
	return env, nil
}

func (r *Router) store(ctx context.Context, env *protocol.Envelope) error {
	switch env.EventCode {
	case protocol.CodePulseCapture:
		return r.storePulseCapture(ctx, env)
	case protocol.CodeInstrumentLog:
		return r.storeInstrumentLog(ctx, env)
	}

	ec, err := r.st.EventCodeByID(ctx, env.EventCode)
	if err != nil {
		return PersistError(env.EventCode, err)
	}
	if ec == nil {
		return UnknownCodeError(env.EventCode)
	}

	var head struct {
		InstrumentID int64 `json:"instrument_id"`
	}
	if err = env.Unmarshal(&head); err != nil {
		return err
	}
	if err = r.checkInstrument(ctx, env.EventCode, head.InstrumentID); err != nil {
		return err
	}

	// the classification made on first sight stays for the pair
	ref, err := r.st.EnsureDataReference(ctx, head.InstrumentID, ec.Description)
	if err != nil {
		return PersistError(env.EventCode, err)
	}
	if ref.Special {
		return r.storeWideRow(ctx, env, ec.Description)
	}
	return r.storeGeneric(ctx, env)
}

// checkInstrument rejects observations of instruments that were never
// resolved at this tier.
func (r *Router) checkInstrument(ctx context.Context, code int, id int64) error {
	err := r.resolver.CheckInstrument(ctx, id)
	if err == nil || IsClientError(err) {
		return err
	}
	return PersistError(code, err)
}

func (r *Router) storePulseCapture(ctx context.Context, env *protocol.Envelope) error {
	if err := env.Validate(protocol.ShapePulseCapture); err != nil {
		return err
	}
	var pc protocol.PulseCapture
	if err := env.Unmarshal(&pc); err != nil {
		return err
	}
	if err := r.checkInstrument(ctx, env.EventCode, pc.InstrumentID); err != nil {
		return err
	}
	return persisted(env.EventCode, r.st.SavePulseCapture(ctx, pc))
}

func (r *Router) storeInstrumentLog(ctx context.Context, env *protocol.Envelope) error {
	if err := env.Validate(protocol.ShapeInstrumentLog); err != nil {
		return err
	}
	var l protocol.InstrumentLog
	if err := env.Unmarshal(&l); err != nil {
		return err
	}
	if _, ok := protocol.StatusText(l.Status); !ok {
		return protocol.StatusError(l.Status)
	}
	if err := r.checkInstrument(ctx, env.EventCode, l.InstrumentID); err != nil {
		return err
	}
	return persisted(env.EventCode, r.st.SaveInstrumentLog(ctx, l))
}

func (r *Router) storeWideRow(
	ctx context.Context,
	env *protocol.Envelope,
	table string,
) error {
	if err := env.Validate(protocol.ShapeWideRow); err != nil {
		return err
	}
	var row protocol.WideRow
	if err := env.Unmarshal(&row); err != nil {
		return err
	}
	return persisted(env.EventCode, r.st.SaveWideRow(ctx, table, row))
}

func (r *Router) storeGeneric(ctx context.Context, env *protocol.Envelope) error {
	if err := env.Validate(protocol.ShapeGeneric); err != nil {
		return err
	}
	var ev protocol.GenericEvent
	if err := env.Unmarshal(&ev); err != nil {
		return err
	}

	if v, ok := ev.Float(); ok {
		err := r.st.SaveValue(ctx, env.EventCode, ev.InstrumentID, ev.Time.Time, v)
		return persisted(env.EventCode, err)
	}
	err := r.st.SaveText(ctx, env.EventCode, ev.InstrumentID, ev.Time.Time, ev.Text())
	return persisted(env.EventCode, err)
}

// forward sends an accepted observation upstream unchanged. Failures go to
// the spool and never fail the local write. An observation the central
// facility rejects is kept locally only.
func (r *Router) forward(ctx context.Context, env *protocol.Envelope) {
	_, err := r.upstream.Send(ctx, env)
	if err == nil {
		r.forwarded.Add(1)
		return
	}
	if protocol.IsRejected(err) {
		r.dropped.Add(1)
		slog.Error("Central facility rejected event, it is not forwarded",
			"event_code", env.EventCode, "error", err)
		return
	}

	slog.Warn("Cannot forward event to central facility",
		"event_code", env.EventCode, "error", err)
	if r.spool == nil {
		slog.Error("No spool configured, event is lost", "event_code", env.EventCode)
		return
	}
	// the request context may be done already, the spool write must not be
	if err = r.spool.Put(context.WithoutCancel(ctx), env, err.Error()); err != nil {
		slog.Error("Cannot spool event", "event_code", env.EventCode, "error", err)
		return
	}
	r.spooled.Add(1)
}

func persisted(code int, err error) error {
	if err == nil || IsClientError(err) {
		return err
	}
	return PersistError(code, err)
}

// IsClientError reports whether err is caused by the content of the
// message, so that retrying the same message cannot succeed.
func IsClientError(err error) bool {
	return protocol.IsClientError(err) || errcode.Has(err,
		errcode.StoreColumnError,
		errcode.IngestUnknownCodeError,
		errcode.ResolveOwnerError,
		errcode.ResolveUnknownInstrumentError,
	)
}

// IsUpstreamError reports whether err is caused by the central facility.
func IsUpstreamError(err error) bool {
	return errcode.Has(err, errcode.ResolveUpstreamError)
}
