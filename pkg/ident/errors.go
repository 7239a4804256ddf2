package ident

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// UpstreamError is returned when the central facility cannot answer a
// delegated request.
func UpstreamError(code int, err error) error {
	return &gn.Error{
		Code: errcode.ResolveUpstreamError,
		Msg:  "Central facility did not resolve event code %d request",
		Vars: []any{code},
		Err:  fmt.Errorf("upstream resolution of code %d: %w", code, err),
	}
}

// BadUpstreamError is returned when the central facility answers with a
// record that does not match the request.
func BadUpstreamError(code int, details string) error {
	return &gn.Error{
		Code: errcode.ResolveUpstreamError,
		Msg:  "Bad answer from central facility for code %d: %s",
		Vars: []any{code, details},
		Err:  fmt.Errorf("upstream resolution of code %d: %s", code, details),
	}
}

// OwnerError is returned when an instrument cannot be created because its
// site is unknown.
func OwnerError(name string, siteID int64) error {
	return &gn.Error{
		Code: errcode.ResolveOwnerError,
		Msg:  "Instrument <em>%s</em> needs a known site, got site_id %d",
		Vars: []any{name, siteID},
		Err:  fmt.Errorf("instrument %s: unknown owner site %d", name, siteID),
	}
}

// UnknownInstrumentError is returned when a message refers to an
// instrument that was never resolved at this tier.
func UnknownInstrumentError(id int64) error {
	return &gn.Error{
		Code: errcode.ResolveUnknownInstrumentError,
		Msg:  "Unknown instrument_id <em>%d</em>, resolve the instrument first",
		Vars: []any{id},
		Err:  fmt.Errorf("unknown instrument %d", id),
	}
}

// NotResolutionError is returned for codes the resolver does not handle.
func NotResolutionError(code int) error {
	return &gn.Error{
		Code: errcode.ResolveNotFoundError,
		Msg:  "Event code %d is not an identifier request",
		Vars: []any{code},
		Err:  fmt.Errorf("code %d is not an identifier request", code),
	}
}
