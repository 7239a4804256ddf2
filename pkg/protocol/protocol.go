// Package protocol describes the envelopes exchanged between agents and
// event managers, and between site and central event managers.
//
// Every message is a JSON object {"event_code": int, "data": ...}. Codes
// 1-9999 are reserved for fixed operations, codes starting at
// FirstDynamicCode are allocated by the central facility for attributes
// declared by plugins.
package protocol

import (
	"bytes"
	"context"
	"encoding/json"
)

// Fixed event codes.
const (
	CodeEventCodeRequest    = 1
	CodeSiteIDRequest       = 2
	CodeInstrumentIDRequest = 3
	CodePulseCapture        = 4
	CodeInstrumentLog       = 5
	CodeProsensingPAF       = 6
	CodeIrisBite            = 7

	// MaxReservedCode is the last identifier of the reserved range.
	MaxReservedCode = 9999
	// FirstDynamicCode is the first identifier given to plugin attributes.
	FirstDynamicCode = MaxReservedCode + 1
)

// FixedCodes maps reserved codes to their descriptions. Descriptions of
// wide attribute sets match the names of their tables.
var FixedCodes = map[int]string{
	CodeEventCodeRequest:    "event_code_request",
	CodeSiteIDRequest:       "site_id_request",
	CodeInstrumentIDRequest: "instrument_id_request",
	CodePulseCapture:        "pulse_capture",
	CodeInstrumentLog:       "instrument_log",
	CodeProsensingPAF:       "prosensing_paf",
	CodeIrisBite:            "iris_bite",
}

// FixedCode returns the reserved code of a fixed event type. Identifier
// requests are not event types and are never returned.
func FixedCode(desc string) (int, bool) {
	for code, v := range FixedCodes {
		if v == desc && !IsResolution(code) {
			return code, true
		}
	}
	return 0, false
}

// IsResolution is true for codes answered by the identifier resolver.
func IsResolution(code int) bool {
	return code >= CodeEventCodeRequest && code <= CodeInstrumentIDRequest
}

// IsDynamic is true for codes outside of the reserved range.
func IsDynamic(code int) bool {
	return code >= FirstDynamicCode
}

// Envelope is the unit of the wire protocol.
type Envelope struct {
	EventCode int             `json:"event_code"`
	Data      json.RawMessage `json:"data"`
}

// New creates an envelope with data marshaled to JSON.
func New(code int, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, EncodeError(code, err)
	}
	return &Envelope{EventCode: code, Data: raw}, nil
}

// Decode parses and validates a raw envelope.
func Decode(b []byte) (*Envelope, error) {
	if err := validateEnvelope(b); err != nil {
		return nil, err
	}
	var res Envelope
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, DecodeError(err)
	}
	return &res, nil
}

// Bytes returns the JSON form of the envelope.
func (e *Envelope) Bytes() []byte {
	res, _ := json.Marshal(e)
	return res
}

// Unmarshal decodes the data of the envelope into v. Failures are shape
// errors.
func (e *Envelope) Unmarshal(v any) error {
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return ShapeError(e.EventCode, "data", err)
	}
	return nil
}

// PluginEvent is what a plugin puts on the outbound queue. Event is either
// a declared attribute name or the description of a fixed code.
type PluginEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodePluginEvent parses one line produced by a plugin.
func DecodePluginEvent(b []byte) (*PluginEvent, error) {
	if err := validatePluginEvent(b); err != nil {
		return nil, err
	}
	var res PluginEvent
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, DecodeError(err)
	}
	return &res, nil
}

// WithSiteID returns data with "site_id" set, leaving other fields as they
// are. Non-object data is returned unchanged.
func WithSiteID(data json.RawMessage, siteID int64) json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return data
	}
	id, _ := json.Marshal(siteID)
	m["site_id"] = id
	res, err := json.Marshal(m)
	if err != nil {
		return data
	}
	return res
}

// Sender delivers an envelope to another tier and returns its response.
type Sender interface {
	Send(ctx context.Context, env *Envelope) (*Envelope, error)
}
