package protocol

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// DecodeError is returned when a message is not valid JSON.
func DecodeError(err error) error {
	return &gn.Error{
		Code: errcode.ProtocolDecodeError,
		Msg:  "Cannot decode message",
		Err:  fmt.Errorf("cannot decode message: %w", err),
	}
}

// InvalidError is returned when a message does not match its schema.
func InvalidError(kind, details string) error {
	return &gn.Error{
		Code: errcode.ProtocolShapeError,
		Msg:  "Malformed <em>%s</em>: %s",
		Vars: []any{kind, details},
		Err:  fmt.Errorf("malformed %s: %s", kind, details),
	}
}

// ShapeError is returned when the data of an envelope does not have the
// fields its code requires.
func ShapeError(code int, field string, err error) error {
	return &gn.Error{
		Code: errcode.ProtocolShapeError,
		Msg:  "Bad <em>%s</em> for event code %d",
		Vars: []any{field, code},
		Err:  fmt.Errorf("event code %d, field %s: %w", code, field, err),
	}
}

// EncodeError is returned when data cannot be marshaled.
func EncodeError(code int, err error) error {
	return &gn.Error{
		Code: errcode.ProtocolDecodeError,
		Msg:  "Cannot encode data for event code %d",
		Vars: []any{code},
		Err:  fmt.Errorf("cannot encode event code %d: %w", code, err),
	}
}

// StatusError is returned for an unknown instrument log status.
func StatusError(status int) error {
	return &gn.Error{
		Code: errcode.ProtocolStatusError,
		Msg:  "Unknown instrument status <em>%d</em>",
		Vars: []any{status},
		Err:  fmt.Errorf("unknown instrument status %d", status),
	}
}

// IsRejected reports whether the receiving tier refused a message or the
// message is malformed. Such a message is never delivered by retrying.
func IsRejected(err error) bool {
	return IsClientError(err) || errcode.Has(err, errcode.TransportRejectedError)
}

// IsClientError reports whether err is caused by a malformed message.
func IsClientError(err error) bool {
	return errcode.Has(err,
		errcode.ProtocolDecodeError,
		errcode.ProtocolShapeError,
		errcode.ProtocolStatusError,
	)
}
