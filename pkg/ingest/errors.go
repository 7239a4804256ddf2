package ingest

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// UnknownCodeError is returned for an event code that was never allocated.
func UnknownCodeError(code int) error {
	return &gn.Error{
		Code: errcode.IngestUnknownCodeError,
		Msg:  "Unknown event code <em>%d</em>",
		Vars: []any{code},
		Err:  fmt.Errorf("unknown event code %d", code),
	}
}

// PersistError is returned when an observation cannot be stored.
func PersistError(code int, err error) error {
	return &gn.Error{
		Code: errcode.IngestPersistError,
		Msg:  "Cannot store event with code %d",
		Vars: []any{code},
		Err:  fmt.Errorf("store event code %d: %w", code, err),
	}
}
