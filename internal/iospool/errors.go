package iospool

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// OpenError is returned when the spool file cannot be opened.
func OpenError(path string, err error) error {
	return &gn.Error{
		Code: errcode.SpoolOpenError,
		Msg:  "Cannot open spool <em>%s</em>",
		Vars: []any{path},
		Err:  fmt.Errorf("open spool %s: %w", path, err),
	}
}

// WriteError is returned when the spool cannot be changed.
func WriteError(path string, err error) error {
	return &gn.Error{
		Code: errcode.SpoolWriteError,
		Msg:  "Cannot write to spool <em>%s</em>",
		Vars: []any{path},
		Err:  fmt.Errorf("write spool %s: %w", path, err),
	}
}

// ReadError is returned when the spool cannot be read.
func ReadError(path string, err error) error {
	return &gn.Error{
		Code: errcode.SpoolReadError,
		Msg:  "Cannot read spool <em>%s</em>",
		Vars: []any{path},
		Err:  fmt.Errorf("read spool %s: %w", path, err),
	}
}
