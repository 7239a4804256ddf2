package iologger

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// CreateLogFileError is returned when the log file cannot be opened for
// appending.
func CreateLogFileError(path string, err error) error {
	return &gn.Error{
		Code: errcode.CreateLogFileError,
		Msg:  "Cannot open log file <em>%s</em>, set log.destination to stderr to continue",
		Vars: []any{path},
		Err:  fmt.Errorf("open log file %s: %w", path, err),
	}
}
