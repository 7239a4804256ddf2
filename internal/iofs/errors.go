package iofs

import (
	"fmt"
	"runtime"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// CreateDirError is returned when a config, cache, log or plugin directory
// cannot be created.
func CreateDirError(dir string, err error) error {
	return &gn.Error{
		Code: errcode.CreateDirError,
		Msg:  "Cannot create directory <em>%s</em>, check permissions",
		Vars: []any{dir},
		Err:  fmt.Errorf("%s: cannot create directory: %w", caller(), err),
	}
}

// WriteFileError is returned when the default config or an example plugin
// descriptor cannot be written.
func WriteFileError(path string, err error) error {
	return &gn.Error{
		Code: errcode.WriteFileError,
		Msg:  "Cannot write <em>%s</em>",
		Vars: []any{path},
		Err:  fmt.Errorf("%s: cannot write file: %w", caller(), err),
	}
}

// ReadFileError is returned when the config file cannot be read or
// decoded.
func ReadFileError(path string, err error) error {
	return &gn.Error{
		Code: errcode.ReadFileError,
		Msg:  "Cannot read <em>%s</em>, fix or remove it to get defaults",
		Vars: []any{path},
		Err:  fmt.Errorf("%s: cannot read %s: %w", caller(), path, err),
	}
}

// caller names the function that asked for the error.
func caller() string {
	pc, _, _, _ := runtime.Caller(2)
	if fn := runtime.FuncForPC(pc); fn != nil {
		return fn.Name()
	}
	return "unknown"
}
