package plugin

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// UnknownKindError is returned for a descriptor of a kind with no factory.
func UnknownKindError(name, kind string) error {
	return &gn.Error{
		Code: errcode.PluginUnknownError,
		Msg:  "Plugin <em>%s</em> has unknown kind <em>%s</em>",
		Vars: []any{name, kind},
		Err:  fmt.Errorf("plugin %s: unknown kind %q", name, kind),
	}
}

// IncompleteError is returned when a descriptor lacks a required field.
func IncompleteError(name, field string) error {
	return &gn.Error{
		Code: errcode.PluginUnknownError,
		Msg:  "Plugin <em>%s</em> does not declare <em>%s</em>",
		Vars: []any{name, field},
		Err:  fmt.Errorf("plugin %s: missing %s", name, field),
	}
}

// RegisterError is returned when a plugin fails to register.
func RegisterError(name string, err error) error {
	return &gn.Error{
		Code: errcode.PluginRegisterError,
		Msg:  "Plugin <em>%s</em> failed to register",
		Vars: []any{name},
		Err:  fmt.Errorf("register plugin %s: %w", name, err),
	}
}

// RunError is returned when a plugin stops with an error.
func RunError(name string, err error) error {
	return &gn.Error{
		Code: errcode.PluginRunError,
		Msg:  "Plugin <em>%s</em> stopped with error",
		Vars: []any{name},
		Err:  fmt.Errorf("run plugin %s: %w", name, err),
	}
}
