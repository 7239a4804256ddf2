package iosupervisor

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// DirError is returned when the plugin directory cannot be listed.
func DirError(dir string, err error) error {
	return &gn.Error{
		Code: errcode.PluginDirError,
		Msg:  "Cannot read plugin directory <em>%s</em>",
		Vars: []any{dir},
		Err:  fmt.Errorf("read plugin dir %s: %w", dir, err),
	}
}

// NotFoundError is returned when no started plugin has the given name.
func NotFoundError(name string) error {
	return &gn.Error{
		Code: errcode.PluginUnknownError,
		Msg:  "No running plugin <em>%s</em>",
		Vars: []any{name},
		Err:  fmt.Errorf("plugin %s is not started", name),
	}
}
