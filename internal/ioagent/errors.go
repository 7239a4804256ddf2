package ioagent

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// SiteIDError is returned when the site identifier cannot be obtained.
// The agent cannot start without it.
func SiteIDError(site string, attempts int, err error) error {
	msg := `Cannot get identifier of site <em>%s</em> after %d attempts

<em>How to fix:</em>
  1. Check that the Event-Manager is running
  2. Check agent.event_manager_url in the config file`

	return &gn.Error{
		Code: errcode.AgentSiteIDError,
		Msg:  msg,
		Vars: []any{site, attempts},
		Err:  fmt.Errorf("site id of %s: %w", site, err),
	}
}

// NoPluginsError is returned when there is no plugin to run.
func NoPluginsError(dir string) error {
	msg := `No usable plugins in <em>%s</em>`

	return &gn.Error{
		Code: errcode.AgentNoPluginsError,
		Msg:  msg,
		Vars: []any{dir},
		Err:  fmt.Errorf("no plugins in %s", dir),
	}
}
