package iomanager

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// ListenError is returned when the service cannot accept connections.
func ListenError(addr string, err error) error {
	msg := `Cannot listen on <em>%s</em>

<em>How to fix:</em>
  1. Check that no other process uses the address
  2. Change event_manager.addr in the config file`

	return &gn.Error{
		Code: errcode.ManagerListenError,
		Msg:  msg,
		Vars: []any{addr},
		Err:  fmt.Errorf("listen on %s: %w", addr, err),
	}
}
