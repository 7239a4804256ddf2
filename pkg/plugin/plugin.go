// Package plugin describes instrument plugins run by the agent.
//
// A plugin registers once, telling which instrument it reads and which
// attributes it reports, and then runs until it receives a shutdown
// command, putting JSON events on a channel shared by all plugins.
package plugin

import (
	"context"
	"encoding/json"
	"time"
)

// Registration is what a plugin reports about itself before it runs.
type Registration struct {
	// InstrumentName is the short name of the instrument.
	InstrumentName string `json:"instrument_name"`

	// AttributeNames lists the attributes the plugin emits. They are
	// resolved to event codes before the plugin starts.
	AttributeNames []string `json:"event_code_names"`
}

// Command is a control message sent to a running plugin.
type Command struct {
	Name string `json:"name"`
}

// Shutdown asks a plugin to return from Run.
var Shutdown = Command{Name: "shutdown"}

// RunConfig carries identifiers resolved during registration.
type RunConfig struct {
	InstrumentID int64             `json:"instrument_id"`
	SiteID       int64             `json:"site_id"`
	Options      map[string]string `json:"options,omitempty"`
}

// Plugin is an adapter to one instrument.
type Plugin interface {
	// Name identifies the plugin in logs and in the status endpoint.
	Name() string

	// Register is called once before Run. It may open a connection to the
	// data source and fails if the source is not usable.
	Register(ctx context.Context) (Registration, error)

	// Run puts events on out until a Shutdown command arrives on ctrl or
	// ctx is done.
	Run(ctx context.Context, out chan<- []byte, cfg RunConfig, ctrl <-chan Command) error
}

// Event builds one outbound event with a single value.
func Event(name string, instrumentID int64, t time.Time, value any) []byte {
	res, _ := json.Marshal(map[string]any{
		"event": name,
		"data": map[string]any{
			"instrument_id": instrumentID,
			"time":          t.UTC().Format(time.RFC3339Nano),
			"value":         value,
		},
	})
	return res
}

// Stopped reports whether a shutdown command is waiting on ctrl. It never
// blocks.
func Stopped(ctrl <-chan Command) bool {
	select {
	case cmd, ok := <-ctrl:
		return !ok || cmd.Name == Shutdown.Name
	default:
		return false
	}
}
