package plugin

import (
	"sort"
	"strings"
	"time"
)

// Known plugin kinds.
const (
	KindExec         = "exec"
	KindSystemStatus = "system_status"
	KindHeartbeat    = "heartbeat"
)

// Descriptor is the YAML file that declares a plugin.
type Descriptor struct {
	// Name of the plugin. Defaults to the descriptor file name.
	Name string `yaml:"name"`

	// Kind selects the factory that builds the plugin.
	Kind string `yaml:"kind"`

	// Instrument is the short name reported by built-in plugins.
	Instrument string `yaml:"instrument"`

	// Attributes reported by built-in plugins.
	Attributes []string `yaml:"attributes"`

	// Command is the executable of an exec plugin.
	Command string `yaml:"command"`

	// Register holds arguments that make the executable print its
	// registration.
	Register []string `yaml:"register"`

	// Run holds arguments that make the executable stream events.
	Run []string `yaml:"run"`

	// Interval between two samples of built-in plugins.
	Interval time.Duration `yaml:"interval"`

	// Options are passed to the plugin in RunConfig.
	Options map[string]string `yaml:"options"`

	// Path of the descriptor file.
	Path string `yaml:"-"`
}

// Factory builds a plugin from a descriptor.
type Factory func(d Descriptor) (Plugin, error)

// Registry maps plugin kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Add registers a factory for kind, replacing an existing one.
func (r *Registry) Add(kind string, f Factory) {
	r.factories[strings.ToLower(kind)] = f
}

// Kinds returns the registered kinds in alphabetical order.
func (r *Registry) Kinds() []string {
	res := make([]string, 0, len(r.factories))
	for k := range r.factories {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Build checks the descriptor and creates the plugin it declares.
func (r *Registry) Build(d Descriptor) (Plugin, error) {
	d.Kind = strings.ToLower(strings.TrimSpace(d.Kind))
	f, ok := r.factories[d.Kind]
	if !ok {
		return nil, UnknownKindError(d.Name, d.Kind)
	}
	if err := d.Check(); err != nil {
		return nil, err
	}
	return f(d)
}

// Check verifies that the descriptor declares both capabilities a plugin
// needs: registration and a run loop.
func (d Descriptor) Check() error {
	switch d.Kind {
	case KindExec:
		if d.Command == "" {
			return IncompleteError(d.Name, "command")
		}
		if len(d.Register) == 0 {
			return IncompleteError(d.Name, "register")
		}
		if len(d.Run) == 0 {
			return IncompleteError(d.Name, "run")
		}
	default:
		if d.Instrument == "" {
			return IncompleteError(d.Name, "instrument")
		}
	}
	return nil
}
