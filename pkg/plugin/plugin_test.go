package plugin_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/pkg/errcode"
	"github.com/warno/warno/pkg/plugin"
	"github.com/warno/warno/pkg/protocol"
)

type nopPlugin struct{ name string }

func (p nopPlugin) Name() string { return p.name }

func (p nopPlugin) Register(context.Context) (plugin.Registration, error) {
	return plugin.Registration{InstrumentName: "NOP"}, nil
}

func (p nopPlugin) Run(
	context.Context, chan<- []byte, plugin.RunConfig, <-chan plugin.Command,
) error {
	return nil
}

func TestRegistryBuild(t *testing.T) {
	reg := plugin.NewRegistry()
	reg.Add(plugin.KindHeartbeat, func(d plugin.Descriptor) (plugin.Plugin, error) {
		return nopPlugin{name: d.Name}, nil
	})
	reg.Add("EXEC", func(d plugin.Descriptor) (plugin.Plugin, error) {
		return nopPlugin{name: d.Name}, nil
	})
	assert.Equal(t, []string{"exec", "heartbeat"}, reg.Kinds())

	tests := []struct {
		msg  string
		d    plugin.Descriptor
		err  bool
		code gn.ErrorCode
	}{
		{"builtin", plugin.Descriptor{Name: "hb", Kind: "heartbeat", Instrument: "HB"}, false, 0},
		{"kind is case insensitive", plugin.Descriptor{Name: "hb", Kind: " Heartbeat ", Instrument: "HB"}, false, 0},
		{"exec", plugin.Descriptor{Name: "kazr", Kind: "exec", Command: "/bin/kazr",
			Register: []string{"register"}, Run: []string{"run"}}, false, 0},
		{"exec without run", plugin.Descriptor{Name: "kazr", Kind: "exec", Command: "/bin/kazr",
			Register: []string{"register"}}, true, errcode.PluginUnknownError},
		{"exec without register", plugin.Descriptor{Name: "kazr", Kind: "exec", Command: "/bin/kazr",
			Run: []string{"run"}}, true, errcode.PluginUnknownError},
		{"builtin without instrument", plugin.Descriptor{Name: "hb", Kind: "heartbeat"}, true,
			errcode.PluginUnknownError},
		{"unknown kind", plugin.Descriptor{Name: "x", Kind: "python"}, true, errcode.PluginUnknownError},
	}

	for _, v := range tests {
		p, err := reg.Build(v.d)
		if v.err {
			require.Error(t, err, v.msg)
			gnErr, ok := err.(*gn.Error)
			require.True(t, ok, v.msg)
			assert.Equal(t, v.code, gnErr.Code, v.msg)
			continue
		}
		require.NoError(t, err, v.msg)
		assert.Equal(t, v.d.Name, p.Name(), v.msg)
	}
}

func TestEvent(t *testing.T) {
	ts := time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC)
	b := plugin.Event("cpu_usage", 3, ts, 12.5)

	ev, err := protocol.DecodePluginEvent(b)
	require.NoError(t, err)
	assert.Equal(t, "cpu_usage", ev.Event)

	var data protocol.GenericEvent
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, int64(3), data.InstrumentID)
	assert.Equal(t, ts, data.Time.Time)
	v, ok := data.Float()
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)
}

func TestStopped(t *testing.T) {
	ctrl := make(chan plugin.Command, 1)
	assert.False(t, plugin.Stopped(ctrl))

	ctrl <- plugin.Command{Name: "reload"}
	assert.False(t, plugin.Stopped(ctrl))

	ctrl <- plugin.Shutdown
	assert.True(t, plugin.Stopped(ctrl))

	close(ctrl)
	assert.True(t, plugin.Stopped(ctrl))
}
