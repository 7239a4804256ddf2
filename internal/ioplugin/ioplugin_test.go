package ioplugin_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/internal/ioplugin"
	"github.com/warno/warno/pkg/errcode"
	"github.com/warno/warno/pkg/plugin"
	"github.com/warno/warno/pkg/protocol"
)

const script = `#!/bin/sh
case "$1" in
register)
  echo '{"instrument_name": "KAZR", "event_code_names": ["power", "mode"]}'
  ;;
run)
  read cfg
  echo "$cfg" >&2
  echo '{"event": "power", "data": {"instrument_id": '"$WARNO_INSTRUMENT_ID"', "time": "2016-01-02T03:04:05Z", "value": 1}}'
  echo ''
  echo '{"event": "mode", "data": {"instrument_id": '"$WARNO_INSTRUMENT_ID"', "time": "2016-01-02T03:04:06Z", "value": "'"$WARNO_OPT_MODE"'"}}'
  while read line; do
    case "$line" in
    *shutdown*) exit 0 ;;
    esac
  done
  ;;
*)
  echo "unknown command" >&2
  exit 2
  ;;
esac
`

func writeScript(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("exec plugin test needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "kazr.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestNewRegistry(t *testing.T) {
	reg := ioplugin.NewRegistry()
	assert.Equal(t, []string{"exec", "heartbeat", "system_status"}, reg.Kinds())
}

func TestExecPlugin(t *testing.T) {
	ctx := context.Background()
	path := writeScript(t)
	p, err := ioplugin.NewRegistry().Build(plugin.Descriptor{
		Name:     "kazr",
		Kind:     plugin.KindExec,
		Command:  path,
		Register: []string{"register"},
		Run:      []string{"run"},
		Options:  map[string]string{"mode": "standby"},
	})
	require.NoError(t, err)

	reg, err := p.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, "KAZR", reg.InstrumentName)
	assert.Equal(t, []string{"power", "mode"}, reg.AttributeNames)

	out := make(chan []byte, 10)
	ctrl := make(chan plugin.Command, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, out, plugin.RunConfig{InstrumentID: 7, SiteID: 1}, ctrl)
	}()

	var events []*protocol.PluginEvent
	for len(events) < 2 {
		select {
		case b := <-out:
			ev, err := protocol.DecodePluginEvent(b)
			require.NoError(t, err)
			events = append(events, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("no events from plugin")
		}
	}
	assert.Equal(t, "power", events[0].Event)
	assert.Contains(t, string(events[0].Data), `"instrument_id": 7`)
	assert.Contains(t, string(events[1].Data), `"standby"`)

	ctrl <- plugin.Shutdown
	select {
	case err = <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("plugin did not stop")
	}
}

func TestExecRegisterFails(t *testing.T) {
	path := writeScript(t)
	p, err := ioplugin.NewExec(plugin.Descriptor{
		Name:     "broken",
		Kind:     plugin.KindExec,
		Command:  path,
		Register: []string{"bogus"},
		Run:      []string{"run"},
	})
	require.NoError(t, err)

	_, err = p.Register(context.Background())
	require.Error(t, err)
	gnErr, ok := err.(*gn.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.PluginRegisterError, gnErr.Code)
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	p, err := ioplugin.NewHeartbeat(plugin.Descriptor{
		Name:       "hb",
		Kind:       plugin.KindHeartbeat,
		Instrument: "AGENT",
		Interval:   10 * time.Millisecond,
		Options:    map[string]string{"state": "testing"},
	})
	require.NoError(t, err)

	reg, err := p.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AGENT", reg.InstrumentName)
	assert.Equal(t, []string{ioplugin.AttrUptime, ioplugin.AttrState}, reg.AttributeNames)

	out := make(chan []byte, 100)
	ctrl := make(chan plugin.Command, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, out, plugin.RunConfig{InstrumentID: 3}, ctrl)
	}()

	seen := make(map[string]bool)
	for len(seen) < 2 {
		select {
		case b := <-out:
			ev, err := protocol.DecodePluginEvent(b)
			require.NoError(t, err)
			seen[ev.Event] = true
			if ev.Event == ioplugin.AttrState {
				assert.Contains(t, string(ev.Data), `"testing"`)
			}
		case <-time.After(time.Second):
			t.Fatal("no heartbeat")
		}
	}

	ctrl <- plugin.Shutdown
	select {
	case err = <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not stop")
	}
}

func TestSystemStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skip reading host statistics")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := ioplugin.NewSystemStatus(plugin.Descriptor{
		Name:       "system",
		Kind:       plugin.KindSystemStatus,
		Instrument: "HOST",
		Attributes: []string{ioplugin.AttrMemoryUsage},
		Interval:   time.Hour,
	})
	require.NoError(t, err)
	reg, err := p.Register(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{ioplugin.AttrMemoryUsage}, reg.AttributeNames)

	out := make(chan []byte, 10)
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, out, plugin.RunConfig{InstrumentID: 1}, nil)
	}()

	select {
	case b := <-out:
		ev, err := protocol.DecodePluginEvent(b)
		require.NoError(t, err)
		assert.Equal(t, ioplugin.AttrMemoryUsage, ev.Event)
	case <-time.After(5 * time.Second):
		t.Fatal("no system status")
	}

	cancel()
	assert.NoError(t, <-errCh)
}
