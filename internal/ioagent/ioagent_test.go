package ioagent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/internal/ioagent"
	"github.com/warno/warno/internal/ioclient"
	"github.com/warno/warno/internal/iomanager"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/internal/iotesting"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/errcode"
	"github.com/warno/warno/pkg/ingest"
	"github.com/warno/warno/pkg/plugin"
	"github.com/warno/warno/pkg/protocol"
)

// fakePlugin emits its events once and exits unless wait is set.
type fakePlugin struct {
	name       string
	reg        plugin.Registration
	regErr     error
	events     []string
	raw        [][]byte
	wait       bool
	late       []string
	registered atomic.Int32
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Register(context.Context) (plugin.Registration, error) {
	p.registered.Add(1)
	return p.reg, p.regErr
}

func (p *fakePlugin) Run(
	ctx context.Context,
	out chan<- []byte,
	cfg plugin.RunConfig,
	ctrl <-chan plugin.Command,
) error {
	t := time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, name := range p.events {
		out <- plugin.Event(name, cfg.InstrumentID, t.Add(time.Duration(i)*time.Second), 3.2)
	}
	for _, v := range p.raw {
		out <- v
	}
	if !p.wait {
		return nil
	}
	select {
	case <-ctrl:
	case <-ctx.Done():
	}
	for _, name := range p.late {
		out <- plugin.Event(name, cfg.InstrumentID, t, 1)
	}
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.HomeDir = t.TempDir()
	cfg.Site.Name = "NSA"
	cfg.Agent.MaxConnAttempts = 5
	cfg.Agent.ConnRetryInterval = time.Millisecond
	cfg.Agent.PollInterval = 5 * time.Millisecond
	cfg.EventManager.ReplayInterval = 0
	return cfg
}

func openSpool(t *testing.T) *iospool.Spool {
	t.Helper()
	s, err := iospool.Open(filepath.Join(t.TempDir(), "agent-spool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// centralSender answers like a central Event-Manager backed by mem.
func centralSender(mem *iotesting.MemStore) *iotesting.Sender {
	router := ingest.New(mem, nil, nil)
	return &iotesting.Sender{Reply: router.Dispatch}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "INIT", ioagent.StateInit.String())
	assert.Equal(t, "ACQUIRING_SITE_ID", ioagent.StateAcquiringSiteID.String())
	assert.Equal(t, "SHUTTING_DOWN", ioagent.StateShuttingDown.String())
}

func TestDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.Run = false
	up := &iotesting.Sender{}
	a := ioagent.New(cfg, up, nil)

	err := a.Run(context.Background(), []plugin.Plugin{&fakePlugin{name: "p"}})
	require.NoError(t, err)
	assert.Equal(t, ioagent.StateShuttingDown, a.State())
	assert.Equal(t, 0, up.Count())
}

func TestSiteIDFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	up := &iotesting.Sender{
		Reply: func(context.Context, *protocol.Envelope) (*protocol.Envelope, error) {
			return nil, errors.New("connection refused")
		},
	}
	p := &fakePlugin{name: "kazr"}
	a := ioagent.New(cfg, up, nil)

	err := a.Run(context.Background(), []plugin.Plugin{p})
	require.Error(t, err)
	gnErr, ok := err.(*gn.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.AgentSiteIDError, gnErr.Code)

	assert.Equal(t, 5, up.Count())
	assert.Equal(t, int32(0), p.registered.Load())
	assert.Empty(t, a.Supervisor().Status())
	assert.Equal(t, ioagent.StateShuttingDown, a.State())
}

func TestNoPlugins(t *testing.T) {
	a := ioagent.New(testConfig(t), &iotesting.Sender{}, nil)
	err := a.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errcode.Has(err, errcode.AgentNoPluginsError))
}

func TestRun(t *testing.T) {
	mem := iotesting.NewMemStore(nil)
	up := centralSender(mem)
	good := &fakePlugin{
		name:   "kazr",
		reg:    plugin.Registration{InstrumentName: "KAZR", AttributeNames: []string{"cpu_usage"}},
		events: []string{"cpu_usage", "undeclared"},
		raw:    [][]byte{[]byte(`{"no event": true}`)},
	}
	bad := &fakePlugin{name: "broken", regErr: errors.New("no serial port")}
	a := ioagent.New(testConfig(t), up, openSpool(t))

	err := a.Run(context.Background(), []plugin.Plugin{good, bad})
	require.NoError(t, err)
	assert.Equal(t, ioagent.StateShuttingDown, a.State())
	assert.Positive(t, a.SiteID())

	sum := a.Summary()
	assert.Equal(t, int64(2), sum.Forwarded)
	assert.Equal(t, int64(1), sum.Dropped)
	assert.Equal(t, int64(0), sum.Spooled)

	require.Len(t, mem.Values, 2)
	assert.Equal(t, protocol.FirstDynamicCode, mem.Values[0].Code)
	assert.Equal(t, 3.2, mem.Values[0].Value)
	assert.Equal(t, protocol.FirstDynamicCode+1, mem.Values[1].Code)

	st := a.Supervisor().Status()
	require.Len(t, st, 1)
	assert.Equal(t, "kazr", st[0].Name)
	assert.False(t, st[0].Running)
}

func TestSiteIDAttached(t *testing.T) {
	mem := iotesting.NewMemStore(nil)
	central := centralSender(mem)
	var seen []json.RawMessage
	up := &iotesting.Sender{
		Reply: func(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
			if protocol.IsDynamic(env.EventCode) {
				seen = append(seen, env.Data)
			}
			return central.Send(ctx, env)
		},
	}
	p := &fakePlugin{
		name:   "kazr",
		reg:    plugin.Registration{InstrumentName: "KAZR", AttributeNames: []string{"uptime"}},
		events: []string{"uptime"},
	}
	a := ioagent.New(testConfig(t), up, nil)
	require.NoError(t, a.Run(context.Background(), []plugin.Plugin{p}))

	require.Len(t, seen, 1)
	var d map[string]any
	require.NoError(t, json.Unmarshal(seen[0], &d))
	assert.Equal(t, float64(a.SiteID()), d["site_id"])
}

func TestFailuresAreSpooled(t *testing.T) {
	ctx := context.Background()
	mem := iotesting.NewMemStore(nil)
	central := centralSender(mem)
	up := &iotesting.Sender{
		Reply: func(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
			if env.EventCode == protocol.CodeEventCodeRequest {
				var req protocol.EventCodeRequest
				if err := env.Unmarshal(&req); err == nil && req.Description == "mystery" {
					return nil, errors.New("timeout")
				}
			}
			if protocol.IsDynamic(env.EventCode) {
				return nil, errors.New("breaker is open")
			}
			return central.Send(ctx, env)
		},
	}
	p := &fakePlugin{
		name:   "kazr",
		reg:    plugin.Registration{InstrumentName: "KAZR", AttributeNames: []string{"cpu_usage"}},
		events: []string{"cpu_usage", "mystery"},
	}
	spool := openSpool(t)
	a := ioagent.New(testConfig(t), up, spool)
	require.NoError(t, a.Run(ctx, []plugin.Plugin{p}))
	assert.Equal(t, int64(2), a.Summary().Spooled)

	sum, err := spool.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 1, sum.Codes[0])
	assert.Equal(t, 1, sum.Codes[protocol.FirstDynamicCode])

	// once the central facility is back both entries are delivered
	res, err := spool.Flush(ctx, central, iospool.FlushOptions{
		Translate: ioagent.Translator(central),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Len(t, mem.Values, 2)
}

func TestStopWithContext(t *testing.T) {
	mem := iotesting.NewMemStore(nil)
	p := &fakePlugin{
		name:   "kazr",
		reg:    plugin.Registration{InstrumentName: "KAZR"},
		events: []string{"pulse_capture"},
		wait:   true,
	}
	a := ioagent.New(testConfig(t), centralSender(mem), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, []plugin.Plugin{p}) }()

	require.Eventually(t, func() bool {
		return a.State() == ioagent.StateRunning
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("agent did not stop")
	}
	st := a.Supervisor().Status()
	require.Len(t, st, 1)
	assert.False(t, st[0].Running)
}

func TestRejectedEventsAreDropped(t *testing.T) {
	ctx := context.Background()
	mem := iotesting.NewMemStore(nil)
	m := iomanager.New(config.New(), ingest.New(mem, nil, nil), nil, nil)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	client := ioclient.New(srv.URL+iomanager.EventPath, config.TransportConfig{
		Timeout:         time.Second,
		MaxRetries:      3,
		BreakerFailures: 5,
		BreakerCooldown: time.Minute,
	}, true)

	p := &fakePlugin{
		name:   "kazr",
		reg:    plugin.Registration{InstrumentName: "KAZR", AttributeNames: []string{"cpu_usage"}},
		events: []string{"cpu_usage"},
		raw: [][]byte{
			[]byte(`{"event": "cpu_usage", "data": {"instrument_id": 1, "time": "not-a-date", "value": 1}}`),
			[]byte(`{"event": "uptime", "data": {"instrument_id": 99, "time": 0, "value": 1}}`),
			[]byte(`{"event": "uptime", "data": {"time": 0, "value": 1}}`),
		},
	}
	spool := openSpool(t)
	a := ioagent.New(testConfig(t), client, spool)
	require.NoError(t, a.Run(ctx, []plugin.Plugin{p}))

	sum := a.Summary()
	assert.Equal(t, int64(1), sum.Forwarded)
	assert.Equal(t, int64(3), sum.Dropped)
	assert.Equal(t, int64(0), sum.Spooled)
	assert.Len(t, mem.Values, 1)

	ssum, err := spool.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, ssum.Count)
	assert.Equal(t, "closed", client.State())
}

func TestShutdownKeepsLateEvents(t *testing.T) {
	mem := iotesting.NewMemStore(nil)
	p := &fakePlugin{
		name: "kazr",
		reg:  plugin.Registration{InstrumentName: "KAZR", AttributeNames: []string{"cpu_usage"}},
		wait: true,
		late: []string{"cpu_usage", "cpu_usage", "pulse_capture"},
	}
	spool := openSpool(t)
	a := ioagent.New(testConfig(t), centralSender(mem), spool)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, []plugin.Plugin{p}) }()

	require.Eventually(t, func() bool {
		return a.State() == ioagent.StateRunning
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("agent did not stop")
	}

	sum := a.Summary()
	assert.Equal(t, int64(3), sum.Spooled)
	assert.Equal(t, int64(0), sum.Dropped)
	assert.Empty(t, mem.Values)

	ssum, err := spool.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ssum.Count)
	assert.Equal(t, 3, ssum.Codes[0])

	es, err := spool.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, es, 3)
	assert.Equal(t, "pulse_capture", es[2].EventName)
	assert.Contains(t, es[0].Reason, "stopped")
}

func TestStatusHandler(t *testing.T) {
	a := ioagent.New(testConfig(t), &iotesting.Sender{}, nil)
	h := a.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agent", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info ioagent.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "INIT", info.State)
	assert.Equal(t, "NSA", info.Site)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/agent/plugins/nope/stop", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "warno_agent_forwarded_total 0")
}
