package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/internal/iospool"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/protocol"
)

// TestGetSpoolCmd verifies subcommands and flags of spool.
func TestGetSpoolCmd(t *testing.T) {
	cmd := getSpoolCmd()
	assert.Equal(t, "spool", cmd.Use)
	require.NotNil(t, cmd.PersistentFlags().Lookup("agent"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "flush"}, names)
}

// TestSpoolPath verifies the --agent flag selects the agent spool.
func TestSpoolPath(t *testing.T) {
	withConfig(t)
	cmd := getSpoolCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	assert.Equal(t, config.SpoolFilePath(cfg.HomeDir), spoolPath(cmd))

	require.NoError(t, cmd.ParseFlags([]string{"--agent"}))
	assert.Equal(t, config.AgentSpoolFilePath(cfg.HomeDir), spoolPath(cmd))
}

// TestRunSpoolList verifies the listing of spooled entries.
func TestRunSpoolList(t *testing.T) {
	withConfig(t)
	ctx := context.Background()
	spool, err := iospool.Open(config.SpoolFilePath(cfg.HomeDir))
	require.NoError(t, err)

	env, err := protocol.New(protocol.FirstDynamicCode, map[string]any{
		"instrument_id": 1, "time": "2016-01-02 03:04:05", "value": 1,
	})
	require.NoError(t, err)
	for range 3 {
		require.NoError(t, spool.Put(ctx, env, "central is down"))
	}
	require.NoError(t, spool.Close())

	cmd := getSpoolCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	var buf bytes.Buffer
	require.NoError(t, runSpoolList(cmd, &buf, 2))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "3 entries"), out)
	assert.Contains(t, out, "event code 10000  3")
	assert.Contains(t, out, "reason: central is down")
	assert.Equal(t, 2, strings.Count(out, "attempts: 0"))
}

// TestWriteSpool verifies pending plugin events are shown by name.
func TestWriteSpool(t *testing.T) {
	now := time.Now()
	var buf bytes.Buffer
	writeSpool(&buf, iospool.Summary{
		Count:  1234,
		Oldest: now.Add(-2 * time.Hour),
		Codes:  map[int]int{0: 1234},
	}, []iospool.Entry{{
		ID: 7, EventName: "cpu_usage", CreatedAt: now.Add(-2 * time.Hour),
		Attempts: 2, LastError: "timeout",
	}})

	out := buf.String()
	assert.Contains(t, out, "1,234 entries, oldest 2 hours ago")
	assert.Contains(t, out, "cpu_usage")
	assert.Contains(t, out, "attempts: 2 last error: timeout")
}
