package iologger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/errcode"
)

func TestNewHandler(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{"json", func(t *testing.T, out string) {
			var m map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &m))
			assert.Equal(t, "Stored", m["msg"])
			assert.Equal(t, float64(10000), m["event_code"])
		}},
		{"text", func(t *testing.T, out string) {
			assert.Contains(t, out, "msg=Stored")
			assert.Contains(t, out, "event_code=10000")
		}},
		{"tint", func(t *testing.T, out string) {
			assert.Contains(t, out, "Stored")
			assert.Contains(t, out, "event_code=10000")
			assert.NotContains(t, out, "\x1b[", "no colors outside of a terminal")
		}},
	}

	for _, v := range tests {
		t.Run(v.format, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(&buf, config.LogConfig{Format: v.format, Level: "info"}))
			log.Debug("hidden")
			log.Info("Stored", "event_code", 10000)
			assert.NotContains(t, buf.String(), "hidden")
			v.check(t, buf.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestInitFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	dir := t.TempDir()
	cfg := config.LogConfig{Format: "json", Level: "info", Destination: "file"}
	require.NoError(t, Init(dir, cfg))
	slog.Info("Agent state changed", "state", "RUNNING")
	require.NoError(t, Init(dir, config.LogConfig{Destination: "stderr"}))

	b, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"state":"RUNNING"`)
}

func TestInitFileError(t *testing.T) {
	err := Init(filepath.Join(t.TempDir(), "missing"), config.LogConfig{Destination: "file"})
	require.Error(t, err)
	gnErr, ok := err.(*gn.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.CreateLogFileError, gnErr.Code)
}
