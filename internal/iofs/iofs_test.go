package iofs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/internal/ioplugin"
	"github.com/warno/warno/internal/iosupervisor"
	"github.com/warno/warno/pkg/config"
)

func TestEnsureDirs(t *testing.T) {
	home := t.TempDir()

	for range 2 {
		require.NoError(t, EnsureDirs(home))
	}

	for _, dir := range []string{
		filepath.Join(home, ".config", "warno"),
		filepath.Join(home, ".cache", "warno"),
		filepath.Join(home, ".local", "share", "warno", "logs"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}
}

func TestEnsureConfigFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, EnsureDirs(home))
	require.NoError(t, EnsureConfigFile(home))

	path := filepath.Join(home, ".config", "warno", "config.yaml")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ConfigYAML, string(content))

	custom := "site:\n  name: OLI\n"
	require.NoError(t, os.WriteFile(path, []byte(custom), 0644))
	require.NoError(t, EnsureConfigFile(home))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, string(content), "existing file is kept")
}

// The embedded file documents the defaults, so reading it must not change
// anything.
func TestConfigYAMLMatchesDefaults(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(ConfigYAML)))

	cfg := config.New()
	var fromFile config.Config
	require.NoError(t, v.Unmarshal(&fromFile))

	assert.Equal(t, cfg.Database, fromFile.Database)
	assert.Equal(t, cfg.Log, fromFile.Log)
	assert.Equal(t, cfg.Agent, fromFile.Agent)
	assert.Equal(t, cfg.EventManager, fromFile.EventManager)
	assert.Equal(t, cfg.Transport, fromFile.Transport)
	assert.Equal(t, cfg.Site.Name, fromFile.Site.Name)
	assert.Equal(t, cfg.Site.Central, fromFile.Site.Central)
}

func TestEnsurePluginDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")
	require.NoError(t, EnsurePluginDir(dir))

	ps, err := iosupervisor.Discover(dir, ioplugin.NewRegistry())
	require.NoError(t, err)
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"heartbeat", "system_status"}, names)

	// existing directories are not touched
	require.NoError(t, os.Remove(filepath.Join(dir, "heartbeat.yaml")))
	require.NoError(t, EnsurePluginDir(dir))
	_, err = os.Stat(filepath.Join(dir, "heartbeat.yaml"))
	assert.True(t, os.IsNotExist(err))
}
