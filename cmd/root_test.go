package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/internal/iofs"
	"github.com/warno/warno/pkg/config"
)

// TestGetRootCmd_Exists verifies getRootCmd returns
// a valid command.
func TestGetRootCmd_Exists(t *testing.T) {
	cmd := getRootCmd()
	require.NotNil(t, cmd, "Root command should exist")
	assert.Equal(t, "warno", cmd.Use,
		"Command name should be warno")
}

// TestGetRootCmd_VersionFormat verifies version
// output format.
func TestGetRootCmd_VersionFormat(t *testing.T) {
	cmd := getRootCmd()
	cmd.Version = "version: v1.2.3\nbuild:   abc123"

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "v1.2.3")
	assert.Contains(t, output, "abc123")
	assert.NotContains(t, output, "warno version:",
		"Should use custom version template")
}

// TestGetRootCmd_ShortVersionFlag verifies -V flag works.
func TestGetRootCmd_ShortVersionFlag(t *testing.T) {
	cmd := getRootCmd()
	cmd.Version = "version: v1.2.3\nbuild:   abc123"

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"-V"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "v1.2.3")
}

// TestGetRootCmd_HelpText verifies help text content.
func TestGetRootCmd_HelpText(t *testing.T) {
	cmd := getRootCmd()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	helpText := buf.String()
	assert.Contains(t, helpText, "warno")
	assert.Contains(t, helpText, "WARNO_SITE_CENTRAL_URL")
	for _, sub := range []string{"serve", "agent", "create", "migrate", "spool"} {
		assert.Contains(t, helpText, sub)
	}
}

// TestGetRootCmd_Settings verifies bootstrap and error silencing.
func TestGetRootCmd_Settings(t *testing.T) {
	cmd := getRootCmd()

	assert.NotNil(t, cmd.PersistentPreRunE,
		"PersistentPreRunE should be set for bootstrap")
	assert.NotNil(t, cmd.RunE)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)
}

// TestGetRootCmd_IndependentInstances verifies each
// call returns independent instance.
func TestGetRootCmd_IndependentInstances(t *testing.T) {
	cmd1 := getRootCmd()
	cmd2 := getRootCmd()

	assert.NotSame(t, cmd1, cmd2)
	cmd1.Version = "version1"
	cmd2.Version = "version2"
	assert.Equal(t, "version1", cmd1.Version)
	assert.Equal(t, "version2", cmd2.Version)
}

// TestGetRootCmd_InvalidCommand verifies error on
// invalid command.
func TestGetRootCmd_InvalidCommand(t *testing.T) {
	cmd := getRootCmd()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"nonexistent-command"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t,
		strings.Contains(buf.String(), "unknown") ||
			strings.Contains(err.Error(), "unknown"))
}

// TestInitConfig verifies that the generated config file is read and
// WARNO_* variables override it.
func TestInitConfig(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, iofs.EnsureDirs(home))
	require.NoError(t, iofs.EnsureConfigFile(home))

	res, err := initConfig(home)
	require.NoError(t, err)
	assert.Equal(t, config.New().Site.Name, res.Site.Name)
	assert.True(t, res.Agent.Run)

	t.Setenv("WARNO_SITE_NAME", "OLI")
	t.Setenv("WARNO_AGENT_RUN", "false")
	t.Setenv("WARNO_TRANSPORT_TIMEOUT", "3s")
	t.Setenv("WARNO_DATABASE_PORT", "5433")

	res, err = initConfig(home)
	require.NoError(t, err)
	assert.Equal(t, "OLI", res.Site.Name)
	assert.False(t, res.Agent.Run)
	assert.Equal(t, 3*time.Second, res.Transport.Timeout)
	assert.Equal(t, 5433, res.Database.Port)

	c := config.New()
	c.Update(res.ToOptions())
	assert.Equal(t, "OLI", c.Site.Name)
	assert.False(t, c.Agent.Run)
}

// TestInitConfig_MissingFile verifies the error for an absent file.
func TestInitConfig_MissingFile(t *testing.T) {
	_, err := initConfig(t.TempDir())
	assert.Error(t, err)
}

// TestEnvKeys verifies every persistent option has an environment key.
func TestEnvKeys(t *testing.T) {
	assert.Len(t, envKeys, 27)
	seen := make(map[string]bool)
	for _, k := range envKeys {
		assert.False(t, seen[k], k)
		seen[k] = true
	}
}
