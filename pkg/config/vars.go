package config

import (
	"path/filepath"
)

var (
	// AppName is used in generating file system paths.
	AppName = "warno"
)

// ConfigDir returns the directory path for configuration files.
// Returns ~/.config/warno by default.
func ConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config", AppName)
}

// CacheDir returns the directory path for cache files.
// Returns ~/.cache/warno by default.
func CacheDir(homeDir string) string {
	return filepath.Join(homeDir, ".cache", AppName)
}

// LogDir returns the directory path for log files.
// Returns ~/.local/share/warno/logs by default.
func LogDir(homeDir string) string {
	return filepath.Join(homeDir, ".local", "share", AppName, "logs")
}

// ConfigFilePath returns the full path to the config.yaml file.
// Returns ~/.config/warno/config.yaml by default.
func ConfigFilePath(homeDir string) string {
	return filepath.Join(ConfigDir(homeDir), "config.yaml")
}

// SpoolFilePath returns the path of the local store-and-forward spool.
// Returns ~/.cache/warno/spool.db by default.
func SpoolFilePath(homeDir string) string {
	return filepath.Join(CacheDir(homeDir), "spool.db")
}

// PluginDirPath resolves the plugin directory. Relative directories are
// located inside the config directory.
func PluginDirPath(cfg *Config) string {
	if filepath.IsAbs(cfg.Agent.PluginDir) {
		return cfg.Agent.PluginDir
	}
	return filepath.Join(ConfigDir(cfg.HomeDir), cfg.Agent.PluginDir)
}

// AgentSpoolFilePath returns the path of the spool of the agent, kept
// apart from the Event-Manager spool because it replays to a different
// tier. Returns ~/.cache/warno/agent-spool.db by default.
func AgentSpoolFilePath(homeDir string) string {
	return filepath.Join(CacheDir(homeDir), "agent-spool.db")
}
