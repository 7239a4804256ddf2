// Package iofs prepares the files WARNO keeps in the home directory.
package iofs

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/warno/warno/pkg/config"
)

// ConfigYAML is the default configuration file.
//
//go:embed config.yaml
var ConfigYAML string

//go:embed plugins
var pluginsFS embed.FS

func EnsureDirs(homeDir string) error {
	dirs := []string{
		config.ConfigDir(homeDir),
		config.CacheDir(homeDir),
		config.LogDir(homeDir),
	}
	for _, v := range dirs {
		if err := touchDir(v); err != nil {
			return err
		}
	}
	return nil
}

func touchDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return CreateDirError(dir, err)
	}

	return nil
}

func EnsureConfigFile(homeDir string) error {
	configPath := config.ConfigFilePath(homeDir)

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	if err := os.WriteFile(configPath, []byte(ConfigYAML), 0644); err != nil {
		return WriteFileError(configPath, err)
	}

	return nil
}

// EnsurePluginDir creates the plugin directory with example descriptors
// when it does not exist. An existing directory is left as is.
func EnsurePluginDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := touchDir(dir); err != nil {
		return err
	}

	entries, err := fs.ReadDir(pluginsFS, "plugins")
	if err != nil {
		return ReadFileError("plugins", err)
	}
	for _, e := range entries {
		b, err := pluginsFS.ReadFile("plugins/" + e.Name())
		if err != nil {
			return ReadFileError(e.Name(), err)
		}
		path := filepath.Join(dir, e.Name())
		if err = os.WriteFile(path, b, 0644); err != nil {
			return WriteFileError(path, err)
		}
	}
	return nil
}
