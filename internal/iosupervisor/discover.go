package iosupervisor

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warno/warno/pkg/plugin"
	"gopkg.in/yaml.v3"
)

// Discover reads plugin descriptors (*.yaml, *.yml) from dir and builds
// the plugins they declare. Unreadable, malformed or incomplete
// descriptors are skipped with a warning. Only a directory that cannot be
// listed is an error. Plugins are returned in file name order.
func Discover(dir string, reg *plugin.Registry) ([]plugin.Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, DirError(dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var res []plugin.Plugin
	names := make(map[string]string)
	for _, path := range files {
		d, err := readDescriptor(path)
		if err != nil {
			slog.Warn("Skipping plugin descriptor", "path", path, "error", err)
			continue
		}
		if prev, ok := names[d.Name]; ok {
			slog.Warn("Skipping plugin with duplicate name",
				"plugin", d.Name, "path", path, "first", prev)
			continue
		}
		p, err := reg.Build(d)
		if err != nil {
			slog.Warn("Plugin does not satisfy the contract",
				"plugin", d.Name, "path", path, "error", err)
			continue
		}
		names[d.Name] = path
		res = append(res, p)
	}

	slog.Info("Discovered plugins",
		"dir", dir, "descriptors", len(files), "plugins", len(res))
	return res, nil
}

func readDescriptor(path string) (plugin.Descriptor, error) {
	var res plugin.Descriptor
	b, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	if err = yaml.Unmarshal(b, &res); err != nil {
		return res, err
	}
	res.Path = path
	if res.Name == "" {
		base := filepath.Base(path)
		res.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return res, nil
}
