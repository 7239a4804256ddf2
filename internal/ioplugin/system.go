package ioplugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/warno/warno/pkg/plugin"
)

// Attributes of the system status plugin.
const (
	AttrCPUUsage    = "cpu_usage"
	AttrMemoryUsage = "memory_usage"
	AttrDiskUsage   = "disk_usage"
)

// SystemStatus reports CPU, memory and root disk usage of the agent host
// in percent.
type SystemStatus struct {
	builtin
	diskPath string
}

// NewSystemStatus creates the plugin. Option "disk_path" selects the
// mounted file system, "/" by default.
func NewSystemStatus(d plugin.Descriptor) (plugin.Plugin, error) {
	res := &SystemStatus{
		builtin:  newBuiltin(d, []string{AttrCPUUsage, AttrMemoryUsage, AttrDiskUsage}),
		diskPath: "/",
	}
	if p := d.Options["disk_path"]; p != "" {
		res.diskPath = p
	}
	return res, nil
}

// Register checks that host statistics are readable.
func (s *SystemStatus) Register(ctx context.Context) (plugin.Registration, error) {
	// primes the CPU counters, the next call measures since this one
	if _, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		return plugin.Registration{}, plugin.RegisterError(s.Name(), err)
	}
	return s.registration(), nil
}

// Run implements plugin.Plugin.
func (s *SystemStatus) Run(
	ctx context.Context,
	out chan<- []byte,
	cfg plugin.RunConfig,
	ctrl <-chan plugin.Command,
) error {
	return s.loop(ctx, ctrl, func(t time.Time) {
		for attr, v := range s.sample(ctx) {
			emit(ctx, out, plugin.Event(attr, cfg.InstrumentID, t, v))
		}
	})
}

func (s *SystemStatus) sample(ctx context.Context) map[string]float64 {
	res := make(map[string]float64, 3)
	if s.reports(AttrCPUUsage) {
		if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
			res[AttrCPUUsage] = pct[0]
		} else {
			slog.Warn("Cannot read CPU usage", "plugin", s.Name(), "error", err)
		}
	}
	if s.reports(AttrMemoryUsage) {
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			res[AttrMemoryUsage] = vm.UsedPercent
		} else {
			slog.Warn("Cannot read memory usage", "plugin", s.Name(), "error", err)
		}
	}
	if s.reports(AttrDiskUsage) {
		if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
			res[AttrDiskUsage] = du.UsedPercent
		} else {
			slog.Warn("Cannot read disk usage", "plugin", s.Name(),
				"path", s.diskPath, "error", err)
		}
	}
	return res
}
