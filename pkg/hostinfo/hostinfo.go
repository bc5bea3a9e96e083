// Package hostinfo collects facts about the machine unitlens inspects.
package hostinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a snapshot of host facts.
type Info struct {
	Hostname        string  `json:"hostname"`
	OS              string  `json:"os"`
	Platform        string  `json:"platform,omitempty"`
	PlatformVersion string  `json:"platform_version,omitempty"`
	KernelVersion   string  `json:"kernel_version,omitempty"`
	Virtualization  string  `json:"virtualization,omitempty"`
	UptimeSeconds   uint64  `json:"uptime_seconds"`
	CPUs            int     `json:"cpus"`
	MemoryTotalMB   uint64  `json:"memory_total_mb"`
	MemoryUsedPct   float64 `json:"memory_used_percent"`
	Load1           float64 `json:"load1"`
	Load5           float64 `json:"load5"`
	Load15          float64 `json:"load15"`
}

// Collect gathers host facts. Host identity is required; memory and load
// are best effort and left zero when unavailable.
func Collect(ctx context.Context) (*Info, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read host info: %w", err)
	}

	info := &Info{
		Hostname:        h.Hostname,
		OS:              h.OS,
		Platform:        h.Platform,
		PlatformVersion: h.PlatformVersion,
		KernelVersion:   h.KernelVersion,
		Virtualization:  h.VirtualizationSystem,
		UptimeSeconds:   h.Uptime,
		CPUs:            runtime.NumCPU(),
	}

	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotalMB = v.Total / 1024 / 1024
		info.MemoryUsedPct = v.UsedPercent
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		info.Load1, info.Load5, info.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	return info, nil
}
