package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/imageclassifier/internal/logger"
)

// SystemInfo describes the host the classifier runs on.
type SystemInfo struct {
	OS            string  `json:"os"`
	Architecture  string  `json:"architecture"`
	Hostname      string  `json:"hostname"`
	Platform      string  `json:"platform,omitempty"`
	PlatformVer   string  `json:"platform_version,omitempty"`
	KernelVersion string  `json:"kernel_version,omitempty"`
	NumCPU        int     `json:"num_cpu"`
	PhysicalCores int     `json:"physical_cores,omitempty"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	ProcessRSS    uint64  `json:"process_rss,omitempty"`
	AppUptime     int64   `json:"app_uptime_seconds"`
	GoVersion     string  `json:"go_version"`
}

// systemInfo handles GET /api/v1/system
func (s *Server) systemInfo(c echo.Context) error {
	ctx := c.Request().Context()

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s.handleError(c, err, "Failed to get memory information", http.StatusInternalServerError, "system")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := SystemInfo{
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		Hostname:      hostname,
		NumCPU:        runtime.NumCPU(),
		MemoryTotal:   memInfo.Total,
		MemoryUsed:    memInfo.Used,
		MemoryPercent: memInfo.UsedPercent,
		AppUptime:     int64(time.Since(s.startTime).Seconds()),
		GoVersion:     runtime.Version(),
	}

	// host and process details are best effort, containers often hide them
	log := GetLogger().WithContext(ctx)
	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		info.Platform = hostInfo.Platform
		info.PlatformVer = hostInfo.PlatformVersion
		info.KernelVersion = hostInfo.KernelVersion
	} else {
		log.Debug("host information unavailable", logger.Error(err))
	}
	if cores, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCores = cores
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if procMem, err := proc.MemoryInfoWithContext(ctx); err == nil {
			info.ProcessRSS = procMem.RSS
		}
	}

	return c.JSON(http.StatusOK, info)
}
