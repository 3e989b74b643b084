// Package health builds runtime health snapshots for the running service.
package health

import (
	"os"
	"runtime"
	"strings"
	"time"
)

// Snapshot is a runtime health snapshot of the current process.
type Snapshot struct {
	Status     string        `json:"status"`
	Goroutines int           `json:"goroutines"`
	Memory     MemoryInfo    `json:"memory"`
	Runtime    RuntimeInfo   `json:"runtime"`
	Uptime     string        `json:"uptime,omitempty"`
	Timestamp  string        `json:"timestamp"`
	Page       *PageInfo     `json:"page,omitempty"`
	Delivery   *DeliveryInfo `json:"delivery,omitempty"`
	Images     *ImagesInfo   `json:"images,omitempty"`
}

// MemoryInfo contains memory statistics in MB.
type MemoryInfo struct {
	AllocMB      float64 `json:"allocMB"`
	TotalAllocMB float64 `json:"totalAllocMB"`
	SysMB        float64 `json:"sysMB"`
	NumGC        uint32  `json:"numGC"`
}

// RuntimeInfo contains Go runtime metadata.
type RuntimeInfo struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	CPUs    int    `json:"cpus"`
}

// PageInfo describes the destination page connection.
type PageInfo struct {
	Connected bool `json:"connected"`
}

// DeliveryInfo is the coordinator's state at snapshot time.
type DeliveryInfo struct {
	State      string `json:"state"`
	Generation uint64 `json:"generation"`
	Path       string `json:"path,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	ColdStart  bool   `json:"coldStart,omitempty"`
}

// ImagesInfo summarizes the shared-image cache directory.
type ImagesInfo struct {
	Dir        string `json:"dir"`
	Files      int    `json:"files"`
	TotalBytes int64  `json:"totalBytes"`
	Error      string `json:"error,omitempty"`
}

// Options controls optional health details. Nil sections are omitted.
type Options struct {
	StartedAt time.Time
	Page      *PageInfo
	Delivery  *DeliveryInfo
	ImagesDir string
}

// Collect returns a health snapshot for the current process.
func Collect(opts Options) Snapshot {
	now := time.Now()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Snapshot{
		Status:     "healthy",
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryInfo{
			AllocMB:      float64(mem.Alloc) / 1024 / 1024,
			TotalAllocMB: float64(mem.TotalAlloc) / 1024 / 1024,
			SysMB:        float64(mem.Sys) / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Runtime: RuntimeInfo{
			Version: runtime.Version(),
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			CPUs:    runtime.NumCPU(),
		},
		Timestamp: now.Format(time.RFC3339),
		Page:      opts.Page,
		Delivery:  opts.Delivery,
	}
	if !opts.StartedAt.IsZero() {
		s.Uptime = now.Sub(opts.StartedAt).Round(time.Second).String()
	}
	if dir := strings.TrimSpace(opts.ImagesDir); dir != "" {
		s.Images = inspectImagesDir(dir)
		if s.Images.Error != "" {
			s.Status = "degraded"
		}
	}
	return s
}

// sidecarPrefix matches the cache's latest.json and its temp file.
const sidecarPrefix = "latest.json"

func inspectImagesDir(dir string) *ImagesInfo {
	info := &ImagesInfo{Dir: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), sidecarPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.Files++
		info.TotalBytes += fi.Size()
	}
	return info
}
