package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// SysHealth is the runtime snapshot the health endpoint reports alongside
// its status: process memory, goroutine count, and how much disk the
// exported itineraries occupy.
type SysHealth struct {
	AllocMB       uint64
	TotalAllocMB  uint64
	SysMB         uint64
	NumGC         uint32
	Goroutines    int
	OutputsOnDisk string
}

// GetSysHealth collects a point-in-time snapshot. outputsDir is the artifact
// store's base path.
func GetSysHealth(outputsDir string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		AllocMB:       m.Alloc / 1024 / 1024,
		TotalAllocMB:  m.TotalAlloc / 1024 / 1024,
		SysMB:         m.Sys / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
		OutputsOnDisk: dirSizeHuman(outputsDir),
	}
}

func dirSizeHuman(path string) string {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
