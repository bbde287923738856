package utils

import (
	"runtime"
	"sync"
	"time"

	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/util/timezone"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

var (
	lastCPUTime        time.Time
	lastCPUUsage       float64
	cpuUsageMutex      sync.Mutex
	cpuUsageSampleRate = 500 * time.Millisecond
)

// SystemStats enthält aktuelle System- und Kiosk-Statistiken
type SystemStats struct {
	NumCPU      int     `json:"num_cpu"`
	GoRoutines  int     `json:"go_routines"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsed  float64 `json:"memory_used_percent"`
	MemoryAlloc uint64  `json:"memory_alloc"`
	MemorySys   uint64  `json:"memory_sys"`
	MemoryHuman string  `json:"memory_human"`

	// Sitzungszähler
	Session kiosk.Stats `json:"session"`
	Mode    string      `json:"mode"`
	Phase   string      `json:"phase"`

	Uptime       string    `json:"uptime"`
	StartedHuman string    `json:"started"`
	Timestamp    time.Time `json:"timestamp"`
}

// FormatBytes formatiert Bytes in lesbare Einheiten
func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// GetCPUUsage berechnet die CPU-Auslastung mit gopsutil
func GetCPUUsage() float64 {
	cpuUsageMutex.Lock()
	defer cpuUsageMutex.Unlock()

	// Gecachten Wert zurückgeben, wenn die letzte Messung jung genug ist
	if time.Since(lastCPUTime) < cpuUsageSampleRate && lastCPUTime.Unix() > 0 {
		return lastCPUUsage
	}

	percentages, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil {
		log.Warnf("Fehler bei CPU-Auslastungsmessung: %v", err)
		return 0.0
	}

	var usage float64
	if len(percentages) > 0 {
		usage = percentages[0]
	}

	lastCPUTime = time.Now()
	lastCPUUsage = usage
	return usage
}

// GetSystemStats erfasst aktuelle System- und Sitzungsstatistiken.
// state may be the zero value when no session runs.
func GetSystemStats(state kiosk.State, startedAt time.Time) *SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	now := timezone.Now()
	stats := &SystemStats{
		NumCPU:       runtime.NumCPU(),
		GoRoutines:   runtime.NumGoroutine(),
		CPUUsage:     GetCPUUsage(),
		MemoryAlloc:  memStats.Alloc,
		MemorySys:    memStats.Sys,
		MemoryHuman:  FormatBytes(memStats.Alloc),
		Session:      state.Stats,
		Mode:         string(state.Mode),
		Phase:        string(state.Phase),
		Uptime:       now.Sub(startedAt).Round(time.Second).String(),
		StartedHuman: humanize.Time(startedAt),
		Timestamp:    now,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsed = vm.UsedPercent
	} else {
		log.Debugf("Fehler beim Lesen des Arbeitsspeichers: %v", err)
	}
	return stats
}
