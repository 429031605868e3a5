package observability

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

type ProcessStats struct {
	RSS        uint64    `json:"rss"`
	CPUPercent float64   `json:"cpu"`
	SampledAt  time.Time `json:"sampledAt"`
}

// ProcessMonitor keeps the latest self sample so the health probe never
// pays for a gopsutil call.
type ProcessMonitor struct {
	mu     sync.RWMutex
	proc   *process.Process
	latest ProcessStats
}

func NewProcessMonitor() (*ProcessMonitor, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessMonitor{proc: p}, nil
}

// Sample reads the RSS and CPU usage of the current process.
func (m *ProcessMonitor) Sample() (ProcessStats, error) {
	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := m.proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	stats := ProcessStats{RSS: memInfo.RSS, CPUPercent: cpuPercent, SampledAt: time.Now().UTC()}
	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()
	return stats, nil
}

func (m *ProcessMonitor) Latest() ProcessStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
