package source

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostMetrics is one reading of real host telemetry used to ground demo
// samples in actual hardware behavior.
type HostMetrics struct {
	CoreUtil  []float64 // per-core busy percentages
	RAMUsedGB float64
	CPUTempC  float64 // zero when no sensor is readable
}

// HostReader samples host CPU, memory, and temperature via gopsutil.
type HostReader struct {
	primed bool
}

func NewHostReader() *HostReader {
	return &HostReader{}
}

// Read returns the latest host metrics. CPU utilization is measured since
// the previous Read call; the first call primes the counters and reports
// zero utilization.
func (h *HostReader) Read() (HostMetrics, error) {
	// Interval 0 compares against the previous call's CPU times.
	perCore, err := cpu.Percent(0, true)
	if err != nil {
		return HostMetrics{}, fmt.Errorf("reading per-core cpu: %w", err)
	}
	if !h.primed {
		h.primed = true
		perCore = make([]float64, len(perCore))
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return HostMetrics{}, fmt.Errorf("reading memory: %w", err)
	}

	m := HostMetrics{
		CoreUtil:  perCore,
		RAMUsedGB: float64(vm.Used) / (1024 * 1024 * 1024),
	}

	// Temperature sensors are best effort; plenty of hosts expose none.
	if temps, err := host.SensorsTemperatures(); err == nil {
		for _, t := range temps {
			if t.Temperature > 0 {
				m.CPUTempC = t.Temperature
				break
			}
		}
	}

	return m, nil
}
