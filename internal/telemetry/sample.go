package telemetry

import "time"

// TelemetrySample is one hardware/performance observation for one model,
// normalized from the harness wire format. Pointer fields serialize as null
// when the harness did not report that metric. Samples are immutable once
// constructed; the engine only derives from them, never mutates them.
type TelemetrySample struct {
	WallClockMs int64 `json:"timestamp_ms"`
	Model       Model `json:"model"`

	CPUPowerW *float64 `json:"cpu_power_w,omitempty"`
	GPUPowerW *float64 `json:"gpu_power_w,omitempty"`
	ANEPowerW *float64 `json:"ane_power_w,omitempty"`

	CPUTempC *float64 `json:"cpu_temp_c,omitempty"`
	GPUTempC *float64 `json:"gpu_temp_c,omitempty"`

	RAMUsedGB *float64 `json:"ram_used_gb,omitempty"`

	// Instantaneous and smoothed generation throughput.
	TokensPerSec    *float64 `json:"tps,omitempty"`
	TokensPerSecAvg *float64 `json:"tps_avg,omitempty"`

	// Cumulative energy per power domain since generation started.
	CPUEnergyWh *float64 `json:"cpu_energy_wh,omitempty"`
	GPUEnergyWh *float64 `json:"gpu_energy_wh,omitempty"`
	ANEEnergyWh *float64 `json:"ane_energy_wh,omitempty"`

	// Per-core utilization percentages, split by core class where the
	// host distinguishes performance and efficiency cores.
	CoreUtil  []float64 `json:"core_util,omitempty"`
	PCoreUtil []float64 `json:"p_core_util,omitempty"`
	ECoreUtil []float64 `json:"e_core_util,omitempty"`
}

// WallClock returns the sample's absolute timestamp.
func (s TelemetrySample) WallClock() time.Time {
	return time.UnixMilli(s.WallClockMs)
}

// EnrichedSample is a TelemetrySample stamped with the reconciled,
// turn-and-offset-adjusted time coordinate. This is the only shape chart
// consumers ever see.
type EnrichedSample struct {
	TelemetrySample
	RelativeSeconds float64 `json:"relative_s"`
}

// Clone returns a deep copy of the EnrichedSample, duplicating the
// utilization vectors so the copy cannot alias engine-held state.
func (s EnrichedSample) Clone() EnrichedSample {
	c := s
	if len(s.CoreUtil) > 0 {
		c.CoreUtil = append([]float64(nil), s.CoreUtil...)
	}
	if len(s.PCoreUtil) > 0 {
		c.PCoreUtil = append([]float64(nil), s.PCoreUtil...)
	}
	if len(s.ECoreUtil) > 0 {
		c.ECoreUtil = append([]float64(nil), s.ECoreUtil...)
	}
	return c
}

// CloneSamples deep-copies a slice of enriched samples. Used by the engine's
// snapshot read path so returned sequences are never live aliases.
func CloneSamples(in []EnrichedSample) []EnrichedSample {
	if in == nil {
		return nil
	}
	out := make([]EnrichedSample, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
