package router

import (
	"encoding/json"
	"fmt"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/telemetry"
)

// rawSample mirrors the harness telemetry_update payload. The harness has
// shipped several field spellings and units over time; everything here is
// optional and gets coerced once, at this boundary, into the canonical
// TelemetrySample. The engine never sees the wire format.
type rawSample struct {
	TimestampMs *int64  `json:"timestamp_ms"`
	Model       *string `json:"model"`

	CPUPowerW  *float64 `json:"cpu_power_w"`
	CPUPowerMw *float64 `json:"cpu_power_mw"`
	GPUPowerW  *float64 `json:"gpu_power_w"`
	GPUPowerMw *float64 `json:"gpu_power_mw"`
	ANEPowerW  *float64 `json:"ane_power_w"`
	ANEPowerMw *float64 `json:"ane_power_mw"`

	CPUTempC *float64 `json:"cpu_temp_c"`
	GPUTempC *float64 `json:"gpu_temp_c"`

	RAMUsedGB    *float64 `json:"ram_used_gb"`
	RAMUsedBytes *float64 `json:"ram_used_bytes"`

	TPS    *float64 `json:"tps"`
	TPSAvg *float64 `json:"tps_avg"`

	CPUEnergyWh *float64 `json:"cpu_energy_wh"`
	GPUEnergyWh *float64 `json:"gpu_energy_wh"`
	ANEEnergyWh *float64 `json:"ane_energy_wh"`

	CoreUtil  []float64 `json:"core_util"`
	PCoreUtil []float64 `json:"p_core_util"`
	ECoreUtil []float64 `json:"e_core_util"`
}

const (
	milliwattsPerWatt = 1000.0
	bytesPerGB        = 1024.0 * 1024.0 * 1024.0
)

// watts picks the watt-denominated value, converting from milliwatts when
// only the legacy field is present.
func watts(w, mw *float64) *float64 {
	if w != nil {
		return w
	}
	if mw != nil {
		v := *mw / milliwattsPerWatt
		return &v
	}
	return nil
}

func normalizeSample(raw []byte) (telemetry.TelemetrySample, error) {
	var rs rawSample
	if err := json.Unmarshal(raw, &rs); err != nil {
		return telemetry.TelemetrySample{}, fmt.Errorf("decoding payload: %w", err)
	}

	if rs.Model == nil || *rs.Model == "" {
		return telemetry.TelemetrySample{}, fmt.Errorf("missing model tag")
	}
	model, err := telemetry.ParseModel(*rs.Model)
	if err != nil {
		return telemetry.TelemetrySample{}, err
	}
	if rs.TimestampMs == nil {
		return telemetry.TelemetrySample{}, fmt.Errorf("missing timestamp_ms")
	}

	ram := rs.RAMUsedGB
	if ram == nil && rs.RAMUsedBytes != nil {
		v := *rs.RAMUsedBytes / bytesPerGB
		ram = &v
	}

	return telemetry.TelemetrySample{
		WallClockMs:     *rs.TimestampMs,
		Model:           model,
		CPUPowerW:       watts(rs.CPUPowerW, rs.CPUPowerMw),
		GPUPowerW:       watts(rs.GPUPowerW, rs.GPUPowerMw),
		ANEPowerW:       watts(rs.ANEPowerW, rs.ANEPowerMw),
		CPUTempC:        rs.CPUTempC,
		GPUTempC:        rs.GPUTempC,
		RAMUsedGB:       ram,
		TokensPerSec:    rs.TPS,
		TokensPerSecAvg: rs.TPSAvg,
		CPUEnergyWh:     rs.CPUEnergyWh,
		GPUEnergyWh:     rs.GPUEnergyWh,
		ANEEnergyWh:     rs.ANEEnergyWh,
		CoreUtil:        rs.CoreUtil,
		PCoreUtil:       rs.PCoreUtil,
		ECoreUtil:       rs.ECoreUtil,
	}, nil
}
