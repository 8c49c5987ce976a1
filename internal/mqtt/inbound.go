package mqtt

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sweeney/canary/internal/logic"
)

// esdkReadings is the payload the ESDK sensor hub publishes.
type esdkReadings struct {
	Hostname string `json:"hostname"`
	Sensors  struct {
		THV struct {
			Temperature float64 `json:"temperature"`
			Humidity    float64 `json:"humidity"`
			VOCIndex    float64 `json:"vocIndex"`
		} `json:"thv"`
		CO2 struct {
			CO2 float64 `json:"co2"`
		} `json:"co2"`
		PM struct {
			PM1  float64 `json:"pm1.0"`
			PM25 float64 `json:"pm2.5"`
			PM4  float64 `json:"pm4.0"`
			PM10 float64 `json:"pm10"`
		} `json:"pm"`
	} `json:"sensors"`
}

// ParseReadings decodes an ESDK readings payload. Missing sensor blocks read
// as zero; range checks are left to logic.Readings.Clamped.
func ParseReadings(payload []byte) (logic.Readings, error) {
	var p esdkReadings
	if err := json.Unmarshal(payload, &p); err != nil {
		return logic.Readings{}, fmt.Errorf("decode readings: %w", err)
	}
	s := p.Sensors
	return logic.Readings{
		CO2:         toInt(s.CO2.CO2),
		Temperature: s.THV.Temperature,
		Humidity:    s.THV.Humidity,
		VOCIndex:    toInt(s.THV.VOCIndex),
		Particulate: toInt(s.PM.PM25),
	}, nil
}

// toInt rounds a sensor value. Values that cannot be represented become -1
// so the clamp resets them.
func toInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt32 || v < math.MinInt32 {
		return -1
	}
	return int(math.Round(v))
}

// ModeCommand sets operator modes. Absent fields leave the mode alone.
type ModeCommand struct {
	Audio *bool `json:"audio,omitempty"`
	Demo  *bool `json:"demo,omitempty"`
	Wifi  *bool `json:"wifi,omitempty"`
}

// ParseModeCommand decodes a mode command payload.
func ParseModeCommand(payload []byte) (ModeCommand, error) {
	var c ModeCommand
	if err := json.Unmarshal(payload, &c); err != nil {
		return ModeCommand{}, fmt.Errorf("decode mode command: %w", err)
	}
	return c, nil
}
