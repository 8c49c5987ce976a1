// Package display formats the canary's status panel and fans renders out
// to every attached view.
package display

import (
	"fmt"

	"github.com/sweeney/canary/internal/logic"
)

// Greeting is shown once at startup.
var Greeting = []string{"Good Air", "Canary"}

// Tombstone replaces the panel once the canary is dead.
var Tombstone = []string{"R.I.P.", "Canary"}

// Panel is the readings view as fixed-width fields.
type Panel struct {
	CO2         string
	Temperature string
	Humidity    string
	TVOC        string
	Particulate string
	Mode        string
}

// NewPanel formats r and m. Readings are expected to be clamped already.
func NewPanel(r logic.Readings, m logic.ModeFlags) Panel {
	return Panel{
		CO2:         fmt.Sprintf("%04dppm", r.CO2),
		Temperature: fmt.Sprintf("%04.1fC", r.Temperature),
		Humidity:    fmt.Sprintf("%04.1f%%", r.Humidity),
		TVOC:        fmt.Sprintf("%04dppm", r.VOCIndex),
		Particulate: fmt.Sprintf("%04d", r.Particulate),
		Mode:        ModeLine(m),
	}
}

// ModeLine describes the active modes. Demo mode wins over everything else.
func ModeLine(m logic.ModeFlags) string {
	switch {
	case m.DemoMode:
		return "Demo Mode"
	case m.AudioEnabled && m.WifiConnected:
		return "Wifi Audio"
	case m.WifiConnected:
		return "Wifi"
	case m.AudioEnabled:
		return "Audio"
	default:
		return ""
	}
}

// Lines returns the panel as label/value rows, top to bottom.
func (p Panel) Lines() []string {
	return []string{
		"CO2", p.CO2,
		"TEMP", p.Temperature,
		"RH", p.Humidity,
		"TVOC", p.TVOC,
		"PM2.5", p.Particulate,
		p.Mode,
	}
}
