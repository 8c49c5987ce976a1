package canary

import (
	"go.uber.org/atomic"

	"github.com/sweeney/canary/internal/logic"
)

// Modes holds the live operator flags. They may be set from any goroutine
// at any time; the controller reads them at the moment it decides on a cue.
type Modes struct {
	audio atomic.Bool
	wifi  atomic.Bool
	demo  atomic.Bool
}

// NewModes creates live flags starting from f.
func NewModes(f logic.ModeFlags) *Modes {
	m := &Modes{}
	m.audio.Store(f.AudioEnabled)
	m.wifi.Store(f.WifiConnected)
	m.demo.Store(f.DemoMode)
	return m
}

func (m *Modes) SetAudio(on bool) { m.audio.Store(on) }
func (m *Modes) SetWifi(on bool)  { m.wifi.Store(on) }
func (m *Modes) SetDemo(on bool)  { m.demo.Store(on) }

// Snapshot returns the flags as they are now.
func (m *Modes) Snapshot() logic.ModeFlags {
	return logic.ModeFlags{
		AudioEnabled:  m.audio.Load(),
		WifiConnected: m.wifi.Load(),
		DemoMode:      m.demo.Load(),
	}
}
