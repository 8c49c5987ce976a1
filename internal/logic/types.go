// Package logic contains pure business logic for the canary's air-quality state tracking.
// This package has NO external dependencies (no GPIO, MQTT, servo, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// State represents the canary's behavioural state.
type State string

const (
	StateNormal     State = "NORMAL"
	StateStuffy     State = "STUFFY"
	StateOpenWindow State = "OPEN_WINDOW"
	StatePassOut    State = "PASS_OUT"
	StateDead       State = "DEAD"
	StateRecovering State = "RECOVERING"
)

// AllStates lists every state in display order.
var AllStates = []State{StateNormal, StateStuffy, StateOpenWindow, StatePassOut, StateDead, StateRecovering}

// ParseState converts a state name back into a State.
func ParseState(s string) (State, error) {
	for _, st := range AllStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown state %q", s)
}

// EventType represents a published canary event.
type EventType string

const (
	EventTransition EventType = "TRANSITION"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	From      State
	To        State
	CO2       int
}

// Display bounds. Values outside them are reset to zero rather than shown as garbage.
const (
	MaxIndex   = 9999
	MaxClimate = 99.9
)

// Readings is one sample from the air-quality sensor.
type Readings struct {
	CO2         int     // ppm
	Temperature float64 // degrees C
	Humidity    float64 // %RH
	VOCIndex    int
	Particulate int // PM2.5
}

// Clamped returns a copy with every out-of-range field reset to zero.
func (r Readings) Clamped() Readings {
	return Readings{
		CO2:         clampIndex(r.CO2),
		Temperature: clampClimate(r.Temperature),
		Humidity:    clampClimate(r.Humidity),
		VOCIndex:    clampIndex(r.VOCIndex),
		Particulate: clampIndex(r.Particulate),
	}
}

func clampIndex(v int) int {
	if v < 0 || v > MaxIndex {
		return 0
	}
	return v
}

func clampClimate(v float64) float64 {
	if math.IsNaN(v) || v < 0 || v >= MaxClimate {
		return 0
	}
	return v
}

// ModeFlags is a point-in-time view of the operator switches.
type ModeFlags struct {
	AudioEnabled  bool
	WifiConnected bool
	DemoMode      bool
}

// Thresholds are the CO2 levels (ppm) at which each elevated state begins.
type Thresholds struct {
	Stuffy     int
	OpenWindow int
	PassOut    int
	Dead       int
}

// DefaultThresholds returns the thresholds the canary ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{Stuffy: 1000, OpenWindow: 2000, PassOut: 3000, Dead: 4000}
}

// Validate checks that the thresholds are strictly ascending.
func (t Thresholds) Validate() error {
	if t.Stuffy <= 0 {
		return errors.New("stuffy threshold must be positive")
	}
	if !(t.Stuffy < t.OpenWindow && t.OpenWindow < t.PassOut && t.PassOut < t.Dead) {
		return fmt.Errorf("thresholds must be ascending: stuffy=%d open_window=%d pass_out=%d dead=%d",
			t.Stuffy, t.OpenWindow, t.PassOut, t.Dead)
	}
	return nil
}

// EventCounts tracks the number of transitions into each state since startup.
type EventCounts struct {
	Stuffy     int
	OpenWindow int
	PassOut    int
	Dead       int
	Recovering int
}

// Add counts a transition into s.
func (c *EventCounts) Add(s State) {
	switch s {
	case StateStuffy:
		c.Stuffy++
	case StateOpenWindow:
		c.OpenWindow++
	case StatePassOut:
		c.PassOut++
	case StateDead:
		c.Dead++
	case StateRecovering:
		c.Recovering++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
