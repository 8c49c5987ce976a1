package logic

import "time"

// Evaluate maps a CO2 reading and the previous state to the next state.
//
// Once the canary is in OPEN_WINDOW or PASS_OUT it only relaxes through
// RECOVERING, never stepping down through the intermediate states. A reading
// that falls from pass-out level straight to stuffy level therefore reports
// RECOVERING, not STUFFY.
func Evaluate(co2 int, previous State, t Thresholds) State {
	switch {
	case previous == StatePassOut && co2 < t.PassOut:
		return StateRecovering
	case previous == StateOpenWindow && co2 < t.OpenWindow:
		return StateRecovering
	case co2 < t.Stuffy:
		return StateRecovering
	case co2 < t.OpenWindow:
		return StateStuffy
	case co2 < t.PassOut:
		return StateOpenWindow
	case co2 < t.Dead:
		return StatePassOut
	default:
		return StateDead
	}
}

// Heartbeat decides when a periodic heartbeat is due.
type Heartbeat struct {
	interval  time.Duration
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a heartbeat timer. The startTime is used for calculating uptime.
func NewHeartbeat(interval time.Duration, startTime time.Time) *Heartbeat {
	return &Heartbeat{
		interval:  interval,
		startTime: startTime,
		last:      startTime,
	}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or if
// the interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time) *HeartbeatData {
	if h.interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < h.interval {
		return nil
	}

	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
	}
}
