// Package status provides a thread-safe status tracker for the canary daemon.
// It is written by the run loop and read by HTTP handlers and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sweeney/canary/internal/canary"
	"github.com/sweeney/canary/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// WifiConnected reports whether the WiFi link is up.
func (n *NetworkInfo) WifiConnected() bool {
	return n != nil && n.WifiStatus == "connected"
}

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	SessionID   string
	Thresholds  logic.Thresholds
}

// View is what the status display is currently showing.
type View string

const (
	ViewNone      View = ""
	ViewGreeting  View = "greeting"
	ViewReadings  View = "readings"
	ViewTombstone View = "tombstone"
)

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Halted        bool
	View          View
	Readings      logic.Readings
	Modes         logic.ModeFlags
	Position      int
	LastChange    time.Time
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
// It also implements canary.Display so the web page shows what the panel shows.
type Tracker struct {
	mu    sync.RWMutex
	clock clock.Clock
	snap  Snapshot
}

// NewTracker creates a Tracker that reads time from clk.
func NewTracker(clk clock.Clock, cfg Config) *Tracker {
	return &Tracker{
		clock: clk,
		snap: Snapshot{
			State:     logic.StateNormal,
			StartTime: clk.Now(),
			Config:    cfg,
		},
	}
}

// Record applies the outcome of one controller tick.
func (t *Tracker) Record(out canary.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = out.State
	t.snap.Readings = out.Readings
	t.snap.Modes = out.Modes
	if out.Halted {
		t.snap.Halted = true
	}
	if out.Changed {
		t.snap.Counts.Add(out.State)
		t.snap.LastChange = out.At
	}
}

// SetPosition records the actuator position.
func (t *Tracker) SetPosition(p int) {
	t.mu.Lock()
	t.snap.Position = p
	t.mu.Unlock()
}

// SetModes records the live mode flags between ticks.
func (t *Tracker) SetModes(m logic.ModeFlags) {
	t.mu.Lock()
	t.snap.Modes = m
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

func (t *Tracker) RenderGreeting() error {
	t.mu.Lock()
	t.snap.View = ViewGreeting
	t.mu.Unlock()
	return nil
}

func (t *Tracker) RenderReadings(r logic.Readings, m logic.ModeFlags) error {
	t.mu.Lock()
	t.snap.View = ViewReadings
	t.snap.Readings = r
	t.snap.Modes = m
	t.mu.Unlock()
	return nil
}

func (t *Tracker) RenderTerminal() error {
	t.mu.Lock()
	t.snap.View = ViewTombstone
	t.mu.Unlock()
	return nil
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set from the tracker's clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	s.Now = t.clock.Now()
	return s
}
