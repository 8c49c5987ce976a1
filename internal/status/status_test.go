package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sweeney/canary/internal/canary"
	"github.com/sweeney/canary/internal/logic"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newMockTracker(cfg Config) (*Tracker, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(epoch)
	return NewTracker(clk, cfg), clk
}

func TestNewTracker(t *testing.T) {
	cfg := Config{HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPPort: ":8080"}
	tr, _ := newMockTracker(cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(epoch) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, epoch)
	}
	if snap.Config.HTTPPort != ":8080" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":8080")
	}
	if snap.State != logic.StateNormal {
		t.Errorf("expected NORMAL initially, got %s", snap.State)
	}
	if snap.Halted || snap.MQTTConnected {
		t.Error("expected not halted and not connected initially")
	}
}

func TestRecordCountsTransitions(t *testing.T) {
	tr, clk := newMockTracker(Config{})

	changedAt := clk.Now().Add(time.Minute)
	tr.Record(canary.Outcome{At: changedAt, Previous: logic.StateNormal, State: logic.StateStuffy, Changed: true,
		Readings: logic.Readings{CO2: 1500}, Modes: logic.ModeFlags{AudioEnabled: true}})
	tr.Record(canary.Outcome{At: changedAt.Add(time.Minute), Previous: logic.StateStuffy, State: logic.StateStuffy,
		Readings: logic.Readings{CO2: 1600}})

	snap := tr.Snapshot()
	if snap.State != logic.StateStuffy {
		t.Errorf("State: got %s, want STUFFY", snap.State)
	}
	if snap.Counts.Stuffy != 1 {
		t.Errorf("Counts.Stuffy: got %d, want 1", snap.Counts.Stuffy)
	}
	if !snap.LastChange.Equal(changedAt) {
		t.Errorf("LastChange: got %v, want %v", snap.LastChange, changedAt)
	}
	if snap.Readings.CO2 != 1600 {
		t.Errorf("Readings.CO2: got %d, want 1600", snap.Readings.CO2)
	}
}

func TestRecordHaltIsSticky(t *testing.T) {
	tr, _ := newMockTracker(Config{})
	tr.Record(canary.Outcome{State: logic.StateDead, Changed: true, Halted: true})
	tr.Record(canary.Outcome{State: logic.StateDead})

	snap := tr.Snapshot()
	if !snap.Halted {
		t.Error("expected Halted to stay set")
	}
	if snap.Counts.Dead != 1 {
		t.Errorf("Counts.Dead: got %d, want 1", snap.Counts.Dead)
	}
}

func TestTrackerAsDisplay(t *testing.T) {
	var d canary.Display = &Tracker{clock: clock.NewMock()}
	tr := d.(*Tracker)

	d.RenderGreeting()
	if tr.Snapshot().View != ViewGreeting {
		t.Errorf("View: got %q", tr.Snapshot().View)
	}

	d.RenderReadings(logic.Readings{CO2: 700}, logic.ModeFlags{DemoMode: true})
	snap := tr.Snapshot()
	if snap.View != ViewReadings || snap.Readings.CO2 != 700 || !snap.Modes.DemoMode {
		t.Errorf("unexpected snapshot after readings: %+v", snap)
	}

	d.RenderTerminal()
	if tr.Snapshot().View != ViewTombstone {
		t.Errorf("View: got %q", tr.Snapshot().View)
	}
}

func TestSetters(t *testing.T) {
	tr, _ := newMockTracker(Config{})
	tr.SetMQTTConnected(true)
	tr.SetPosition(470)
	tr.SetModes(logic.ModeFlags{WifiConnected: true})
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", WifiStatus: "connected"})

	snap := tr.Snapshot()
	if !snap.MQTTConnected || snap.Position != 470 || !snap.Modes.WifiConnected {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if !snap.Network.WifiConnected() {
		t.Error("expected wifi connected")
	}
}

func TestNetworkWifiConnected(t *testing.T) {
	var nilInfo *NetworkInfo
	if nilInfo.WifiConnected() {
		t.Error("nil network info should not be connected")
	}
	if (&NetworkInfo{WifiStatus: "disconnected"}).WifiConnected() {
		t.Error("disconnected should not be connected")
	}
}

func TestSnapshotNowFromClock(t *testing.T) {
	tr, clk := newMockTracker(Config{})
	clk.Add(15 * time.Minute)

	snap := tr.Snapshot()
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr, _ := newMockTracker(Config{})
	tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
	tr.Record(canary.Outcome{State: logic.StateStuffy, Changed: true})

	snap1 := tr.Snapshot()
	snap1.Network.IP = "mutated"
	tr.Record(canary.Outcome{State: logic.StateOpenWindow, Changed: true})

	if snap1.State != logic.StateStuffy {
		t.Error("snapshot should be a copy; State was modified")
	}
	if tr.Snapshot().Network.IP != "1.2.3.4" {
		t.Error("mutating a snapshot's network leaked into the tracker")
	}
}

func testSnapshot() Snapshot {
	return Snapshot{
		State:         logic.StateOpenWindow,
		View:          ViewReadings,
		Readings:      logic.Readings{CO2: 2400, Temperature: 22.5, Humidity: 40, VOCIndex: 120, Particulate: 7},
		Modes:         logic.ModeFlags{AudioEnabled: true, WifiConnected: true},
		Position:      495,
		LastChange:    epoch.Add(10 * time.Minute),
		Counts:        logic.EventCounts{Stuffy: 2, OpenWindow: 1, Recovering: 1},
		StartTime:     epoch,
		Now:           epoch.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPPort: ":8080",
			SessionID: "abc", Thresholds: logic.DefaultThresholds()},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.State != "OPEN_WINDOW" || s.View != "readings" {
		t.Errorf("state/view: got %q/%q", s.State, s.View)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.Readings.CO2 != 2400 || s.Readings.Particulate != 7 {
		t.Errorf("readings: got %+v", s.Readings)
	}
	if s.Modes.Label != "Wifi Audio" {
		t.Errorf("mode label: got %q", s.Modes.Label)
	}
	if s.Counts.Stuffy != 2 || s.Counts.OpenWindow != 1 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if s.LastChange != "2026-01-01T00:10:00Z" {
		t.Errorf("LastChange: got %q", s.LastChange)
	}
	if s.Config.Thresholds.Dead != 4000 {
		t.Errorf("thresholds: got %+v", s.Config.Thresholds)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("web format should have no event/reason, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	data := FormatJSON(Snapshot{StartTime: epoch, Now: epoch.Add(time.Second)})

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)
	if parsed.Status.State != "UNKNOWN" {
		t.Errorf("State: got %q, want UNKNOWN", parsed.Status.State)
	}

	var raw map[string]map[string]interface{}
	json.Unmarshal(data, &raw)
	if _, ok := raw["status"]["last_change"]; ok {
		t.Error("last_change should be omitted before any transition")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.Config.SessionID != "abc" {
		t.Errorf("SessionID: got %q", parsed.Status.Config.SessionID)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := testSnapshot()
	snap.Network = &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)
	if parsed.Status.Network == nil || parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("network: got %+v", parsed.Status.Network)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(clock.New(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Record(canary.Outcome{State: logic.StateStuffy, Changed: i%2 == 0})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
			tr.RenderReadings(logic.Readings{CO2: i}, logic.ModeFlags{})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
