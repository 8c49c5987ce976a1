package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/canary/internal/display"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Halted        bool         `json:"halted"`
	View          string       `json:"view"`
	Readings      ReadingsJSON `json:"readings"`
	Modes         ModesJSON    `json:"modes"`
	Position      int          `json:"actuator_position"`
	LastChange    string       `json:"last_change,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingsJSON is the JSON representation of the last readings.
type ReadingsJSON struct {
	CO2         int     `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	VOCIndex    int     `json:"voc_index"`
	Particulate int     `json:"pm2_5"`
}

// ModesJSON is the JSON representation of the mode flags.
type ModesJSON struct {
	Audio bool   `json:"audio"`
	Wifi  bool   `json:"wifi"`
	Demo  bool   `json:"demo"`
	Label string `json:"label"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Stuffy     int `json:"stuffy"`
	OpenWindow int `json:"open_window"`
	PassOut    int `json:"pass_out"`
	Dead       int `json:"dead"`
	Recovering int `json:"recovering"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ThresholdsJSON is the JSON representation of the CO2 thresholds.
type ThresholdsJSON struct {
	Stuffy     int `json:"stuffy"`
	OpenWindow int `json:"open_window"`
	PassOut    int `json:"pass_out"`
	Dead       int `json:"dead"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64          `json:"heartbeat_ms"`
	Broker      string         `json:"broker"`
	HTTPPort    string         `json:"http_port"`
	SessionID   string         `json:"session_id,omitempty"`
	Thresholds  ThresholdsJSON `json:"thresholds"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:  state,
		Halted: snap.Halted,
		View:   string(snap.View),
		Readings: ReadingsJSON{
			CO2:         snap.Readings.CO2,
			Temperature: snap.Readings.Temperature,
			Humidity:    snap.Readings.Humidity,
			VOCIndex:    snap.Readings.VOCIndex,
			Particulate: snap.Readings.Particulate,
		},
		Modes: ModesJSON{
			Audio: snap.Modes.AudioEnabled,
			Wifi:  snap.Modes.WifiConnected,
			Demo:  snap.Modes.DemoMode,
			Label: display.ModeLine(snap.Modes),
		},
		Position:      snap.Position,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Stuffy:     snap.Counts.Stuffy,
			OpenWindow: snap.Counts.OpenWindow,
			PassOut:    snap.Counts.PassOut,
			Dead:       snap.Counts.Dead,
			Recovering: snap.Counts.Recovering,
		},
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			SessionID:   snap.Config.SessionID,
			Thresholds: ThresholdsJSON{
				Stuffy:     snap.Config.Thresholds.Stuffy,
				OpenWindow: snap.Config.Thresholds.OpenWindow,
				PassOut:    snap.Config.Thresholds.PassOut,
				Dead:       snap.Config.Thresholds.Dead,
			},
		},
	}
	if !snap.LastChange.IsZero() {
		inner.LastChange = snap.LastChange.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
