package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sweeney/canary/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventTransition,
		From:      logic.StateNormal,
		To:        logic.StateStuffy,
		CO2:       1500,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"canary":{"timestamp":"2026-02-02T22:18:12Z","event":"TRANSITION","from":"NORMAL","to":"STUFFY","co2":1500}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	event := logic.Event{
		Timestamp: time.Date(2026, 6, 1, 9, 0, 0, 0, loc),
		Type:      logic.EventTransition,
		From:      logic.StatePassOut,
		To:        logic.StateDead,
		CO2:       4200,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatal(err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Canary.Timestamp != "2026-06-01T08:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Canary.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	tests := []struct {
		name  string
		event SystemEvent
		want  string
	}{
		{
			name:  "shutdown",
			event: SystemEvent{Timestamp: time.Date(2026, 2, 3, 19, 10, 0, 0, time.UTC), Event: EventShutdown, Reason: "SIGTERM"},
			want:  `{"system":{"timestamp":"2026-02-03T19:10:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`,
		},
		{
			name:  "reconnected omits reason",
			event: SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), Event: EventReconnected},
			want:  `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`,
		},
		{
			name:  "raw payload passes through",
			event: SystemEvent{Event: EventHeartbeat, RawPayload: []byte(`{"system":{"event":"HEARTBEAT"}}`)},
			want:  `{"system":{"event":"HEARTBEAT"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatSystemPayload(tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestWillPayload(t *testing.T) {
	want := `{"system":{"event":"LWT","reason":"CONNECTION_LOST"}}`
	if got := string(WillPayload()); got != want {
		t.Errorf("unexpected will:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestTopics(t *testing.T) {
	if ReadingsTopic != "airquality/esdk/readings" || EventsTopic != "canary/events" ||
		SystemTopic != "canary/system" || ModeTopic != "canary/mode/set" {
		t.Error("default topics changed")
	}
}

func TestParseReadings(t *testing.T) {
	payload := `{"hostname":"esdk","sensors":{"thv":{"temperature":21.4,"humidity":44.0,"vocIndex":101},"co2":{"co2":812},"pm":{"pm1.0":1,"pm2.5":3,"pm4.0":3,"pm10":4}}}`
	got, err := ParseReadings([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	want := logic.Readings{CO2: 812, Temperature: 21.4, Humidity: 44.0, VOCIndex: 101, Particulate: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReadingsMissingBlocks(t *testing.T) {
	got, err := ParseReadings([]byte(`{"sensors":{"co2":{"co2":1499.6}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got != (logic.Readings{CO2: 1500}) {
		t.Errorf("expected only rounded CO2, got %+v", got)
	}
}

func TestParseReadingsHugeValueIsClamped(t *testing.T) {
	got, err := ParseReadings([]byte(`{"sensors":{"co2":{"co2":1e12}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Clamped().CO2 != 0 {
		t.Errorf("expected out-of-range CO2 to clamp to 0, got %d", got.Clamped().CO2)
	}
}

func TestParseReadingsMalformed(t *testing.T) {
	if _, err := ParseReadings([]byte(`{"sensors":`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestParseModeCommand(t *testing.T) {
	cmd, err := ParseModeCommand([]byte(`{"demo":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Demo == nil || !*cmd.Demo {
		t.Errorf("expected demo=true, got %+v", cmd)
	}
	if cmd.Audio != nil || cmd.Wifi != nil {
		t.Errorf("absent fields should stay nil, got %+v", cmd)
	}
	if _, err := ParseModeCommand([]byte(`nope`)); err == nil {
		t.Error("expected error for malformed command")
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	e := logic.Event{Timestamp: time.Now(), Type: logic.EventTransition, From: logic.StateNormal, To: logic.StateStuffy, CO2: 1200}
	if err := f.Publish(e); err != nil {
		t.Fatal(err)
	}
	f.PublishSystem(SystemEvent{Event: EventStartup, Retained: true})
	f.PublishSystem(SystemEvent{Event: EventHeartbeat})

	if got := f.Transitions(); len(got) != 1 || got[0].To != logic.StateStuffy {
		t.Errorf("unexpected transitions %+v", got)
	}
	if diff := cmp.Diff([]string{EventStartup, EventHeartbeat}, f.SystemEventNames()); diff != "" {
		t.Errorf("system events mismatch (-want +got):\n%s", diff)
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("retained flag not recorded")
	}

	f.Reset()
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("expected empty fake after Reset")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(logic.Event{}); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestMailboxLatestWins(t *testing.T) {
	m := NewMailbox()
	if _, ok := m.Take(); ok {
		t.Fatal("new mailbox should be empty")
	}

	m.Put(logic.Readings{CO2: 1})
	m.Put(logic.Readings{CO2: 2})
	m.Put(logic.Readings{CO2: 3})
	if !m.Pending() {
		t.Error("expected a pending reading")
	}

	select {
	case <-m.Ready():
	default:
		t.Fatal("expected Ready to fire")
	}
	r, ok := m.Take()
	if !ok || r.CO2 != 3 {
		t.Errorf("expected latest reading 3, got %d (ok=%v)", r.CO2, ok)
	}
	if m.Replaced() != 2 {
		t.Errorf("expected 2 replaced readings, got %d", m.Replaced())
	}
	if _, ok := m.Take(); ok || m.Pending() {
		t.Error("mailbox should be empty after Take")
	}
}

func TestMailboxPutNeverBlocks(t *testing.T) {
	m := NewMailbox()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			m.Put(logic.Readings{CO2: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Put blocked with nobody taking")
	}
}
