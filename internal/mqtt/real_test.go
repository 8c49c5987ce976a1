package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/logic"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakePaho stands in for a broker connection.
type fakePaho struct {
	mu           sync.Mutex
	open         bool
	publishErr   error
	published    []bufferedMsg
	subscribed   map[string]byte
	disconnected bool
}

func newFakePaho(open bool) *fakePaho {
	return &fakePaho{open: open, subscribed: map[string]byte{}}
}

func (f *fakePaho) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return doneToken{err: f.publishErr}
	}
	f.published = append(f.published, bufferedMsg{topic: topic, payload: payload.([]byte), qos: qos, retained: retained})
	return doneToken{}
}

func (f *fakePaho) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic] = qos
	return doneToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakePaho) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	for i, m := range f.published {
		out[i] = m.topic
	}
	return out
}

func testOptions() Options {
	return Options{
		Broker:        "tcp://test:1883",
		ClientID:      "canary",
		ReadingsTopic: ReadingsTopic,
		ModeTopic:     ModeTopic,
		EventsTopic:   EventsTopic,
		SystemTopic:   SystemTopic,
		BufferSize:    10,
	}
}

func newTestClient(opts Options, open bool) (*RealClient, *fakePaho) {
	fp := newFakePaho(open)
	c := newClient(opts, zap.NewNop())
	c.client = fp
	return c, fp
}

func transition(to logic.State) logic.Event {
	return logic.Event{Timestamp: time.Now(), Type: logic.EventTransition, From: logic.StateNormal, To: to, CO2: 1500}
}

func TestRealClientPublishesWhenConnected(t *testing.T) {
	c, fp := newTestClient(testOptions(), true)

	if err := c.Publish(transition(logic.StateStuffy)); err != nil {
		t.Fatal(err)
	}
	if err := c.PublishSystem(SystemEvent{Event: EventStartup, Retained: true}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{EventsTopic, SystemTopic}, fp.topics()); diff != "" {
		t.Errorf("topics mismatch (-want +got):\n%s", diff)
	}
	if !fp.published[1].retained || fp.published[0].retained {
		t.Error("only the STARTUP event should be retained")
	}
	if c.Buffered() != 0 {
		t.Errorf("nothing should be buffered, got %d", c.Buffered())
	}
}

func TestRealClientBuffersWhileDisconnected(t *testing.T) {
	c, fp := newTestClient(testOptions(), false)

	c.PublishSystem(SystemEvent{Event: EventStartup, Retained: true})
	c.Publish(transition(logic.StateStuffy))
	c.Publish(transition(logic.StateOpenWindow))

	if c.Buffered() != 3 {
		t.Fatalf("expected 3 buffered, got %d", c.Buffered())
	}
	if len(fp.topics()) != 0 {
		t.Fatal("nothing should reach the broker while disconnected")
	}

	// first connect replays without announcing a reconnect
	fp.open = true
	c.onConnect()

	if diff := cmp.Diff([]string{SystemTopic, EventsTopic, EventsTopic}, fp.topics()); diff != "" {
		t.Errorf("replay mismatch (-want +got):\n%s", diff)
	}
	if c.Buffered() != 0 {
		t.Errorf("buffer should be drained, got %d", c.Buffered())
	}
}

func TestRealClientAnnouncesReconnect(t *testing.T) {
	c, fp := newTestClient(testOptions(), true)
	c.onConnect()

	fp.open = false
	c.Publish(transition(logic.StatePassOut))
	fp.open = true
	c.onConnect()

	topics := fp.topics()
	if diff := cmp.Diff([]string{EventsTopic, SystemTopic}, topics); diff != "" {
		t.Fatalf("topics mismatch (-want +got):\n%s", diff)
	}
	if got := string(fp.published[1].payload); !strings.Contains(got, `"event":"RECONNECTED"`) {
		t.Errorf("expected RECONNECTED after replay, got %s", got)
	}
}

func TestRealClientSubscribesOnConnect(t *testing.T) {
	c, fp := newTestClient(testOptions(), true)
	c.onConnect()

	want := map[string]byte{ReadingsTopic: 0, ModeTopic: 1}
	if diff := cmp.Diff(want, fp.subscribed); diff != "" {
		t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
	}
}

func TestRealClientFailedSendIsBuffered(t *testing.T) {
	c, fp := newTestClient(testOptions(), true)
	fp.publishErr = errors.New("broker says no")

	if err := c.Publish(transition(logic.StateStuffy)); err == nil {
		t.Fatal("expected publish error")
	}
	if c.Buffered() != 1 {
		t.Errorf("failed message should be buffered, got %d", c.Buffered())
	}
}

func TestRealClientHandlers(t *testing.T) {
	var gotReadings []logic.Readings
	var gotModes []ModeCommand
	opts := testOptions()
	opts.OnReadings = func(r logic.Readings) { gotReadings = append(gotReadings, r) }
	opts.OnMode = func(m ModeCommand) { gotModes = append(gotModes, m) }
	c, _ := newTestClient(opts, true)

	c.handleReadings([]byte(`{"sensors":{"co2":{"co2":950}}}`))
	c.handleReadings([]byte(`garbage`))
	c.handleMode([]byte(`{"audio":false}`))
	c.handleMode([]byte(`[`))

	if len(gotReadings) != 1 || gotReadings[0].CO2 != 950 {
		t.Errorf("unexpected readings %+v", gotReadings)
	}
	if len(gotModes) != 1 || gotModes[0].Audio == nil || *gotModes[0].Audio {
		t.Errorf("unexpected mode commands %+v", gotModes)
	}
}

func TestRealClientSessionAndClose(t *testing.T) {
	c, fp := newTestClient(testOptions(), true)
	if len(c.SessionID()) != 36 {
		t.Errorf("expected a uuid session id, got %q", c.SessionID())
	}
	other, _ := newTestClient(testOptions(), true)
	if other.SessionID() == c.SessionID() {
		t.Error("session ids should differ per client")
	}
	if !c.IsConnected() {
		t.Error("expected connected")
	}
	c.Close()
	if !fp.disconnected {
		t.Error("expected Disconnect on Close")
	}
}

func TestRealClientBufferOverflowDropsOldest(t *testing.T) {
	opts := testOptions()
	opts.BufferSize = 2
	c, fp := newTestClient(opts, false)

	c.Publish(transition(logic.StateStuffy))
	c.Publish(transition(logic.StateOpenWindow))
	c.Publish(transition(logic.StatePassOut))

	fp.open = true
	c.onConnect()
	if len(fp.published) != 2 {
		t.Fatalf("expected 2 replayed, got %d", len(fp.published))
	}
	if got := string(fp.published[1].payload); !strings.Contains(got, `"to":"PASS_OUT"`) {
		t.Errorf("newest message should survive, got %s", got)
	}
}
