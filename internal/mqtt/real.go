package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealClient.
type Options struct {
	Broker        string
	ClientID      string
	ReadingsTopic string
	ModeTopic     string
	EventsTopic   string
	SystemTopic   string
	BufferSize    int

	// OnReadings and OnMode run on paho's callback goroutine and must not block.
	OnReadings func(logic.Readings)
	OnMode     func(ModeCommand)
}

// pahoClient is the part of paho.Client the canary uses.
type pahoClient interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// RealClient subscribes to readings and mode commands and publishes canary
// events. Messages published while the broker is unreachable are buffered
// and replayed, oldest first, on the next connect.
type RealClient struct {
	client    pahoClient
	opts      Options
	logger    *zap.Logger
	sessionID string

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool // at least one successful connect
}

// NewRealClient connects to the broker. If the broker does not answer within
// the connect timeout the client keeps retrying in the background and
// buffers everything published meanwhile.
func NewRealClient(opts Options, logger *zap.Logger) (*RealClient, error) {
	c := newClient(opts, logger)

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(fmt.Sprintf("%s-%s", opts.ClientID, c.sessionID[:8])).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.SystemTopic, WillPayload(), 1, true).
		SetOnConnectHandler(func(paho.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("connection lost", zap.Error(err))
		})

	client := paho.NewClient(po)
	c.client = client

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.logger.Warn("broker not reachable yet, buffering until connected", zap.String("broker", opts.Broker))
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return c, nil
}

func newClient(opts Options, logger *zap.Logger) *RealClient {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &RealClient{
		opts:      opts,
		logger:    logger,
		sessionID: uuid.NewString(),
		buffer:    newRingBuffer(opts.BufferSize, logger),
	}
}

// SessionID identifies this run of the daemon in lifecycle events.
func (c *RealClient) SessionID() string {
	return c.sessionID
}

// onConnect subscribes and replays whatever was buffered. Every connect
// after the first is announced with RECONNECTED.
func (c *RealClient) onConnect() {
	c.mu.Lock()
	reconnect := c.connected
	c.connected = true
	pending := c.buffer.drainAll()
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("broker", c.opts.Broker), zap.Bool("reconnect", reconnect))

	if c.opts.ReadingsTopic != "" {
		c.subscribe(c.opts.ReadingsTopic, 0, func(_ paho.Client, m paho.Message) {
			c.handleReadings(m.Payload())
		})
	}
	if c.opts.ModeTopic != "" {
		c.subscribe(c.opts.ModeTopic, 1, func(_ paho.Client, m paho.Message) {
			c.handleMode(m.Payload())
		})
	}

	for _, m := range pending {
		if err := c.send(m); err != nil {
			c.logger.Warn("replay failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		c.logger.Info("replayed buffered messages", zap.Int("count", len(pending)))
	}

	if reconnect {
		if err := c.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: EventReconnected}); err != nil {
			c.logger.Warn("publish reconnected failed", zap.Error(err))
		}
	}
}

func (c *RealClient) subscribe(topic string, qos byte, h paho.MessageHandler) {
	token := c.client.Subscribe(topic, qos, h)
	if !token.WaitTimeout(publishTimeout) {
		c.logger.Warn("subscribe timeout", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Warn("subscribe failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *RealClient) handleReadings(payload []byte) {
	r, err := ParseReadings(payload)
	if err != nil {
		c.logger.Warn("dropping readings", zap.Error(err))
		return
	}
	if c.opts.OnReadings != nil {
		c.opts.OnReadings(r)
	}
}

func (c *RealClient) handleMode(payload []byte) {
	cmd, err := ParseModeCommand(payload)
	if err != nil {
		c.logger.Warn("dropping mode command", zap.Error(err))
		return
	}
	if c.opts.OnMode != nil {
		c.opts.OnMode(cmd)
	}
}

// Publish sends a transition event.
func (c *RealClient) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return c.publish(bufferedMsg{topic: c.opts.EventsTopic, payload: payload, qos: 1})
}

// PublishSystem sends a lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(bufferedMsg{topic: c.opts.SystemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// publish sends m now, or buffers it if the connection is down or the
// send fails.
func (c *RealClient) publish(m bufferedMsg) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.buffer.push(m)
		c.mu.Unlock()
		c.logger.Debug("buffered while disconnected", zap.String("topic", m.topic))
		return nil
	}
	if err := c.send(m); err != nil {
		c.mu.Lock()
		c.buffer.push(m)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *RealClient) send(m bufferedMsg) error {
	token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (c *RealClient) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.len()
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second quiesce
	return nil
}
