package main

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/canary"
	"github.com/sweeney/canary/internal/gpio"
	"github.com/sweeney/canary/internal/logic"
	"github.com/sweeney/canary/internal/motion"
	"github.com/sweeney/canary/internal/mqtt"
	"github.com/sweeney/canary/internal/status"
)

// daemon is everything the run loop drives. switches, mqttStatus, network
// and push may be nil.
type daemon struct {
	controller *canary.Controller
	seq        *motion.Sequencer
	modes      *canary.Modes
	mailbox    *mqtt.Mailbox
	switches   *gpio.Watcher
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	network    func() *status.NetworkInfo
	push       func()
	logger     *zap.Logger

	haltLogged bool
}

// runLoop owns the controller. Readings, switch polls, heartbeats and
// signals are handled one at a time; a gesture blocks the loop.
func (d *daemon) runLoop(ctx context.Context, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(heartbeat, now())

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			d.logger.Info("shutting down", zap.String("signal", name))
			d.publishSystem(mqtt.EventShutdown, name, true, now())
			return nil

		case <-d.mailbox.Ready():
			r, ok := d.mailbox.Take()
			if !ok {
				continue
			}
			d.onReadings(ctx, r)

		case <-tick:
			t := now()
			changed := d.pollSwitches()

			if data := hb.Check(t); data != nil {
				if d.network != nil {
					if info := d.network(); info != nil {
						d.tracker.SetNetwork(info)
						d.modes.SetWifi(info.WifiConnected())
					}
				}
				d.refresh()
				snap := d.tracker.Snapshot()
				d.logger.Info("heartbeat",
					zap.Duration("uptime", data.Uptime),
					zap.String("state", string(snap.State)),
					zap.Int("co2", snap.Readings.CO2),
					zap.Int("replaced", d.mailbox.Replaced()))
				d.publishSystem(mqtt.EventHeartbeat, "", false, data.Timestamp)
				changed = true
			}

			if d.refresh() || changed {
				d.notify()
			}
		}
	}
}

func (d *daemon) onReadings(ctx context.Context, r logic.Readings) {
	out, err := d.controller.OnTick(ctx, r)
	if errors.Is(err, canary.ErrHalted) {
		if !d.haltLogged {
			d.logger.Info("canary is dead, ignoring readings until restart")
			d.haltLogged = true
		}
		return
	}
	if err != nil {
		d.logger.Warn("tick failed", zap.Error(err))
	}

	d.tracker.Record(out)
	d.tracker.SetPosition(int(d.seq.Position()))

	if out.Changed {
		event := logic.Event{
			Timestamp: out.At,
			Type:      logic.EventTransition,
			From:      out.Previous,
			To:        out.State,
			CO2:       out.Readings.CO2,
		}
		if err := d.publisher.Publish(event); err != nil {
			d.logger.Warn("publish error", zap.Error(err))
		}
	}
	if out.Halted {
		d.publishSystem(mqtt.EventHalted, "", true, out.At)
	}
	d.notify()
}

// pollSwitches applies switch changes to the live modes.
func (d *daemon) pollSwitches() bool {
	if d.switches == nil {
		return false
	}
	changes, err := d.switches.Poll()
	if err != nil {
		d.logger.Warn("switch read error", zap.Error(err))
		return false
	}
	for _, c := range changes {
		switch c.Switch {
		case gpio.SwitchAudio:
			d.modes.SetAudio(c.On)
		case gpio.SwitchDemo:
			d.modes.SetDemo(c.On)
		}
		d.logger.Info("switch changed", zap.String("switch", string(c.Switch)), zap.Bool("on", c.On))
	}
	return len(changes) > 0
}

// refresh copies the live modes and connection state into the tracker and
// reports whether either changed.
func (d *daemon) refresh() bool {
	before := d.tracker.Snapshot()
	modes := d.modes.Snapshot()
	d.tracker.SetModes(modes)
	connected := before.MQTTConnected
	if d.mqttStatus != nil {
		connected = d.mqttStatus.IsConnected()
		d.tracker.SetMQTTConnected(connected)
	}
	return modes != before.Modes || connected != before.MQTTConnected
}

func (d *daemon) notify() {
	if d.push != nil {
		d.push()
	}
}

// publishSystem sends a lifecycle event carrying the full status snapshot.
func (d *daemon) publishSystem(name, reason string, retained bool, at time.Time) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	event := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      name,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), name, reason),
	}
	if err := d.publisher.PublishSystem(event); err != nil {
		d.logger.Warn("failed to publish system event", zap.String("event", name), zap.Error(err))
		return
	}
	d.logger.Debug("published system event", zap.String("event", name))
}
