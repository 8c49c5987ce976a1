// Package canary ties the evaluator, the motion sequencer, the audio player
// and the display together. One Controller is driven by one run loop.
package canary

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/audio"
	"github.com/sweeney/canary/internal/logic"
	"github.com/sweeney/canary/internal/motion"
)

// ErrHalted is returned by OnTick once the canary has died outside demo mode.
var ErrHalted = errors.New("canary: halted")

// Display renders what the canary knows. Implementations must not block for long.
type Display interface {
	RenderGreeting() error
	RenderReadings(r logic.Readings, m logic.ModeFlags) error
	RenderTerminal() error
}

// Config is the controller's behaviour.
type Config struct {
	Thresholds   logic.Thresholds
	Choreography motion.Choreography
}

// DefaultConfig returns the device's thresholds and choreography.
func DefaultConfig() Config {
	return Config{
		Thresholds:   logic.DefaultThresholds(),
		Choreography: motion.DefaultChoreography(),
	}
}

// Outcome describes what one tick did.
type Outcome struct {
	At       time.Time
	Previous logic.State
	State    logic.State
	Changed  bool
	Halted   bool
	Track    audio.Track
	Gesture  motion.Gesture
	Readings logic.Readings
	Modes    logic.ModeFlags
}

// Reaction is the cue and gesture a state change triggers.
type Reaction struct {
	Track   audio.Track
	Gesture motion.Gesture
}

// ReactionFor returns the reaction for entering state. ok is false for
// NORMAL, which is never entered by a transition.
func ReactionFor(state logic.State, demo bool) (r Reaction, ok bool) {
	switch state {
	case logic.StateRecovering:
		return Reaction{audio.TrackThatsBetter, motion.GestureRest}, true
	case logic.StateStuffy:
		return Reaction{audio.TrackStuffy, motion.GestureFlutter}, true
	case logic.StateOpenWindow:
		return Reaction{audio.TrackOpenWindow, motion.GestureWideFlutter}, true
	case logic.StatePassOut:
		return Reaction{audio.TrackPassOut, motion.GestureSlump}, true
	case logic.StateDead:
		if demo {
			return Reaction{audio.TrackDead, motion.GestureDemoCollapse}, true
		}
		return Reaction{audio.TrackDead, motion.GestureCollapse}, true
	default:
		return Reaction{}, false
	}
}

// Controller holds the canary's state and reacts to each reading.
type Controller struct {
	mu sync.Mutex

	cfg     Config
	seq     *motion.Sequencer
	player  audio.Player
	display Display
	modes   *Modes
	clock   clock.Clock
	logger  *zap.Logger

	state    logic.State
	readings logic.Readings
	halted   bool
}

// New creates a controller in NORMAL with zeroed readings.
func New(cfg Config, seq *motion.Sequencer, player audio.Player, display Display, modes *Modes, clk clock.Clock, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		seq:     seq,
		player:  player,
		display: display,
		modes:   modes,
		clock:   clk,
		logger:  logger,
		state:   logic.StateNormal,
	}
}

// Start shows the greeting, puts the wings at rest and yawns. It fires no transition.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.display.RenderGreeting(); err != nil {
		c.logger.Warn("display greeting failed", zap.Error(err))
	}
	if err := c.seq.Init(); err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	flags := c.modes.Snapshot()
	if err := c.player.Play(audio.TrackYawn, !flags.AudioEnabled); err != nil {
		c.logger.Warn("audio cue failed", zap.Stringer("track", audio.TrackYawn), zap.Error(err))
	}
	return ctx.Err()
}

// OnTick stores the readings, evaluates the next state and, if it changed,
// plays the cue and then runs the gesture. The display is notified on
// every tick. After the non-demo DEAD gesture every call returns ErrHalted
// and does nothing.
func (c *Controller) OnTick(ctx context.Context, r logic.Readings) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.halted {
		return Outcome{At: c.clock.Now(), Previous: c.state, State: c.state, Halted: true, Readings: c.readings}, ErrHalted
	}

	c.readings = r.Clamped()
	prev := c.state
	next := logic.Evaluate(c.readings.CO2, prev, c.cfg.Thresholds)
	flags := c.modes.Snapshot()

	out := Outcome{
		At:       c.clock.Now(),
		Previous: prev,
		State:    next,
		Changed:  next != prev,
		Readings: c.readings,
		Modes:    flags,
	}

	if out.Changed {
		if reaction, ok := ReactionFor(next, flags.DemoMode); ok {
			out.Track = reaction.Track
			out.Gesture = reaction.Gesture
			if err := c.react(ctx, reaction, !flags.AudioEnabled); err == nil && reaction.Gesture == motion.GestureCollapse {
				c.halted = true
				out.Halted = true
			}
		}
		c.logger.Info("state changed",
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
			zap.Int("co2", c.readings.CO2),
			zap.Bool("demo", flags.DemoMode))
		c.state = next
	}

	var err error
	if next == logic.StateDead {
		err = c.display.RenderTerminal()
	} else {
		err = c.display.RenderReadings(c.readings, flags)
	}
	if err != nil {
		c.logger.Warn("display update failed", zap.Error(err))
	}

	return out, nil
}

// react plays the cue and then performs the gesture. Failures are logged;
// the returned error is the gesture's.
func (c *Controller) react(ctx context.Context, r Reaction, muted bool) error {
	if err := c.player.Play(r.Track, muted); err != nil {
		c.logger.Warn("audio cue failed", zap.Stringer("track", r.Track), zap.Error(err))
	}
	err := c.cfg.Choreography.Perform(ctx, c.seq, r.Gesture)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("gesture failed", zap.String("gesture", string(r.Gesture)), zap.Error(err))
	}
	return err
}

// State returns the current state.
func (c *Controller) State() logic.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Readings returns the last clamped readings.
func (c *Controller) Readings() logic.Readings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readings
}

// Halted reports whether the canary has died for good.
func (c *Controller) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}
