// Package motion turns gestures into timed, single-step servo movements.
//
// Positions are PCA9685 pulse lengths and the scale is inverted: a lower
// value raises the wings further. Every move steps exactly one unit per
// paced delay and never jumps.
package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Position is a servo pulse length.
type Position int

// Positions are the reference wing positions, from rest to most extended.
type Positions struct {
	Rest           Position
	SlightlyRaised Position
	FullyRaised    Position
	Slumped        Position
	Collapsed      Position
}

// DefaultPositions returns the positions tuned for the canary's servo.
func DefaultPositions() Positions {
	return Positions{
		Rest:           495,
		SlightlyRaised: 470,
		FullyRaised:    445,
		Slumped:        225,
		Collapsed:      150,
	}
}

// Validate checks Rest > SlightlyRaised > FullyRaised > Slumped > Collapsed >= 0.
func (p Positions) Validate() error {
	if p.Collapsed < 0 {
		return fmt.Errorf("collapsed position %d is negative", p.Collapsed)
	}
	if !(p.Rest > p.SlightlyRaised && p.SlightlyRaised > p.FullyRaised &&
		p.FullyRaised > p.Slumped && p.Slumped > p.Collapsed) {
		return fmt.Errorf("positions must descend from rest: rest=%d slightly_raised=%d fully_raised=%d slumped=%d collapsed=%d",
			p.Rest, p.SlightlyRaised, p.FullyRaised, p.Slumped, p.Collapsed)
	}
	return nil
}

// Timing holds the fixed pauses that are not part of a gesture's own speed.
type Timing struct {
	RestStep time.Duration // per-step delay when returning to rest
	Settle   time.Duration // pause at each end of a flutter stroke
	DeadHold time.Duration // hold at the collapsed position before halting
}

// DefaultTiming returns the device's pacing.
func DefaultTiming() Timing {
	return Timing{
		RestStep: 3 * time.Millisecond,
		Settle:   100 * time.Millisecond,
		DeadHold: 2 * time.Second,
	}
}

// Actuator is the servo the sequencer owns.
type Actuator interface {
	SetPosition(pulse int) error
}

// ErrHalted is returned by every gesture after Dead has run.
var ErrHalted = errors.New("motion: sequencer halted")

// Path returns the positions visited moving from one position to another,
// one unit at a time. from is excluded, to is included. Equal positions
// yield an empty path.
func Path(from, to Position) []Position {
	if from == to {
		return nil
	}
	step := Position(1)
	n := int(to - from)
	if n < 0 {
		step = -1
		n = -n
	}
	out := make([]Position, n)
	p := from
	for i := range out {
		p += step
		out[i] = p
	}
	return out
}

// Sequencer owns the actuator and runs one gesture at a time.
// Gestures block the caller for their full duration.
type Sequencer struct {
	mu     sync.Mutex
	act    Actuator
	pacer  Pacer
	timing Timing
	logger *zap.Logger

	pos    Position
	halted bool

	// per-gesture actuator failure tally
	failures int
	lastErr  error
}

// NewSequencer creates a sequencer that believes the actuator is at start.
func NewSequencer(act Actuator, pacer Pacer, start Position, timing Timing, logger *zap.Logger) *Sequencer {
	return &Sequencer{
		act:    act,
		pacer:  pacer,
		timing: timing,
		logger: logger,
		pos:    start,
	}
}

// Position returns the last position written.
func (s *Sequencer) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Halted reports whether Dead has run.
func (s *Sequencer) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Init writes the current position once without stepping, so the servo
// holds a known position at startup.
func (s *Sequencer) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		return ErrHalted
	}
	if err := s.act.SetPosition(int(s.pos)); err != nil {
		s.logger.Warn("actuator init failed", zap.Int("position", int(s.pos)), zap.Error(err))
	}
	return nil
}

// ReturnToRest steps from the current position to rest.
func (s *Sequencer) ReturnToRest(ctx context.Context, rest Position) error {
	return s.gesture("return-to-rest", func() error {
		return s.stepTo(ctx, rest, s.timing.RestStep)
	})
}

// Flutter raises the wings to up and lowers them to down, repeat times,
// settling at each end.
func (s *Sequencer) Flutter(ctx context.Context, down, up Position, stepDelay time.Duration, repeat int) error {
	return s.gesture("flutter", func() error {
		for i := 0; i < repeat; i++ {
			if err := s.stepTo(ctx, up, stepDelay); err != nil {
				return err
			}
			if err := s.pacer.Wait(ctx, s.timing.Settle); err != nil {
				return err
			}
			if err := s.stepTo(ctx, down, stepDelay); err != nil {
				return err
			}
			if err := s.pacer.Wait(ctx, s.timing.Settle); err != nil {
				return err
			}
		}
		return nil
	})
}

// Collapse steps to end and leaves the wings there.
func (s *Sequencer) Collapse(ctx context.Context, end Position, stepDelay time.Duration) error {
	return s.gesture("collapse", func() error {
		return s.stepTo(ctx, end, stepDelay)
	})
}

// Hold keeps the actuator where it is for d.
func (s *Sequencer) Hold(ctx context.Context, d time.Duration) error {
	return s.gesture("hold", func() error {
		return s.pacer.Wait(ctx, d)
	})
}

// Dead steps to end, holds, and halts the sequencer for good. Only a
// restart moves the wings again.
func (s *Sequencer) Dead(ctx context.Context, end Position, stepDelay time.Duration) error {
	return s.gesture("dead", func() error {
		if err := s.stepTo(ctx, end, stepDelay); err != nil {
			return err
		}
		if err := s.pacer.Wait(ctx, s.timing.DeadHold); err != nil {
			return err
		}
		s.halted = true
		s.logger.Warn("actuator halted", zap.Int("position", int(s.pos)))
		return nil
	})
}

// gesture runs fn with exclusive ownership of the actuator.
func (s *Sequencer) gesture(name string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return ErrHalted
	}

	s.failures = 0
	s.lastErr = nil
	start := s.pos

	err := fn()

	if s.failures > 0 {
		s.logger.Warn("actuator errors during gesture",
			zap.String("gesture", name),
			zap.Int("failures", s.failures),
			zap.Error(s.lastErr))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logger.Debug("gesture complete",
		zap.String("gesture", name),
		zap.Int("from", int(start)),
		zap.Int("to", int(s.pos)))
	return nil
}

// stepTo moves one unit per delay. Actuator failures are tallied and the
// walk continues. Caller holds s.mu.
func (s *Sequencer) stepTo(ctx context.Context, target Position, delay time.Duration) error {
	for _, p := range Path(s.pos, target) {
		if err := s.act.SetPosition(int(p)); err != nil {
			s.failures++
			s.lastErr = err
		}
		s.pos = p
		if err := s.pacer.Wait(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}
