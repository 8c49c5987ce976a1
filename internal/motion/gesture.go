package motion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Gesture names a complete wing movement.
type Gesture string

const (
	GestureNone        Gesture = ""
	GestureRest        Gesture = "rest"
	GestureFlutter     Gesture = "flutter"
	GestureWideFlutter Gesture = "wide-flutter"
	GestureSlump       Gesture = "slump"
	GestureCollapse    Gesture = "collapse"
	// GestureDemoCollapse stands in for GestureCollapse in demo mode: it
	// plays dead and recovers instead of halting.
	GestureDemoCollapse Gesture = "demo-collapse"
)

// Gestures lists every gesture that can be performed by name.
var Gestures = []Gesture{GestureRest, GestureFlutter, GestureWideFlutter, GestureSlump, GestureCollapse, GestureDemoCollapse}

// ParseGesture converts a gesture name.
func ParseGesture(s string) (Gesture, error) {
	for _, g := range Gestures {
		if string(g) == s {
			return g, nil
		}
	}
	return GestureNone, fmt.Errorf("unknown gesture %q", s)
}

// Speeds are per-step delays; smaller is faster.
type Speeds struct {
	Slow     time.Duration
	Fast     time.Duration
	VeryFast time.Duration
}

// DefaultSpeeds returns the device's stroke speeds.
func DefaultSpeeds() Speeds {
	return Speeds{
		Slow:     6 * time.Millisecond,
		Fast:     3 * time.Millisecond,
		VeryFast: 1 * time.Millisecond,
	}
}

// Choreography binds gestures to concrete positions and speeds.
type Choreography struct {
	Positions          Positions
	Speeds             Speeds
	StuffyFlutters     int
	OpenWindowFlutters int
	DemoPause          time.Duration
}

// DefaultChoreography returns the device's choreography.
func DefaultChoreography() Choreography {
	return Choreography{
		Positions:          DefaultPositions(),
		Speeds:             DefaultSpeeds(),
		StuffyFlutters:     3,
		OpenWindowFlutters: 4,
		DemoPause:          2 * time.Second,
	}
}

// Validate checks positions, flutter counts and delays.
func (c Choreography) Validate() error {
	if err := c.Positions.Validate(); err != nil {
		return err
	}
	if c.StuffyFlutters <= 0 || c.OpenWindowFlutters <= 0 {
		return errors.New("flutter counts must be positive")
	}
	if c.Speeds.Slow < 0 || c.Speeds.Fast < 0 || c.Speeds.VeryFast < 0 || c.DemoPause < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}

// Perform runs g on the sequencer.
func (c Choreography) Perform(ctx context.Context, s *Sequencer, g Gesture) error {
	p := c.Positions
	switch g {
	case GestureNone:
		return nil
	case GestureRest:
		return s.ReturnToRest(ctx, p.Rest)
	case GestureFlutter:
		return s.Flutter(ctx, p.Rest, p.SlightlyRaised, c.Speeds.Slow, c.StuffyFlutters)
	case GestureWideFlutter:
		return s.Flutter(ctx, p.Rest, p.FullyRaised, c.Speeds.Fast, c.OpenWindowFlutters)
	case GestureSlump:
		return s.Collapse(ctx, p.Slumped, c.Speeds.Fast)
	case GestureCollapse:
		return s.Dead(ctx, p.Collapsed, c.Speeds.VeryFast)
	case GestureDemoCollapse:
		if err := s.ReturnToRest(ctx, p.Rest); err != nil {
			return err
		}
		if err := s.Hold(ctx, c.DemoPause); err != nil {
			return err
		}
		if err := s.Collapse(ctx, p.Slumped, c.Speeds.Fast); err != nil {
			return err
		}
		return s.ReturnToRest(ctx, p.Rest)
	default:
		return fmt.Errorf("unknown gesture %q", g)
	}
}
