package motion

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Pacer waits out the delay that follows each actuator step.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// ClockPacer paces steps with timers from a clock.
type ClockPacer struct {
	Clock clock.Clock
}

// NewClockPacer returns a pacer on the wall clock.
func NewClockPacer() ClockPacer {
	return ClockPacer{Clock: clock.New()}
}

// Wait blocks for d. It returns early only if ctx is cancelled.
func (p ClockPacer) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := p.Clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordingPacer returns immediately and records every requested delay.
type RecordingPacer struct {
	mu     sync.Mutex
	Delays []time.Duration
}

// Wait records d.
func (p *RecordingPacer) Wait(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.Delays = append(p.Delays, d)
	p.mu.Unlock()
	return ctx.Err()
}

// Total returns the sum of every recorded delay.
func (p *RecordingPacer) Total() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total time.Duration
	for _, d := range p.Delays {
		total += d
	}
	return total
}

// Count returns the number of recorded waits.
func (p *RecordingPacer) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Delays)
}
