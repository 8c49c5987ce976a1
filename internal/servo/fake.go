package servo

import "sync"

// FakeDriver records every position written to it.
type FakeDriver struct {
	mu sync.Mutex

	// Positions contains every pulse passed to SetPosition, in order.
	Positions []int

	// SetError, if set, is returned by SetPosition. The position is still recorded.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver for testing.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// SetPosition records the pulse.
func (f *FakeDriver) SetPosition(pulse int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkPulse(pulse); err != nil {
		return err
	}
	f.Positions = append(f.Positions, pulse)
	return f.SetError
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// History returns a copy of the recorded positions.
func (f *FakeDriver) History() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.Positions))
	copy(out, f.Positions)
	return out
}

// Last returns the most recent position, or -1 if nothing was written.
func (f *FakeDriver) Last() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Positions) == 0 {
		return -1
	}
	return f.Positions[len(f.Positions)-1]
}

// Reset clears recorded positions and errors.
func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Positions = nil
	f.SetError = nil
	f.Closed = false
}
