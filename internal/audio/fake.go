package audio

import "sync"

// Cue is one recorded Play call.
type Cue struct {
	Track Track
	Muted bool
}

// FakePlayer records cues for test assertions.
type FakePlayer struct {
	mu sync.Mutex

	// Cues contains every Play call, muted or not.
	Cues []Cue

	// PlayError, if set, will be returned by Play. The cue is still recorded.
	PlayError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePlayer creates a FakePlayer for testing.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{}
}

// Play records the cue.
func (f *FakePlayer) Play(track Track, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cues = append(f.Cues, Cue{Track: track, Muted: muted})
	return f.PlayError
}

// Close marks the player as closed.
func (f *FakePlayer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Recorded returns a copy of the recorded cues.
func (f *FakePlayer) Recorded() []Cue {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Cue, len(f.Cues))
	copy(out, f.Cues)
	return out
}

// Reset clears recorded cues.
func (f *FakePlayer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cues = nil
	f.PlayError = nil
	f.Closed = false
}
