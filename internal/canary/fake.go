package canary

import (
	"sync"

	"github.com/sweeney/canary/internal/logic"
)

// Render is one recorded display call.
type Render struct {
	Kind     string // "greeting", "readings" or "terminal"
	Readings logic.Readings
	Modes    logic.ModeFlags
}

// RecordingDisplay records every render for test assertions.
type RecordingDisplay struct {
	mu      sync.Mutex
	Renders []Render

	// Err, if set, is returned by every render. The call is still recorded.
	Err error
}

func (d *RecordingDisplay) RenderGreeting() error {
	return d.record(Render{Kind: "greeting"})
}

func (d *RecordingDisplay) RenderReadings(r logic.Readings, m logic.ModeFlags) error {
	return d.record(Render{Kind: "readings", Readings: r, Modes: m})
}

func (d *RecordingDisplay) RenderTerminal() error {
	return d.record(Render{Kind: "terminal"})
}

func (d *RecordingDisplay) record(r Render) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Renders = append(d.Renders, r)
	return d.Err
}

// Recorded returns a copy of the renders.
func (d *RecordingDisplay) Recorded() []Render {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Render, len(d.Renders))
	copy(out, d.Renders)
	return out
}

// Last returns the most recent render, or a zero Render if there is none.
func (d *RecordingDisplay) Last() Render {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Renders) == 0 {
		return Render{}
	}
	return d.Renders[len(d.Renders)-1]
}

// Reset clears recorded renders.
func (d *RecordingDisplay) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Renders = nil
	d.Err = nil
}
