package mqtt

import (
	"sync"

	"github.com/sweeney/canary/internal/logic"
)

// Mailbox hands readings from the MQTT callback goroutine to the run loop.
// It holds one reading; a newer one replaces an untaken one, so a long
// gesture never leaves a backlog of stale readings.
type Mailbox struct {
	mu       sync.Mutex
	readings logic.Readings
	full     bool
	replaced int
	ready    chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put stores r, replacing any reading not yet taken. It never blocks.
func (m *Mailbox) Put(r logic.Readings) {
	m.mu.Lock()
	if m.full {
		m.replaced++
	}
	m.readings = r
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Ready fires after a Put. Call Take when it does.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Take removes the held reading. ok is false if the mailbox was empty.
func (m *Mailbox) Take() (r logic.Readings, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return logic.Readings{}, false
	}
	m.full = false
	return m.readings, true
}

// Pending reports whether a reading is waiting to be taken.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

// Replaced returns how many readings were overwritten before being taken.
func (m *Mailbox) Replaced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced
}
