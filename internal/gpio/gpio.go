// Package gpio reads the canary's operator toggle switches.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the switch positions.
type Reader interface {
	// Read returns the logical states of the audio and demo switches.
	// The switches pull their line to ground when on, so raw 0 = logical ON.
	// A switch whose pin is disabled always reads OFF.
	Read() (audioOn, demoOn bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering). A negative pin means the switch is not fitted.
const (
	DefaultChip     = "gpiochip0"
	DefaultAudioPin = -1
	DefaultDemoPin  = -1
)

// Switch names one of the toggle switches.
type Switch string

const (
	SwitchAudio Switch = "audio"
	SwitchDemo  Switch = "demo"
)

// Change is a switch that moved.
type Change struct {
	Switch Switch
	On     bool
}

// Watcher turns successive reads into changes. The first read reports the
// position of every enabled switch so fitted hardware wins at boot.
type Watcher struct {
	r           Reader
	audio, demo bool
	primed      bool
	lastAudio   bool
	lastDemo    bool
}

// NewWatcher watches r. audio and demo say which switches are fitted.
func NewWatcher(r Reader, audio, demo bool) *Watcher {
	return &Watcher{r: r, audio: audio, demo: demo}
}

// Poll reads the switches and returns what changed since the last poll.
func (w *Watcher) Poll() ([]Change, error) {
	audioOn, demoOn, err := w.r.Read()
	if err != nil {
		return nil, err
	}

	var changes []Change
	if w.audio && (!w.primed || audioOn != w.lastAudio) {
		changes = append(changes, Change{Switch: SwitchAudio, On: audioOn})
	}
	if w.demo && (!w.primed || demoOn != w.lastDemo) {
		changes = append(changes, Change{Switch: SwitchDemo, On: demoOn})
	}
	w.primed = true
	w.lastAudio = audioOn
	w.lastDemo = demoOn
	return changes, nil
}
