package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Soundboard defaults for the Adafruit Audio FX board in UART mode.
const (
	DefaultPort    = "/dev/serial0"
	DefaultBaud    = 9600
	DefaultTimeout = 500 * time.Millisecond

	maxReplyLines = 3
	maxLineLength = 128
)

// Soundboard plays tracks by index over the board's serial protocol:
// "#<n>\n" starts track n, the board answers "play..." or "NoFile".
type Soundboard struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	logger *zap.Logger
}

// NewSoundboard opens the serial port the sound board is wired to.
func NewSoundboard(portName string, baud int, timeout time.Duration, logger *zap.Logger) (*Soundboard, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return newSoundboard(port, logger), nil
}

// newSoundboard wraps an already-open link. The link's Read must return
// (0, nil) when its read timeout expires, as serial ports do.
func newSoundboard(port io.ReadWriteCloser, logger *zap.Logger) *Soundboard {
	return &Soundboard{port: port, logger: logger}
}

// Play starts the track. Muted cues never reach the board.
func (s *Soundboard) Play(track Track, muted bool) error {
	if muted {
		s.logger.Debug("cue muted", zap.Stringer("track", track))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.port, "#%d\n", int(track)); err != nil {
		return fmt.Errorf("send track %d: %w", int(track), err)
	}

	for i := 0; i < maxReplyLines; i++ {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		switch {
		case bytes.HasPrefix(line, []byte("play")):
			s.logger.Debug("playing", zap.Stringer("track", track), zap.ByteString("reply", line))
			return nil
		case bytes.HasPrefix(line, []byte("NoFile")):
			return fmt.Errorf("track %d: %w", int(track), ErrTrackRejected)
		}
		// Anything else is the board echoing the command back.
	}
	return fmt.Errorf("track %d: %w", int(track), ErrTrackRejected)
}

func (s *Soundboard) readLine() ([]byte, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < maxLineLength {
		n, err := s.port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}
		if n == 0 {
			return nil, ErrNoResponse
		}
		if buf[0] == '\n' {
			return bytes.TrimRight(line, "\r"), nil
		}
		line = append(line, buf[0])
	}
	return line, nil
}

// Close releases the serial port.
func (s *Soundboard) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
