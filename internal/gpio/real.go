//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealReader reads the switches through the Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	audioLine *gpiocdev.Line
	demoLine  *gpiocdev.Line
}

// NewRealReader requests the switch lines on chip. A negative pin is skipped.
func NewRealReader(chipName string, audioPin, demoPin int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	r := &RealReader{chip: chip}

	// The switches short to ground, so the lines idle high on the pull-up.
	if audioPin >= 0 {
		r.audioLine, err = chip.RequestLine(audioPin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request audio pin %d: %w", audioPin, err)
		}
	}
	if demoPin >= 0 {
		r.demoLine, err = chip.RequestLine(demoPin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request demo pin %d: %w", demoPin, err)
		}
	}
	return r, nil
}

// Read returns the logical switch states. Raw 0 (pulled to ground) = ON.
func (r *RealReader) Read() (bool, bool, error) {
	audioOn, err := readActiveLow(r.audioLine)
	if err != nil {
		return false, false, fmt.Errorf("read audio pin: %w", err)
	}
	demoOn, err := readActiveLow(r.demoLine)
	if err != nil {
		return false, false, fmt.Errorf("read demo pin: %w", err)
	}
	return audioOn, demoOn, nil
}

func readActiveLow(l *gpiocdev.Line) (bool, error) {
	if l == nil {
		return false, nil
	}
	v, err := l.Value()
	if err != nil {
		return false, err
	}
	return v == 0, nil
}

// Close returns the lines to plain inputs and releases the chip.
func (r *RealReader) Close() error {
	var err error
	for _, l := range []*gpiocdev.Line{r.audioLine, r.demoLine} {
		if l == nil {
			continue
		}
		err = multierr.Append(err, l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled))
		err = multierr.Append(err, l.Close())
	}
	if r.chip != nil {
		err = multierr.Append(err, r.chip.Close())
	}
	if err != nil {
		return fmt.Errorf("close gpio: %w", err)
	}
	return nil
}
