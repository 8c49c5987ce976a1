// Package servo drives the canary's wing servo with hardware abstraction.
// The real implementation talks to a PCA9685 PWM board over I2C.
// The fake implementation allows testing without hardware.
package servo

import "fmt"

// Driver sets the servo's pulse length.
type Driver interface {
	// SetPosition applies a pulse length in PCA9685 ticks (0-4095).
	// Lower values raise the wings further.
	SetPosition(pulse int) error

	// Close releases the bus.
	Close() error
}

// Board defaults (Adafruit 16-channel PWM/servo board).
const (
	DefaultBus       = ""
	DefaultAddress   = 0x40
	DefaultChannel   = 0
	DefaultFrequency = 50 // Hz

	MaxPulse = 4095
)

func checkPulse(pulse int) error {
	if pulse < 0 || pulse > MaxPulse {
		return fmt.Errorf("pulse %d out of range 0-%d", pulse, MaxPulse)
	}
	return nil
}
