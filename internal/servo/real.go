package servo

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

// PCA9685 drives one channel of a PCA9685 PWM board.
type PCA9685 struct {
	bus     i2c.BusCloser
	dev     *pca9685.Dev
	channel int
}

// NewPCA9685 opens the I2C bus (empty name = first bus) and configures the
// board's PWM frequency.
func NewPCA9685(busName string, address uint16, channel, frequencyHz int) (*PCA9685, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	dev, err := pca9685.NewI2C(bus, address)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open pca9685 at 0x%02x: %w", address, err)
	}

	if err := dev.SetPwmFreq(physic.Frequency(frequencyHz) * physic.Hertz); err != nil {
		bus.Close()
		return nil, fmt.Errorf("set pwm frequency %dHz: %w", frequencyHz, err)
	}

	return &PCA9685{
		bus:     bus,
		dev:     dev,
		channel: channel,
	}, nil
}

// SetPosition writes the pulse as the channel's off-tick (on at tick 0).
func (p *PCA9685) SetPosition(pulse int) error {
	if err := checkPulse(pulse); err != nil {
		return err
	}
	if err := p.dev.SetPwm(p.channel, 0, gpio.Duty(pulse)); err != nil {
		return fmt.Errorf("set channel %d: %w", p.channel, err)
	}
	return nil
}

// Close turns the channel fully off so the servo goes limp, then releases the bus.
func (p *PCA9685) Close() error {
	var err error
	if p.dev != nil {
		err = multierr.Append(err, p.dev.SetFullOff(p.channel))
	}
	if p.bus != nil {
		err = multierr.Append(err, p.bus.Close())
	}
	if err != nil {
		return fmt.Errorf("close servo: %w", err)
	}
	return nil
}
