package display

import (
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/logic"
)

// View is anything that can show the canary's status.
type View interface {
	RenderGreeting() error
	RenderReadings(r logic.Readings, m logic.ModeFlags) error
	RenderTerminal() error
}

// Log writes each render as a structured log line.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a log-backed view.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) RenderGreeting() error {
	l.logger.Info(strings.Join(Greeting, " "))
	return nil
}

func (l *Log) RenderReadings(r logic.Readings, m logic.ModeFlags) error {
	p := NewPanel(r, m)
	l.logger.Debug("readings",
		zap.String("co2", p.CO2),
		zap.String("temp", p.Temperature),
		zap.String("rh", p.Humidity),
		zap.String("tvoc", p.TVOC),
		zap.String("pm2.5", p.Particulate),
		zap.String("mode", p.Mode))
	return nil
}

func (l *Log) RenderTerminal() error {
	l.logger.Warn(strings.Join(Tombstone, " "))
	return nil
}

// Multi renders to every view in order. A failing view does not stop the
// others; all errors are combined.
type Multi []View

func (m Multi) RenderGreeting() error {
	var err error
	for _, v := range m {
		err = multierr.Append(err, v.RenderGreeting())
	}
	return err
}

func (m Multi) RenderReadings(r logic.Readings, f logic.ModeFlags) error {
	var err error
	for _, v := range m {
		err = multierr.Append(err, v.RenderReadings(r, f))
	}
	return err
}

func (m Multi) RenderTerminal() error {
	var err error
	for _, v := range m {
		err = multierr.Append(err, v.RenderTerminal())
	}
	return err
}
