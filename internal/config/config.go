// Package config loads the daemon's settings from defaults, an optional YAML
// file, CANARY_* environment variables and command-line flags, in rising
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/sweeney/canary/internal/audio"
	"github.com/sweeney/canary/internal/canary"
	"github.com/sweeney/canary/internal/gpio"
	"github.com/sweeney/canary/internal/logging"
	"github.com/sweeney/canary/internal/logic"
	"github.com/sweeney/canary/internal/motion"
	"github.com/sweeney/canary/internal/mqtt"
	"github.com/sweeney/canary/internal/servo"
)

// EnvPrefix prefixes every environment override, e.g. CANARY_MQTT_BROKER.
const EnvPrefix = "CANARY"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	LogLevel     string        `mapstructure:"log_level"`
	HTTPAddr     string        `mapstructure:"http_addr"`
	Heartbeat    time.Duration `mapstructure:"heartbeat"`
	Demo         bool          `mapstructure:"demo"`
	AudioEnabled bool          `mapstructure:"audio_enabled"`

	MQTT       MQTT       `mapstructure:"mqtt"`
	Servo      Servo      `mapstructure:"servo"`
	Positions  Positions  `mapstructure:"positions"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	Motion     Motion     `mapstructure:"motion"`
	Audio      Audio      `mapstructure:"audio"`
	Switches   Switches   `mapstructure:"switches"`
}

type MQTT struct {
	Broker        string `mapstructure:"broker"`
	ClientID      string `mapstructure:"client_id"`
	ReadingsTopic string `mapstructure:"readings_topic"`
	EventsTopic   string `mapstructure:"events_topic"`
	SystemTopic   string `mapstructure:"system_topic"`
	ModeTopic     string `mapstructure:"mode_topic"`
	BufferSize    int    `mapstructure:"buffer_size"`
}

type Servo struct {
	Bus         string `mapstructure:"bus"`
	Address     int    `mapstructure:"address"`
	Channel     int    `mapstructure:"channel"`
	FrequencyHz int    `mapstructure:"frequency_hz"`
}

type Positions struct {
	Rest           int `mapstructure:"rest"`
	SlightlyRaised int `mapstructure:"slightly_raised"`
	FullyRaised    int `mapstructure:"fully_raised"`
	Slumped        int `mapstructure:"slumped"`
	Collapsed      int `mapstructure:"collapsed"`
}

type Thresholds struct {
	Stuffy     int `mapstructure:"stuffy"`
	OpenWindow int `mapstructure:"open_window"`
	PassOut    int `mapstructure:"pass_out"`
	Dead       int `mapstructure:"dead"`
}

type Motion struct {
	SlowStep           time.Duration `mapstructure:"slow_step"`
	FastStep           time.Duration `mapstructure:"fast_step"`
	VeryFastStep       time.Duration `mapstructure:"very_fast_step"`
	RestStep           time.Duration `mapstructure:"rest_step"`
	Settle             time.Duration `mapstructure:"settle"`
	DeadHold           time.Duration `mapstructure:"dead_hold"`
	DemoPause          time.Duration `mapstructure:"demo_pause"`
	StuffyFlutters     int           `mapstructure:"stuffy_flutters"`
	OpenWindowFlutters int           `mapstructure:"open_window_flutters"`
}

type Audio struct {
	Port    string        `mapstructure:"port"`
	Baud    int           `mapstructure:"baud"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Switches configures the GPIO toggle switches. A negative pin disables that switch.
type Switches struct {
	Chip     string `mapstructure:"chip"`
	AudioPin int    `mapstructure:"audio_pin"`
	DemoPin  int    `mapstructure:"demo_pin"`
}

// Default returns the settings the canary ships with.
func Default() Config {
	pos := motion.DefaultPositions()
	th := logic.DefaultThresholds()
	ch := motion.DefaultChoreography()
	tm := motion.DefaultTiming()
	return Config{
		LogLevel:     "info",
		HTTPAddr:     ":8080",
		Heartbeat:    15 * time.Minute,
		AudioEnabled: true,
		MQTT: MQTT{
			Broker:        "tcp://192.168.1.200:1883",
			ClientID:      "canary",
			ReadingsTopic: mqtt.ReadingsTopic,
			EventsTopic:   mqtt.EventsTopic,
			SystemTopic:   mqtt.SystemTopic,
			ModeTopic:     mqtt.ModeTopic,
			BufferSize:    mqtt.DefaultBufferSize,
		},
		Servo: Servo{
			Bus:         servo.DefaultBus,
			Address:     servo.DefaultAddress,
			Channel:     servo.DefaultChannel,
			FrequencyHz: servo.DefaultFrequency,
		},
		Positions: Positions{
			Rest:           int(pos.Rest),
			SlightlyRaised: int(pos.SlightlyRaised),
			FullyRaised:    int(pos.FullyRaised),
			Slumped:        int(pos.Slumped),
			Collapsed:      int(pos.Collapsed),
		},
		Thresholds: Thresholds{
			Stuffy:     th.Stuffy,
			OpenWindow: th.OpenWindow,
			PassOut:    th.PassOut,
			Dead:       th.Dead,
		},
		Motion: Motion{
			SlowStep:           ch.Speeds.Slow,
			FastStep:           ch.Speeds.Fast,
			VeryFastStep:       ch.Speeds.VeryFast,
			RestStep:           tm.RestStep,
			Settle:             tm.Settle,
			DeadHold:           tm.DeadHold,
			DemoPause:          ch.DemoPause,
			StuffyFlutters:     ch.StuffyFlutters,
			OpenWindowFlutters: ch.OpenWindowFlutters,
		},
		Audio: Audio{
			Port:    audio.DefaultPort,
			Baud:    audio.DefaultBaud,
			Timeout: audio.DefaultTimeout,
		},
		Switches: Switches{
			Chip:     gpio.DefaultChip,
			AudioPin: gpio.DefaultAudioPin,
			DemoPin:  gpio.DefaultDemoPin,
		},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":  "log_level",
	"http":       "http_addr",
	"heartbeat":  "heartbeat",
	"demo":       "demo",
	"audio":      "audio_enabled",
	"broker":     "mqtt.broker",
	"i2c-bus":    "servo.bus",
	"audio-port": "audio.port",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "YAML config file")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("http", d.HTTPAddr, "HTTP status address (empty to disable)")
	fs.Duration("heartbeat", d.Heartbeat, "heartbeat interval (0 to disable)")
	fs.Bool("demo", d.Demo, "start in demo mode")
	fs.Bool("audio", d.AudioEnabled, "start with audio enabled")
	fs.String("broker", d.MQTT.Broker, "MQTT broker address")
	fs.String("i2c-bus", d.Servo.Bus, "I2C bus for the servo driver (empty for the first bus)")
	fs.String("audio-port", d.Audio.Port, "serial port of the sound board (empty when none is fitted)")
}

// Load builds the config. fs may be nil; when set, only flags the user
// changed override lower layers.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("heartbeat", d.Heartbeat)
	v.SetDefault("demo", d.Demo)
	v.SetDefault("audio_enabled", d.AudioEnabled)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.readings_topic", d.MQTT.ReadingsTopic)
	v.SetDefault("mqtt.events_topic", d.MQTT.EventsTopic)
	v.SetDefault("mqtt.system_topic", d.MQTT.SystemTopic)
	v.SetDefault("mqtt.mode_topic", d.MQTT.ModeTopic)
	v.SetDefault("mqtt.buffer_size", d.MQTT.BufferSize)

	v.SetDefault("servo.bus", d.Servo.Bus)
	v.SetDefault("servo.address", d.Servo.Address)
	v.SetDefault("servo.channel", d.Servo.Channel)
	v.SetDefault("servo.frequency_hz", d.Servo.FrequencyHz)

	v.SetDefault("positions.rest", d.Positions.Rest)
	v.SetDefault("positions.slightly_raised", d.Positions.SlightlyRaised)
	v.SetDefault("positions.fully_raised", d.Positions.FullyRaised)
	v.SetDefault("positions.slumped", d.Positions.Slumped)
	v.SetDefault("positions.collapsed", d.Positions.Collapsed)

	v.SetDefault("thresholds.stuffy", d.Thresholds.Stuffy)
	v.SetDefault("thresholds.open_window", d.Thresholds.OpenWindow)
	v.SetDefault("thresholds.pass_out", d.Thresholds.PassOut)
	v.SetDefault("thresholds.dead", d.Thresholds.Dead)

	v.SetDefault("motion.slow_step", d.Motion.SlowStep)
	v.SetDefault("motion.fast_step", d.Motion.FastStep)
	v.SetDefault("motion.very_fast_step", d.Motion.VeryFastStep)
	v.SetDefault("motion.rest_step", d.Motion.RestStep)
	v.SetDefault("motion.settle", d.Motion.Settle)
	v.SetDefault("motion.dead_hold", d.Motion.DeadHold)
	v.SetDefault("motion.demo_pause", d.Motion.DemoPause)
	v.SetDefault("motion.stuffy_flutters", d.Motion.StuffyFlutters)
	v.SetDefault("motion.open_window_flutters", d.Motion.OpenWindowFlutters)

	v.SetDefault("audio.port", d.Audio.Port)
	v.SetDefault("audio.baud", d.Audio.Baud)
	v.SetDefault("audio.timeout", d.Audio.Timeout)

	v.SetDefault("switches.chip", d.Switches.Chip)
	v.SetDefault("switches.audio_pin", d.Switches.AudioPin)
	v.SetDefault("switches.demo_pin", d.Switches.DemoPin)
}

// Validate reports every problem at once, each wrapped in ErrInvalid.
func (c Config) Validate() error {
	var err error
	bad := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, lerr := logging.ParseLevel(c.LogLevel); lerr != nil {
		bad("log_level: %v", lerr)
	}
	if c.Heartbeat < 0 {
		bad("heartbeat must not be negative")
	}
	if c.MQTT.Broker == "" {
		bad("mqtt.broker is required")
	}
	if c.MQTT.BufferSize <= 0 {
		bad("mqtt.buffer_size must be positive")
	}
	if c.Servo.Address < 0x03 || c.Servo.Address > 0x77 {
		bad("servo.address %#x is outside the 7-bit I2C range", c.Servo.Address)
	}
	if c.Servo.Channel < 0 || c.Servo.Channel > 15 {
		bad("servo.channel %d must be 0-15", c.Servo.Channel)
	}
	if c.Servo.FrequencyHz <= 0 {
		bad("servo.frequency_hz must be positive")
	}
	if c.Positions.Rest > servo.MaxPulse {
		bad("positions.rest %d exceeds %d", c.Positions.Rest, servo.MaxPulse)
	}
	if perr := c.Choreography().Validate(); perr != nil {
		bad("%v", perr)
	}
	if terr := c.LogicThresholds().Validate(); terr != nil {
		bad("%v", terr)
	}
	if c.Motion.RestStep < 0 || c.Motion.Settle < 0 || c.Motion.DeadHold < 0 {
		bad("motion delays must not be negative")
	}
	if c.Audio.Baud <= 0 {
		bad("audio.baud must be positive")
	}
	return err
}

// LogicThresholds converts the thresholds section.
func (c Config) LogicThresholds() logic.Thresholds {
	return logic.Thresholds{
		Stuffy:     c.Thresholds.Stuffy,
		OpenWindow: c.Thresholds.OpenWindow,
		PassOut:    c.Thresholds.PassOut,
		Dead:       c.Thresholds.Dead,
	}
}

// Choreography converts the positions and motion sections.
func (c Config) Choreography() motion.Choreography {
	return motion.Choreography{
		Positions: motion.Positions{
			Rest:           motion.Position(c.Positions.Rest),
			SlightlyRaised: motion.Position(c.Positions.SlightlyRaised),
			FullyRaised:    motion.Position(c.Positions.FullyRaised),
			Slumped:        motion.Position(c.Positions.Slumped),
			Collapsed:      motion.Position(c.Positions.Collapsed),
		},
		Speeds: motion.Speeds{
			Slow:     c.Motion.SlowStep,
			Fast:     c.Motion.FastStep,
			VeryFast: c.Motion.VeryFastStep,
		},
		StuffyFlutters:     c.Motion.StuffyFlutters,
		OpenWindowFlutters: c.Motion.OpenWindowFlutters,
		DemoPause:          c.Motion.DemoPause,
	}
}

// Timing converts the sequencer pauses.
func (c Config) Timing() motion.Timing {
	return motion.Timing{
		RestStep: c.Motion.RestStep,
		Settle:   c.Motion.Settle,
		DeadHold: c.Motion.DeadHold,
	}
}

// Controller returns the controller's behaviour settings.
func (c Config) Controller() canary.Config {
	return canary.Config{
		Thresholds:   c.LogicThresholds(),
		Choreography: c.Choreography(),
	}
}

// InitialModes returns the mode flags the daemon starts with.
func (c Config) InitialModes() logic.ModeFlags {
	return logic.ModeFlags{AudioEnabled: c.AudioEnabled, DemoMode: c.Demo}
}
