// Command canary reads air quality over MQTT and acts it out with a servo,
// a sound board and a status panel.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/canary/internal/audio"
	"github.com/sweeney/canary/internal/canary"
	"github.com/sweeney/canary/internal/config"
	"github.com/sweeney/canary/internal/display"
	"github.com/sweeney/canary/internal/gpio"
	"github.com/sweeney/canary/internal/logging"
	"github.com/sweeney/canary/internal/logic"
	"github.com/sweeney/canary/internal/motion"
	"github.com/sweeney/canary/internal/mqtt"
	"github.com/sweeney/canary/internal/servo"
	"github.com/sweeney/canary/internal/status"
	"github.com/sweeney/canary/internal/web"
)

// switchPoll is how often the mode switches are read and the heartbeat checked.
const switchPoll = 200 * time.Millisecond

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "canary",
		Short:         "Air quality canary",
		Long:          "canary watches CO2 readings from an ESDK sensor and acts out how stuffy the room is.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(cmd, runDaemon)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon (default)",
		Args:  cobra.NoArgs,
		RunE:  root.RunE,
	}

	gesture := &cobra.Command{
		Use:       "gesture <name>",
		Short:     "Run one gesture on the servo and exit",
		Args:      cobra.ExactArgs(1),
		ValidArgs: gestureNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, func(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
				return runGesture(ctx, cfg, logger, args[0])
			})
		},
	}

	evaluate := &cobra.Command{
		Use:   "evaluate <co2> [previous]",
		Short: "Print the state a CO2 reading evaluates to",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			next, err := evaluate(cfg.LogicThresholds(), args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}

	root.AddCommand(run, gesture, evaluate)
	return root
}

// withConfig loads the config, builds the logger and runs fn. Errors from fn
// are logged before being returned.
func withConfig(cmd *cobra.Command, fn func(context.Context, config.Config, *zap.Logger) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config: %v\n", err)
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "logger: %v\n", err)
		return err
	}
	defer logger.Sync()

	if err := fn(cmd.Context(), cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		return err
	}
	return nil
}

func gestureNames() []string {
	names := make([]string, 0, len(motion.Gestures))
	for _, g := range motion.Gestures {
		names = append(names, string(g))
	}
	return names
}

func evaluate(t logic.Thresholds, args []string) (logic.State, error) {
	co2, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("co2 %q: %w", args[0], err)
	}
	prev := logic.StateNormal
	if len(args) > 1 {
		if prev, err = logic.ParseState(args[1]); err != nil {
			return "", err
		}
	}
	return logic.Evaluate(co2, prev, t), nil
}

func openServo(cfg config.Config) (*servo.PCA9685, error) {
	drv, err := servo.NewPCA9685(cfg.Servo.Bus, uint16(cfg.Servo.Address), cfg.Servo.Channel, cfg.Servo.FrequencyHz)
	if err != nil {
		return nil, fmt.Errorf("init servo: %w", err)
	}
	return drv, nil
}

func runGesture(ctx context.Context, cfg config.Config, logger *zap.Logger, name string) error {
	g, err := motion.ParseGesture(name)
	if err != nil {
		return err
	}
	drv, err := openServo(cfg)
	if err != nil {
		return err
	}
	defer drv.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	choreo := cfg.Choreography()
	seq := motion.NewSequencer(drv, motion.NewClockPacer(), choreo.Positions.Rest, cfg.Timing(), logger.Named("motion"))
	if err := seq.Init(); err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	if err := choreo.Perform(ctx, seq, g); err != nil {
		return fmt.Errorf("gesture %s: %w", g, err)
	}
	logger.Info("gesture done", zap.String("gesture", string(g)), zap.Int("position", int(seq.Position())))
	return nil
}

func runDaemon(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	drv, err := openServo(cfg)
	if err != nil {
		return err
	}
	defer drv.Close()

	var player audio.Player = audio.Silent{}
	if cfg.Audio.Port != "" {
		sb, err := audio.NewSoundboard(cfg.Audio.Port, cfg.Audio.Baud, cfg.Audio.Timeout, logger.Named("audio"))
		if err != nil {
			return fmt.Errorf("init sound board: %w", err)
		}
		player = sb
	}
	defer player.Close()

	var switches *gpio.Watcher
	audioFitted, demoFitted := cfg.Switches.AudioPin >= 0, cfg.Switches.DemoPin >= 0
	if audioFitted || demoFitted {
		reader, err := gpio.NewRealReader(cfg.Switches.Chip, cfg.Switches.AudioPin, cfg.Switches.DemoPin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()
		switches = gpio.NewWatcher(reader, audioFitted, demoFitted)
	}

	modes := canary.NewModes(cfg.InitialModes())
	net := readNetworkInfo()
	if net != nil {
		modes.SetWifi(net.WifiConnected())
	}

	mailbox := mqtt.NewMailbox()
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:        cfg.MQTT.Broker,
		ClientID:      cfg.MQTT.ClientID,
		ReadingsTopic: cfg.MQTT.ReadingsTopic,
		ModeTopic:     cfg.MQTT.ModeTopic,
		EventsTopic:   cfg.MQTT.EventsTopic,
		SystemTopic:   cfg.MQTT.SystemTopic,
		BufferSize:    cfg.MQTT.BufferSize,
		OnReadings:    mailbox.Put,
		OnMode:        func(cmd mqtt.ModeCommand) { applyModeCommand(modes, cmd, logger) },
	}, logger.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	clk := clock.New()
	tracker := status.NewTracker(clk, status.Config{
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTPAddr,
		SessionID:   client.SessionID(),
		Thresholds:  cfg.LogicThresholds(),
	})
	tracker.SetNetwork(net)
	tracker.SetModes(modes.Snapshot())
	tracker.SetMQTTConnected(client.IsConnected())

	choreo := cfg.Choreography()
	seq := motion.NewSequencer(drv, motion.NewClockPacer(), choreo.Positions.Rest, cfg.Timing(), logger.Named("motion"))
	views := display.Multi{display.NewLog(logger.Named("display")), tracker}
	controller := canary.New(cfg.Controller(), seq, player, views, modes, clk, logger.Named("controller"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := &daemon{
		controller: controller,
		seq:        seq,
		modes:      modes,
		mailbox:    mailbox,
		switches:   switches,
		publisher:  client,
		mqttStatus: client,
		tracker:    tracker,
		network:    readNetworkInfo,
		logger:     logger,
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, logger.Named("web"))
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Warn("http server stopped", zap.Error(err))
			}
		}()
		d.push = srv.Push
		logger.Info("http status server listening", zap.String("addr", cfg.HTTPAddr))
	}

	d.publishSystem(mqtt.EventStartup, "", true, clk.Now())

	if err := controller.Start(ctx); err != nil {
		return err
	}
	tracker.SetPosition(int(seq.Position()))

	logger.Info("started",
		zap.String("broker", cfg.MQTT.Broker),
		zap.String("readings", cfg.MQTT.ReadingsTopic),
		zap.Duration("heartbeat", cfg.Heartbeat),
		zap.Bool("demo", cfg.Demo))

	ticker := time.NewTicker(switchPoll)
	defer ticker.Stop()

	// A signal cancels ctx so a gesture in progress stops between steps,
	// then reaches the loop for the SHUTDOWN event.
	osSig := make(chan os.Signal, 1)
	signal.Notify(osSig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(osSig)
	sig := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-osSig:
			sig <- s
			cancel()
		case <-ctx.Done():
		}
	}()

	return d.runLoop(ctx, cfg.Heartbeat, clk.Now, ticker.C, sig)
}

func applyModeCommand(modes *canary.Modes, cmd mqtt.ModeCommand, logger *zap.Logger) {
	if cmd.Audio != nil {
		modes.SetAudio(*cmd.Audio)
	}
	if cmd.Demo != nil {
		modes.SetDemo(*cmd.Demo)
	}
	if cmd.Wifi != nil {
		modes.SetWifi(*cmd.Wifi)
	}
	flags := modes.Snapshot()
	logger.Info("mode command",
		zap.Bool("audio", flags.AudioEnabled),
		zap.Bool("demo", flags.DemoMode),
		zap.Bool("wifi", flags.WifiConnected))
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
