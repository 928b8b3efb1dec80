package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/gwillem/linetrace/pkg/bridge"
	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/robot"
	"github.com/gwillem/linetrace/pkg/telemetry"
)

type RunCommand struct {
	Port              string        `long:"port" description:"Serial port of the I/O bridge (default: from linetrace.json)"`
	Baud              int           `long:"baud" description:"Serial baud rate (default: from linetrace.json)"`
	TUI               bool          `long:"tui" description:"Show a live dashboard instead of the diagnostic stream"`
	Interval          time.Duration `long:"interval" default:"0s" description:"Minimum time between control cycles (0 polls as fast as possible)"`
	TelemetryURL      string        `long:"telemetry-url" description:"POST telemetry samples as JSON to this URL"`
	Record            string        `long:"record" description:"Record telemetry samples to this SQLite database"`
	TelemetryInterval time.Duration `long:"telemetry-interval" default:"500ms" description:"Telemetry sampling interval"`
}

func (c *RunCommand) bridgeConfig() (*robot.BridgeConfig, error) {
	cfg := &robot.BridgeConfig{}
	if robot.ConfigExists() {
		loaded, err := robot.LoadConfig()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if c.Baud > 0 {
		cfg.BaudRate = c.Baud
	}
	if !cfg.IsConfigured() {
		return nil, errors.New("no bridge port configured, run 'linetrace setup' or pass --port")
	}
	return cfg, nil
}

func (c *RunCommand) sinks() ([]telemetry.Sink, error) {
	var sinks []telemetry.Sink
	if c.TelemetryURL != "" {
		sinks = append(sinks, telemetry.NewHTTPSink(c.TelemetryURL, telemetry.DefaultHTTPTimeout))
	}
	if c.Record != "" {
		db, err := telemetry.OpenSQLite(c.Record)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, db)
	}
	return sinks, nil
}

func (c *RunCommand) Execute(args []string) error {
	bcfg, err := c.bridgeConfig()
	if err != nil {
		return err
	}

	b, err := bridge.Open(bcfg.Port, bcfg.Baud(), logger)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version, err := b.Ping(ctx)
	if err != nil {
		return fmt.Errorf("bridge on %s did not answer: %w", bcfg.Port, err)
	}
	logger.Info("bridge connected", zap.String("port", bcfg.Port), zap.String("firmware", version))

	cfg := robot.DefaultConfig()
	ctrlOpts := control.Options{
		Interval: c.Interval,
		Logger:   logger,
	}
	if !c.TUI {
		ctrlOpts.Diagnostics = os.Stdout
	}

	sinks, err := c.sinks()
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	var pub *telemetry.Publisher
	if len(sinks) > 0 {
		pub = telemetry.NewPublisher(cfg.BaseSpeed, c.TelemetryInterval, logger, sinks...)
		ctrlOpts.Observers = append(ctrlOpts.Observers, pub)
		logger.Info("telemetry enabled", zap.String("run_id", pub.RunID()), zap.Int("sinks", len(sinks)))
	}

	ctrl, err := control.NewController(ctx, cfg, b, b, ctrlOpts)
	if err != nil {
		for _, s := range sinks {
			s.Close()
		}
		return err
	}

	// The publisher outlives the control loop so it can flush the final state.
	pubCtx, cancelPub := context.WithCancel(context.Background())
	defer cancelPub()
	if pub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Run(pubCtx)
		}()
	}

	if c.TUI {
		err = runDashboard(ctx, stop, ctrl)
	} else {
		err = ctrl.Start(ctx)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if pub != nil {
		cancelPub()
		wg.Wait()
		if cerr := pub.Close(); cerr != nil {
			logger.Warn("closing telemetry sinks", zap.Error(cerr))
		}
		st := pub.Stats()
		fmt.Fprintf(os.Stderr, "Telemetry: %d sent, %d failed\n", st.Success, st.Fail)
	}
	return err
}

func runDashboard(ctx context.Context, stop context.CancelFunc, ctrl *control.Controller) error {
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Start(ctx)
	}()

	p := tea.NewProgram(newDashboardModel(ctrl), tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := p.Run()

	// Quitting the dashboard ends the control loop.
	stop()
	err := <-done
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", uiErr)
	}
	return err
}
