package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/linetrace/pkg/robot"
)

// ErrAlreadyRunning is returned by Start when the loop is already active.
var ErrAlreadyRunning = errors.New("controller already running")

// State is the outcome of one control cycle.
type State struct {
	Cycle     uint64
	Timestamp time.Time
	Reading   robot.SensorReading
	Rule      Rule
	Command   robot.MotorCommand // as applied, after clamping
	Error     error
}

// Observer receives every cycle's state. Observe is called from the control
// loop and must not block.
type Observer interface {
	Observe(State)
}

// Options holds optional controller settings.
type Options struct {
	// Diagnostics receives one "L:x C:x R:x" line per cycle. Write errors
	// are ignored.
	Diagnostics io.Writer
	// Interval is the minimum time between cycle starts. Zero polls as fast
	// as the I/O allows.
	Interval  time.Duration
	Logger    *zap.Logger
	Observers []Observer
}

// Controller runs the sense-decide-actuate loop.
type Controller struct {
	cfg      robot.Config
	sensors  *robot.SensorReader
	drive    *robot.Drive
	diag     io.Writer
	interval time.Duration
	logger   *zap.Logger
	observer []Observer

	mu      sync.RWMutex
	running bool
	cycle   uint64
	faulted bool
	diagErr uint64

	stateCh chan State
	logCh   chan string
}

// NewController creates a controller and sets the motor directions to
// forward.
func NewController(ctx context.Context, cfg robot.Config, in robot.AnalogSource, out robot.Actuator, opts Options) (*Controller, error) {
	drive, err := robot.NewDrive(ctx, out, cfg.Pins)
	if err != nil {
		return nil, fmt.Errorf("init drive: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		cfg:      cfg,
		sensors:  robot.NewSensorReader(in, cfg),
		drive:    drive,
		diag:     opts.Diagnostics,
		interval: opts.Interval,
		logger:   logger,
		observer: opts.Observers,
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 10),
	}, nil
}

// Config returns the configuration the controller was built with.
func (c *Controller) Config() robot.Config {
	return c.cfg
}

// States returns a channel that receives state updates. Only the newest
// unread state is kept.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Cycles returns the number of completed cycles.
func (c *Controller) Cycles() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cycle
}

// DiagnosticErrors returns how many diagnostic writes failed.
func (c *Controller) DiagnosticErrors() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diagErr
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs control cycles until ctx is cancelled, then stops the motors.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	c.log("Line following started")
	c.logger.Info("control loop started",
		zap.Int("base_speed", c.cfg.BaseSpeed),
		zap.Int("turn_adjust", c.cfg.TurnAdjust),
		zap.Int("line_threshold", c.cfg.LineThreshold),
		zap.Duration("interval", c.interval))

	var ticker *time.Ticker
	if c.interval > 0 {
		ticker = time.NewTicker(c.interval)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		default:
		}

		c.Step(ctx)

		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
	}
}

// Step runs a single control cycle: read, decide, clamp and actuate, then
// emit diagnostics.
func (c *Controller) Step(ctx context.Context) State {
	reading, sensErr := c.sensors.Read(ctx)
	c.trackFault(sensErr)

	d := Decide(reading, c.cfg)
	cmd, driveErr := c.drive.Apply(ctx, d.Command)
	if driveErr != nil {
		c.logger.Warn("actuation failed", zap.Error(driveErr))
		c.log("Write error: %v", driveErr)
	}

	c.writeDiagnostics(reading)

	c.mu.Lock()
	c.cycle++
	s := State{
		Cycle:     c.cycle,
		Timestamp: time.Now(),
		Reading:   reading,
		Rule:      d.Rule,
		Command:   cmd,
		Error:     errors.Join(sensErr, driveErr),
	}
	c.mu.Unlock()

	c.sendState(s)
	for _, o := range c.observer {
		o.Observe(s)
	}
	return s
}

// trackFault logs sensor faults on transition only, so a dead channel does
// not flood the log at loop rate.
func (c *Controller) trackFault(err error) {
	c.mu.Lock()
	was := c.faulted
	c.faulted = err != nil
	c.mu.Unlock()

	switch {
	case err != nil && !was:
		c.logger.Warn("sensor fault, treating channel as off-line", zap.Error(err))
		c.log("Sensor fault: %v", err)
	case err == nil && was:
		c.logger.Info("sensor fault cleared")
		c.log("Sensors recovered")
	}
}

func (c *Controller) writeDiagnostics(r robot.SensorReading) {
	if c.diag == nil {
		return
	}
	if _, err := fmt.Fprintln(c.diag, r.String()); err != nil {
		c.mu.Lock()
		c.diagErr++
		c.mu.Unlock()
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	cycles := c.cycle
	c.mu.Unlock()

	// The loop context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.drive.Stop(ctx); err != nil {
		c.logger.Error("failed to stop motors", zap.Error(err))
		c.log("Warning: failed to stop motors: %v", err)
	} else {
		c.log("Motors stopped")
	}
	c.logger.Info("control loop stopped", zap.Uint64("cycles", cycles))
}
