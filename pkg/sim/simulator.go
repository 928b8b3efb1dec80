package sim

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/robot"
)

const (
	DefaultDt    = 5 * time.Millisecond
	DefaultSteps = 4000
)

// Config controls a simulation run.
type Config struct {
	Dt          time.Duration // simulated time per control cycle
	Steps       int
	Body        Body
	Diagnostics io.Writer
	Logger      *zap.Logger
}

// DefaultConfig returns a 20 second run on the default body.
func DefaultConfig() Config {
	return Config{
		Dt:    DefaultDt,
		Steps: DefaultSteps,
		Body:  DefaultBody(),
	}
}

// Sample is the robot state after one cycle.
type Sample struct {
	Time    float64
	Pose    Pose
	Offset  float64
	Reading robot.SensorReading
	Rule    control.Rule
	Command robot.MotorCommand
}

// Result summarizes a run.
type Result struct {
	Track         string
	Samples       []Sample
	StepsTaken    int
	LineLost      bool // the robot lost the line and stopped
	Distance      float64
	MeanAbsOffset float64
	MaxAbsOffset  float64
	RuleCounts    map[control.Rule]int
}

// Offsets returns the offset of every sample.
func (r *Result) Offsets() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Offset
	}
	return out
}

func validateConfig(track *Track, cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %s", cfg.Dt)
	}
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}
	if cfg.Body.WheelBase <= 0 {
		return fmt.Errorf("wheel base must be positive, got %f", cfg.Body.WheelBase)
	}
	return track.Validate()
}

// Run drives the real controller against a simulated robot on track. A run
// ends after cfg.Steps cycles or as soon as the line is lost, since the
// controller then stops and the world no longer changes.
func Run(ctx context.Context, track *Track, cfg Config) (*Result, error) {
	if err := validateConfig(track, cfg); err != nil {
		return nil, err
	}

	rcfg := robot.DefaultConfig()
	world := NewWorld(track, cfg.Body, rcfg.Pins)
	ctrl, err := control.NewController(ctx, rcfg, world, world, control.Options{
		Diagnostics: cfg.Diagnostics,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Track:      track.Name,
		Samples:    make([]Sample, 0, cfg.Steps),
		RuleCounts: make(map[control.Rule]int),
	}
	dt := cfg.Dt.Seconds()

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		s := ctrl.Step(ctx)
		if s.Error != nil {
			return result, fmt.Errorf("step %d: %w", i, s.Error)
		}
		world.Advance(dt)

		result.StepsTaken++
		result.RuleCounts[s.Rule]++
		result.Samples = append(result.Samples, Sample{
			Time:    float64(i+1) * dt,
			Pose:    world.Pose(),
			Offset:  world.Offset(),
			Reading: s.Reading,
			Rule:    s.Rule,
			Command: s.Command,
		})

		if s.Rule == control.LineLost {
			result.LineLost = true
			break
		}
	}

	result.Distance = world.Odometer()
	if offsets := result.Offsets(); len(offsets) > 0 {
		result.MeanAbsOffset = stat.Mean(offsets, nil)
		result.MaxAbsOffset = floats.Max(offsets)
	}
	return result, nil
}
