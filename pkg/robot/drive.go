package robot

import (
	"context"
	"errors"
	"fmt"
)

// Drive represents the two-wheel drivetrain. All speed changes go through Set.
type Drive struct {
	out  Actuator
	pins Pins
}

// NewDrive creates a drivetrain and puts both direction pins into the
// forward state. The direction pins are not touched again afterwards.
func NewDrive(ctx context.Context, out Actuator, pins Pins) (*Drive, error) {
	if err := out.WriteDigital(ctx, pins.MotorLeftDir, true); err != nil {
		return nil, fmt.Errorf("set left direction: %w", err)
	}
	if err := out.WriteDigital(ctx, pins.MotorRightDir, true); err != nil {
		return nil, fmt.Errorf("set right direction: %w", err)
	}

	return &Drive{
		out:  out,
		pins: pins,
	}, nil
}

// Set clamps both speeds to [MinSpeed, MaxSpeed] and writes them to the
// speed pins. It returns the command that was actually applied.
func (d *Drive) Set(ctx context.Context, left, right int) (MotorCommand, error) {
	cmd := MotorCommand{Left: left, Right: right}.Clamped()

	// Write both wheels even if the first write fails, so a single bad
	// transfer does not leave the other wheel at its old speed.
	var errs []error
	if err := d.out.WritePWM(ctx, d.pins.MotorLeftPWM, uint8(cmd.Left)); err != nil {
		errs = append(errs, fmt.Errorf("write left speed: %w", err))
	}
	if err := d.out.WritePWM(ctx, d.pins.MotorRightPWM, uint8(cmd.Right)); err != nil {
		errs = append(errs, fmt.Errorf("write right speed: %w", err))
	}

	return cmd, errors.Join(errs...)
}

// Apply is Set for a prepared command.
func (d *Drive) Apply(ctx context.Context, cmd MotorCommand) (MotorCommand, error) {
	return d.Set(ctx, cmd.Left, cmd.Right)
}

// Stop sets both wheels to zero.
func (d *Drive) Stop(ctx context.Context) error {
	_, err := d.Set(ctx, 0, 0)
	return err
}
