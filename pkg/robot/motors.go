// Package robot provides the sensor and motor abstractions of a
// three-sensor differential-drive line follower.
package robot

import (
	"context"
	"fmt"
)

// Speed limits accepted by the PWM outputs.
const (
	MinSpeed = 0
	MaxSpeed = 255
)

// Side identifies a sensor or wheel position on the chassis.
type Side string

const (
	Left   Side = "left"
	Center Side = "center"
	Right  Side = "right"
)

// AllSensors returns the sensor positions in sampling order.
func AllSensors() []Side {
	return []Side{Left, Center, Right}
}

// MotorCommand is a pair of wheel speeds.
type MotorCommand struct {
	Left  int `json:"left_speed"`
	Right int `json:"right_speed"`
}

// Clamped returns the command with both speeds clamped to [MinSpeed, MaxSpeed].
func (m MotorCommand) Clamped() MotorCommand {
	return MotorCommand{Left: Clamp(m.Left), Right: Clamp(m.Right)}
}

func (m MotorCommand) String() string {
	return fmt.Sprintf("L:%d R:%d", m.Left, m.Right)
}

// Clamp saturates a speed into [MinSpeed, MaxSpeed].
func Clamp(speed int) int {
	return max(MinSpeed, min(MaxSpeed, speed))
}

// Actuator drives the motor output pins.
type Actuator interface {
	// WritePWM sets the duty cycle of a speed pin.
	WritePWM(ctx context.Context, pin int, duty uint8) error
	// WriteDigital sets a direction pin high (forward) or low.
	WriteDigital(ctx context.Context, pin int, high bool) error
}
