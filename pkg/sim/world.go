package sim

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gwillem/linetrace/pkg/robot"
)

// Body describes the simulated chassis and sensor bar. Lengths are in
// millimetres.
type Body struct {
	WheelBase     float64 `yaml:"wheel_base"`
	MaxWheelSpeed float64 `yaml:"max_wheel_speed"` // mm/s at duty 255
	SensorOffset  float64 `yaml:"sensor_offset"`   // sensor bar ahead of the axle
	SensorSpacing float64 `yaml:"sensor_spacing"`  // between adjacent sensors
	OnLineValue   int     `yaml:"on_line_value"`
	OffLineValue  int     `yaml:"off_line_value"`
}

// DefaultBody returns a small hobby chassis.
func DefaultBody() Body {
	return Body{
		WheelBase:     120,
		MaxWheelSpeed: 400,
		SensorOffset:  60,
		SensorSpacing: 12,
		OnLineValue:   200,
		OffLineValue:  900,
	}
}

// World is a simulated robot on a track. It implements robot.AnalogSource
// and robot.Actuator.
type World struct {
	track *Track
	body  Body
	pins  robot.Pins

	mu       sync.Mutex
	pose     Pose
	duty     map[int]uint8
	forward  map[int]bool
	odometer float64
}

// NewWorld places a robot at the track's start pose.
func NewWorld(track *Track, body Body, pins robot.Pins) *World {
	return &World{
		track:   track,
		body:    body,
		pins:    pins,
		pose:    track.Start,
		duty:    make(map[int]uint8),
		forward: make(map[int]bool),
	}
}

// Pose returns the current robot pose.
func (w *World) Pose() Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pose
}

// Odometer returns the distance driven so far.
func (w *World) Odometer() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.odometer
}

// Offset returns the distance from the axle center to the line.
func (w *World) Offset() float64 {
	return w.track.Distance(w.Pose().point())
}

// SensorPosition returns where a sensor channel currently looks.
func (w *World) SensorPosition(channel int) (Point, error) {
	var lateral float64
	switch channel {
	case w.pins.SensorLeft:
		lateral = w.body.SensorSpacing
	case w.pins.SensorCenter:
		lateral = 0
	case w.pins.SensorRight:
		lateral = -w.body.SensorSpacing
	default:
		return Point{}, fmt.Errorf("no sensor on channel %d", channel)
	}

	w.mu.Lock()
	p := w.pose
	w.mu.Unlock()

	h := p.radians()
	cos, sin := math.Cos(h), math.Sin(h)
	return Point{
		X: p.X + w.body.SensorOffset*cos - lateral*sin,
		Y: p.Y + w.body.SensorOffset*sin + lateral*cos,
	}, nil
}

func (w *World) ReadAnalog(ctx context.Context, channel int) (int, error) {
	pt, err := w.SensorPosition(channel)
	if err != nil {
		return 0, err
	}
	if w.track.OnLine(pt) {
		return w.body.OnLineValue, nil
	}
	return w.body.OffLineValue, nil
}

func (w *World) WritePWM(ctx context.Context, pin int, duty uint8) error {
	if pin != w.pins.MotorLeftPWM && pin != w.pins.MotorRightPWM {
		return fmt.Errorf("no PWM output on pin %d", pin)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.duty[pin] = duty
	return nil
}

func (w *World) WriteDigital(ctx context.Context, pin int, high bool) error {
	if pin != w.pins.MotorLeftDir && pin != w.pins.MotorRightDir {
		return fmt.Errorf("no digital output on pin %d", pin)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forward[pin] = high
	return nil
}

func (w *World) wheelSpeed(pwmPin, dirPin int) float64 {
	v := float64(w.duty[pwmPin]) / robot.MaxSpeed * w.body.MaxWheelSpeed
	if !w.forward[dirPin] {
		v = -v
	}
	return v
}

// Advance moves the robot for dt seconds at the current wheel speeds.
func (w *World) Advance(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	vl := w.wheelSpeed(w.pins.MotorLeftPWM, w.pins.MotorLeftDir)
	vr := w.wheelSpeed(w.pins.MotorRightPWM, w.pins.MotorRightDir)

	v := (vl + vr) / 2
	omega := (vr - vl) / w.body.WheelBase

	h := w.pose.radians()
	mid := h + omega*dt/2
	w.pose.X += v * math.Cos(mid) * dt
	w.pose.Y += v * math.Sin(mid) * dt
	w.pose.Heading = fromRadians(h + omega*dt)
	w.odometer += math.Abs(v) * dt
}
