package robot

import (
	"context"
	"errors"
	"fmt"
)

// AnalogSource samples analog input channels.
type AnalogSource interface {
	// ReadAnalog returns the current raw sample of a channel (0-1023 on a
	// 10-bit converter).
	ReadAnalog(ctx context.Context, channel int) (int, error)
}

// SensorReading holds the on-line classification of the three sensors.
type SensorReading struct {
	Left   bool `json:"left"`
	Center bool `json:"center"`
	Right  bool `json:"right"`
}

// String formats the reading as "L:<0|1> C:<0|1> R:<0|1>".
func (r SensorReading) String() string {
	return fmt.Sprintf("L:%d C:%d R:%d", bit(r.Left), bit(r.Center), bit(r.Right))
}

// Bits returns the reading as 0/1 values in left, center, right order.
func (r SensorReading) Bits() [3]int {
	return [3]int{bit(r.Left), bit(r.Center), bit(r.Right)}
}

// Any reports whether any sensor sees the line.
func (r SensorReading) Any() bool {
	return r.Left || r.Center || r.Right
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Classify reports whether a raw sample is on the line. Lower values mean
// less reflected light, i.e. a dark line on a light surface. The comparison
// is strict: a sample equal to the threshold is off-line.
func Classify(sample, threshold int) bool {
	return sample < threshold
}

// SensorReader samples the three line sensors.
type SensorReader struct {
	src       AnalogSource
	pins      Pins
	threshold int
}

// NewSensorReader creates a reader for the configured sensor channels.
func NewSensorReader(src AnalogSource, cfg Config) *SensorReader {
	return &SensorReader{
		src:       src,
		pins:      cfg.Pins,
		threshold: cfg.LineThreshold,
	}
}

// Read samples left, center and right in that order.
//
// A channel that cannot be read is classified as off-line. The returned
// reading is always usable; the error, if any, lists every failed channel.
func (s *SensorReader) Read(ctx context.Context) (SensorReading, error) {
	var errs []error
	sample := func(side Side, channel int) bool {
		raw, err := s.src.ReadAnalog(ctx, channel)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s sensor: %w", side, err))
			return false
		}
		return Classify(raw, s.threshold)
	}

	r := SensorReading{
		Left:   sample(Left, s.pins.SensorLeft),
		Center: sample(Center, s.pins.SensorCenter),
		Right:  sample(Right, s.pins.SensorRight),
	}
	return r, errors.Join(errs...)
}
