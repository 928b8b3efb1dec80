// Package robottest provides in-memory robot I/O for tests.
package robottest

import (
	"context"
	"sync"
)

// Source is an AnalogSource serving fixed samples per channel.
type Source struct {
	mu      sync.Mutex
	Samples map[int]int
	Errors  map[int]error
	Reads   []int
}

// NewSource returns a source with the given channel samples.
func NewSource(samples map[int]int) *Source {
	return &Source{
		Samples: samples,
		Errors:  make(map[int]error),
	}
}

// Set changes the sample of a channel.
func (s *Source) Set(channel, sample int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Samples[channel] = sample
}

// Fail makes reads of a channel return err. A nil err clears the fault.
func (s *Source) Fail(channel int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.Errors, channel)
		return
	}
	s.Errors[channel] = err
}

func (s *Source) ReadAnalog(ctx context.Context, channel int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads = append(s.Reads, channel)
	if err := s.Errors[channel]; err != nil {
		return 0, err
	}
	return s.Samples[channel], nil
}

// Write is a single recorded actuator write.
type Write struct {
	Pin     int
	Value   int
	Digital bool
}

// Actuator records every pin write.
type Actuator struct {
	mu       sync.Mutex
	Writes   []Write
	PWMError error
	DigError error
}

func (a *Actuator) WritePWM(ctx context.Context, pin int, duty uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PWMError != nil {
		return a.PWMError
	}
	a.Writes = append(a.Writes, Write{Pin: pin, Value: int(duty)})
	return nil
}

func (a *Actuator) WriteDigital(ctx context.Context, pin int, high bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DigError != nil {
		return a.DigError
	}
	v := 0
	if high {
		v = 1
	}
	a.Writes = append(a.Writes, Write{Pin: pin, Value: v, Digital: true})
	return nil
}

// Last returns the most recent value written to a pin.
func (a *Actuator) Last(pin int) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.Writes) - 1; i >= 0; i-- {
		if a.Writes[i].Pin == pin {
			return a.Writes[i].Value, true
		}
	}
	return 0, false
}

// Count returns how many writes hit a pin.
func (a *Actuator) Count(pin int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, w := range a.Writes {
		if w.Pin == pin {
			n++
		}
	}
	return n
}
