// Package telemetry publishes controller state to remote or local sinks
// without slowing the control loop.
package telemetry

import (
	"context"
	"time"

	"github.com/gwillem/linetrace/pkg/control"
)

// Record is one telemetry sample.
type Record struct {
	RunID     string    `json:"run_id"`
	Cycle     uint64    `json:"cycle"`
	Timestamp time.Time `json:"timestamp"`
	Sensors   [3]int    `json:"sensors"` // left, center, right as 0/1
	Motor     Motor     `json:"motor"`
	Control   Control   `json:"control"`
}

type Motor struct {
	LeftSpeed  int `json:"left_speed"`
	RightSpeed int `json:"right_speed"`
}

type Control struct {
	Rule      string `json:"rule"`
	BaseSpeed int    `json:"base_speed"`
	Error     string `json:"error,omitempty"`
}

// NewRecord converts a controller state.
func NewRecord(runID string, baseSpeed int, s control.State) Record {
	r := Record{
		RunID:     runID,
		Cycle:     s.Cycle,
		Timestamp: s.Timestamp,
		Sensors:   s.Reading.Bits(),
		Motor: Motor{
			LeftSpeed:  s.Command.Left,
			RightSpeed: s.Command.Right,
		},
		Control: Control{
			Rule:      string(s.Rule),
			BaseSpeed: baseSpeed,
		},
	}
	if s.Error != nil {
		r.Control.Error = s.Error.Error()
	}
	return r
}

// Sink stores or forwards records.
type Sink interface {
	Send(ctx context.Context, r Record) error
	Close() error
}
