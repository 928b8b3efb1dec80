// Package control implements the line-following decision policy and the
// polling control loop that applies it.
package control

import "github.com/gwillem/linetrace/pkg/robot"

// Rule names the policy branch that produced a command.
type Rule string

const (
	Straight    Rule = "straight" // center on the line
	LeftOnLine  Rule = "left"     // line under the left sensor, speed up the right wheel
	RightOnLine Rule = "right"    // line under the right sensor, speed up the left wheel
	LineLost    Rule = "lost"     // no sensor on the line, stop
)

// Decision is the outcome of the policy for one reading.
type Decision struct {
	Rule    Rule
	Command robot.MotorCommand // raw, not yet clamped
}

type rule struct {
	name    Rule
	matches func(robot.SensorReading) bool
	command func(robot.Config) robot.MotorCommand
}

// rules is evaluated top to bottom; the first match wins. The center sensor
// outranks the edge sensors so a centered line keeps the robot straight even
// when an edge sensor also sees it (wide line, crossing).
var rules = []rule{
	{
		name:    Straight,
		matches: func(r robot.SensorReading) bool { return r.Center },
		command: func(c robot.Config) robot.MotorCommand {
			return robot.MotorCommand{Left: c.BaseSpeed, Right: c.BaseSpeed}
		},
	},
	{
		name:    LeftOnLine,
		matches: func(r robot.SensorReading) bool { return r.Left },
		command: func(c robot.Config) robot.MotorCommand {
			return robot.MotorCommand{Left: c.BaseSpeed - c.TurnAdjust, Right: c.BaseSpeed + c.TurnAdjust}
		},
	},
	{
		name:    RightOnLine,
		matches: func(r robot.SensorReading) bool { return r.Right },
		command: func(c robot.Config) robot.MotorCommand {
			return robot.MotorCommand{Left: c.BaseSpeed + c.TurnAdjust, Right: c.BaseSpeed - c.TurnAdjust}
		},
	},
	{
		name:    LineLost,
		matches: func(robot.SensorReading) bool { return true },
		command: func(robot.Config) robot.MotorCommand { return robot.MotorCommand{} },
	},
}

// Rules returns the rule names in priority order.
func Rules() []Rule {
	names := make([]Rule, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// Decide maps a reading to a wheel command. The last rule matches every
// reading, so Decide is total over all eight sensor combinations.
func Decide(r robot.SensorReading, cfg robot.Config) Decision {
	for _, rl := range rules {
		if rl.matches(r) {
			return Decision{Rule: rl.name, Command: rl.command(cfg)}
		}
	}
	panic("control: no rule matched") // unreachable, LineLost matches everything
}
