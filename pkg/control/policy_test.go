package control

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gwillem/linetrace/pkg/robot"
)

func TestDecide_Scenarios(t *testing.T) {
	cfg := robot.DefaultConfig()

	tests := []struct {
		name     string
		reading  robot.SensorReading
		rule     Rule
		expected robot.MotorCommand
	}{
		{"A center", robot.SensorReading{Center: true}, Straight, robot.MotorCommand{Left: 150, Right: 150}},
		{"B left", robot.SensorReading{Left: true}, LeftOnLine, robot.MotorCommand{Left: 100, Right: 200}},
		{"C right", robot.SensorReading{Right: true}, RightOnLine, robot.MotorCommand{Left: 200, Right: 100}},
		{"D none", robot.SensorReading{}, LineLost, robot.MotorCommand{Left: 0, Right: 0}},
		{"E center beats left", robot.SensorReading{Left: true, Center: true}, Straight, robot.MotorCommand{Left: 150, Right: 150}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.reading, cfg)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.expected, d.Command)
		})
	}
}

// Every one of the eight sensor combinations maps to exactly the rule its
// highest-priority on-line sensor selects.
func TestDecide_AllCombinations(t *testing.T) {
	cfg := robot.DefaultConfig()

	for bits := 0; bits < 8; bits++ {
		r := robot.SensorReading{
			Left:   bits&4 != 0,
			Center: bits&2 != 0,
			Right:  bits&1 != 0,
		}

		var want Rule
		switch {
		case r.Center:
			want = Straight
		case r.Left:
			want = LeftOnLine
		case r.Right:
			want = RightOnLine
		default:
			want = LineLost
		}

		t.Run(r.String(), func(t *testing.T) {
			d := Decide(r, cfg)
			assert.Equal(t, want, d.Rule)
			// Deterministic: same input, same output.
			assert.Equal(t, d, Decide(r, cfg))
		})
	}
}

func TestDecide_RawCommandNeedsClamp(t *testing.T) {
	cfg := robot.DefaultConfig()
	cfg.BaseSpeed = 230
	cfg.TurnAdjust = 60

	d := Decide(robot.SensorReading{Left: true}, cfg)
	assert.Equal(t, 290, d.Command.Right, "policy output is raw arithmetic")
	assert.Equal(t, robot.MotorCommand{Left: 170, Right: 255}, d.Command.Clamped())
}

func TestRules_Order(t *testing.T) {
	assert.Equal(t, []Rule{Straight, LeftOnLine, RightOnLine, LineLost}, Rules())
}

func ExampleDecide() {
	d := Decide(robot.SensorReading{Right: true}, robot.DefaultConfig())
	fmt.Println(d.Rule, d.Command)
	// Output: right L:200 R:100
}
