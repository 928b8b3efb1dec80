package sim

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/robot"
)

func TestTrackDistance(t *testing.T) {
	g := NewWithT(t)
	track := &Track{LineWidth: 20, Points: []Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}

	g.Expect(track.Distance(Point{X: 50, Y: 5})).To(BeNumerically("~", 5, 1e-9))
	g.Expect(track.Distance(Point{X: -30, Y: 40})).To(BeNumerically("~", 50, 1e-9))
	g.Expect(track.Distance(Point{X: 130, Y: 0})).To(BeNumerically("~", 30, 1e-9))

	g.Expect(track.OnLine(Point{X: 50, Y: 9.9})).To(BeTrue())
	g.Expect(track.OnLine(Point{X: 50, Y: 10})).To(BeFalse())
}

func TestTrackDistance_Closed(t *testing.T) {
	g := NewWithT(t)
	square := &Track{LineWidth: 20, Closed: true, Points: []Point{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
	}}
	// Closing edge runs from (0,100) back to (0,0).
	g.Expect(square.Distance(Point{X: -5, Y: 50})).To(BeNumerically("~", 5, 1e-9))

	square.Closed = false
	g.Expect(square.Distance(Point{X: -5, Y: 50})).To(BeNumerically("~", 50.25, 0.01))
}

func TestPresets(t *testing.T) {
	g := NewWithT(t)
	g.Expect(PresetNames()).To(Equal([]string{"oval", "straight", "wave"}))
	g.Expect(Preset("nonexistent")).To(BeNil())

	for _, name := range PresetNames() {
		track := Preset(name)
		g.Expect(track.Validate()).To(Succeed(), name)
		g.Expect(track.OnLine(track.Start.point())).To(BeTrue(), "%s starts on the line", name)
	}
}

func TestTrackSaveLoad(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "oval.yaml")

	orig := Preset("oval")
	g.Expect(orig.Save(path)).To(Succeed())

	loaded, err := LoadTrack(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(loaded.Name).To(Equal("oval"))
	g.Expect(loaded.Closed).To(BeTrue())
	g.Expect(loaded.Points).To(HaveLen(len(orig.Points)))
}

func TestLoadTrack_Invalid(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	bad := &Track{Name: "dot", LineWidth: 20, Points: []Point{{X: 1, Y: 1}}}
	g.Expect(bad.Save(path)).To(Succeed())

	_, err := LoadTrack(path)
	g.Expect(err).To(MatchError(ContainSubstring("two points")))
}

func TestWorld_Sensors(t *testing.T) {
	g := NewWithT(t)
	pins := robot.DefaultConfig().Pins
	body := DefaultBody()
	ctx := context.Background()

	// Robot sits 12mm left of the line, so the right sensor is centered on it.
	track := Preset("straight")
	track.Start = Pose{X: 0, Y: 12, Heading: 0}
	w := NewWorld(track, body, pins)

	read := func(ch int) int {
		v, err := w.ReadAnalog(ctx, ch)
		g.Expect(err).NotTo(HaveOccurred())
		return v
	}
	g.Expect(read(pins.SensorLeft)).To(Equal(body.OffLineValue))
	g.Expect(read(pins.SensorCenter)).To(Equal(body.OffLineValue))
	g.Expect(read(pins.SensorRight)).To(Equal(body.OnLineValue))

	_, err := w.ReadAnalog(ctx, 7)
	g.Expect(err).To(HaveOccurred())
	g.Expect(w.WritePWM(ctx, 3, 10)).NotTo(Succeed())
	g.Expect(w.WriteDigital(ctx, 3, true)).NotTo(Succeed())
}

func TestWorld_Kinematics(t *testing.T) {
	g := NewWithT(t)
	pins := robot.DefaultConfig().Pins
	ctx := context.Background()
	w := NewWorld(Preset("straight"), DefaultBody(), pins)

	g.Expect(w.WriteDigital(ctx, pins.MotorLeftDir, true)).To(Succeed())
	g.Expect(w.WriteDigital(ctx, pins.MotorRightDir, true)).To(Succeed())

	// Full speed straight for one second.
	g.Expect(w.WritePWM(ctx, pins.MotorLeftPWM, 255)).To(Succeed())
	g.Expect(w.WritePWM(ctx, pins.MotorRightPWM, 255)).To(Succeed())
	w.Advance(1)
	g.Expect(w.Pose().X).To(BeNumerically("~", 400, 1e-6))
	g.Expect(w.Pose().Heading).To(BeNumerically("~", 0, 1e-9))

	// Right wheel faster turns counter-clockwise.
	g.Expect(w.WritePWM(ctx, pins.MotorLeftPWM, 0)).To(Succeed())
	w.Advance(0.1)
	g.Expect(w.Pose().Heading).To(BeNumerically(">", 0))
	g.Expect(w.Odometer()).To(BeNumerically(">", 400))
}

func TestRun_Presets(t *testing.T) {
	for _, name := range []string{"straight", "oval", "wave"} {
		t.Run(name, func(t *testing.T) {
			g := NewWithT(t)
			cfg := DefaultConfig()
			cfg.Steps = 2000

			res, err := Run(context.Background(), Preset(name), cfg)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(res.LineLost).To(BeFalse())
			g.Expect(res.StepsTaken).To(Equal(cfg.Steps))
			g.Expect(res.Distance).To(BeNumerically(">", 1000))
			g.Expect(res.MaxAbsOffset).To(BeNumerically("<", 40))
			g.Expect(res.RuleCounts[control.Straight]).To(BeNumerically(">", 0))
		})
	}
}

func TestRun_CorrectsOffset(t *testing.T) {
	g := NewWithT(t)
	track := Preset("straight")
	track.Start = Pose{X: 0, Y: 8, Heading: 5}

	res, err := Run(context.Background(), track, DefaultConfig())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.LineLost).To(BeFalse())
	g.Expect(res.RuleCounts[control.RightOnLine]).To(BeNumerically(">", 0))

	last := res.Samples[len(res.Samples)-1]
	g.Expect(last.Offset).To(BeNumerically("<", 15))
}

func TestRun_StopsWhenLost(t *testing.T) {
	g := NewWithT(t)
	track := Preset("straight")
	track.Start = Pose{X: 0, Y: 200, Heading: 0}

	var diag bytes.Buffer
	cfg := DefaultConfig()
	cfg.Diagnostics = &diag

	res, err := Run(context.Background(), track, cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.LineLost).To(BeTrue())
	g.Expect(res.StepsTaken).To(Equal(1))
	g.Expect(res.Samples[0].Command).To(Equal(robot.MotorCommand{}))
	g.Expect(res.Samples[0].Pose.X).To(BeNumerically("~", 0, 1e-9))
	g.Expect(strings.TrimSpace(diag.String())).To(Equal("L:0 C:0 R:0"))
}

func TestRun_InvalidConfig(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultConfig()
	cfg.Dt = 0
	_, err := Run(context.Background(), Preset("straight"), cfg)
	g.Expect(err).To(HaveOccurred())

	cfg = DefaultConfig()
	cfg.Steps = -1
	_, err = Run(context.Background(), Preset("straight"), cfg)
	g.Expect(err).To(HaveOccurred())
}

func TestRun_Cancelled(t *testing.T) {
	g := NewWithT(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Preset("straight"), DefaultConfig())
	g.Expect(err).To(MatchError(context.Canceled))
	g.Expect(res.StepsTaken).To(BeZero())
	g.Expect(math.IsNaN(res.MeanAbsOffset)).To(BeFalse())
}
