// Package sim runs the line-following controller against a simulated
// differential-drive robot on a simulated track.
package sim

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Point is a position on the track plane in millimetres.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Pose is a robot position and heading. Heading is in degrees,
// counter-clockwise from the +X axis.
type Pose struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Heading float64 `yaml:"heading"`
}

func (p Pose) point() Point { return Point{X: p.X, Y: p.Y} }

func (p Pose) radians() float64 { return p.Heading * math.Pi / 180 }

func fromRadians(r float64) float64 { return r * 180 / math.Pi }

// Track is a line drawn as a polyline.
type Track struct {
	Name      string  `yaml:"name"`
	LineWidth float64 `yaml:"line_width"`
	Closed    bool    `yaml:"closed"`
	Start     Pose    `yaml:"start"`
	Points    []Point `yaml:"points"`
}

// LoadTrack reads a track from a YAML file.
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t := &Track{LineWidth: DefaultLineWidth}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse track %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Save writes the track as YAML.
func (t *Track) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that the track can be simulated.
func (t *Track) Validate() error {
	if len(t.Points) < 2 {
		return errors.New("track needs at least two points")
	}
	if t.LineWidth <= 0 {
		return fmt.Errorf("line width must be positive, got %f", t.LineWidth)
	}
	return nil
}

// Distance returns the shortest distance from p to the line's center.
func (t *Track) Distance(p Point) float64 {
	best := math.Inf(1)
	n := len(t.Points)
	segments := n - 1
	if t.Closed {
		segments = n
	}
	for i := 0; i < segments; i++ {
		a, b := t.Points[i], t.Points[(i+1)%n]
		best = math.Min(best, segmentDistance(p, a, b))
	}
	return best
}

// OnLine reports whether p lies on the painted line.
func (t *Track) OnLine(p Point) bool {
	return t.Distance(p) < t.LineWidth/2
}

func segmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	u := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	u = math.Max(0, math.Min(1, u))
	return math.Hypot(p.X-(a.X+u*dx), p.Y-(a.Y+u*dy))
}
