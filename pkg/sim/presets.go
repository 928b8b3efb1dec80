package sim

import (
	"math"
	"sort"
)

// DefaultLineWidth is the width of standard electrical tape.
const DefaultLineWidth = 20.0

var presets = map[string]func() *Track{
	"straight": straightTrack,
	"oval":     ovalTrack,
	"wave":     waveTrack,
}

// Preset returns a built-in track, or nil if name is unknown.
func Preset(name string) *Track {
	fn, ok := presets[name]
	if !ok {
		return nil
	}
	return fn()
}

// PresetNames lists the built-in tracks.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func straightTrack() *Track {
	return &Track{
		Name:      "straight",
		LineWidth: DefaultLineWidth,
		Start:     Pose{X: 0, Y: 0, Heading: 0},
		Points:    []Point{{X: -100, Y: 0}, {X: 10000, Y: 0}},
	}
}

// ovalTrack is a stadium of 1m straights and 300mm turns, driven
// counter-clockwise.
func ovalTrack() *Track {
	const (
		length = 1000.0
		radius = 300.0
		steps  = 36
	)

	var pts []Point
	pts = append(pts, Point{X: 0, Y: 0})
	for i := 0; i <= steps; i++ {
		a := -math.Pi/2 + math.Pi*float64(i)/steps
		pts = append(pts, Point{X: length + radius*math.Cos(a), Y: radius + radius*math.Sin(a)})
	}
	for i := 0; i <= steps; i++ {
		a := math.Pi/2 + math.Pi*float64(i)/steps
		pts = append(pts, Point{X: radius * math.Cos(a), Y: radius + radius*math.Sin(a)})
	}

	return &Track{
		Name:      "oval",
		LineWidth: DefaultLineWidth,
		Closed:    true,
		Start:     Pose{X: 100, Y: 0, Heading: 0},
		Points:    pts,
	}
}

// waveTrack is a sine with 150mm amplitude and 1.5m wavelength.
func waveTrack() *Track {
	const (
		amplitude  = 150.0
		wavelength = 1500.0
		length     = 4500.0
		step       = 25.0
	)

	k := 2 * math.Pi / wavelength
	var pts []Point
	for x := 0.0; x <= length; x += step {
		pts = append(pts, Point{X: x, Y: amplitude * math.Sin(k*x)})
	}

	return &Track{
		Name:      "wave",
		LineWidth: DefaultLineWidth,
		Start:     Pose{X: 0, Y: 0, Heading: fromRadians(math.Atan(amplitude * k))},
		Points:    pts,
	}
}
