package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/sim"
)

type SimCommand struct {
	Track  string        `long:"track" default:"oval" description:"Built-in track name or path to a YAML track file"`
	Steps  int           `long:"steps" default:"4000" description:"Number of control cycles"`
	Dt     time.Duration `long:"dt" default:"5ms" description:"Simulated time per control cycle"`
	Diag   bool          `long:"diag" description:"Print the per-cycle diagnostic stream"`
	NoPlot bool          `long:"no-plot" description:"Skip the offset plot"`
	Export string        `long:"export" description:"Write the selected track as YAML to this path and exit"`
}

const plotPoints = 200

func (c *SimCommand) loadTrack() (*sim.Track, error) {
	if t := sim.Preset(c.Track); t != nil {
		return t, nil
	}
	if _, err := os.Stat(c.Track); err != nil {
		return nil, fmt.Errorf("unknown track %q (built-in: %s)", c.Track, strings.Join(sim.PresetNames(), ", "))
	}
	return sim.LoadTrack(c.Track)
}

func (c *SimCommand) Execute(args []string) error {
	track, err := c.loadTrack()
	if err != nil {
		return err
	}

	if c.Export != "" {
		if err := track.Save(c.Export); err != nil {
			return err
		}
		fmt.Printf("Track %s written to %s\n", track.Name, c.Export)
		return nil
	}

	cfg := sim.DefaultConfig()
	cfg.Steps = c.Steps
	cfg.Dt = c.Dt
	cfg.Logger = logger
	if c.Diag {
		cfg.Diagnostics = os.Stdout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Debug("simulation starting", zap.String("track", track.Name), zap.Int("steps", c.Steps))
	res, err := sim.Run(ctx, track, cfg)
	if err != nil && res == nil {
		return err
	}

	printSummary(os.Stdout, res)
	if !c.NoPlot && len(res.Samples) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(downsample(res.Offsets(), plotPoints),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("offset from line (mm)"),
		))
	}
	return err
}

func printSummary(w io.Writer, res *sim.Result) {
	fmt.Fprintln(w, headerStyle.Render("Simulation: "+res.Track))
	fmt.Fprintln(w, dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Fprintf(w, "  Cycles:       %d\n", res.StepsTaken)
	fmt.Fprintf(w, "  Distance:     %.0f mm\n", res.Distance)
	fmt.Fprintf(w, "  Mean offset:  %.1f mm\n", res.MeanAbsOffset)
	fmt.Fprintf(w, "  Max offset:   %.1f mm\n", res.MaxAbsOffset)

	rules := make([]string, 0, len(res.RuleCounts))
	for r := range res.RuleCounts {
		rules = append(rules, string(r))
	}
	sort.Strings(rules)
	for _, r := range rules {
		fmt.Fprintf(w, "  %-12s  %d\n", r+":", res.RuleCounts[control.Rule(r)])
	}

	if res.LineLost {
		fmt.Fprintln(w, lostStyle.Render(fmt.Sprintf("Line lost after %d cycles, robot stopped.", res.StepsTaken)))
	} else {
		fmt.Fprintln(w, successStyle.Render("Line followed for the whole run."))
	}
}

// downsample keeps at most n evenly spaced values.
func downsample(data []float64, n int) []float64 {
	if len(data) <= n {
		return data
	}
	out := make([]float64, n)
	step := float64(len(data)-1) / float64(n-1)
	for i := range out {
		out[i] = data[int(float64(i)*step)]
	}
	return out
}
