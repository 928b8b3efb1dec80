package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/jessevdk/go-flags"

	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/sim"
)

func TestDownsample(t *testing.T) {
	data := make([]float64, 1000)
	for i := range data {
		data[i] = float64(i)
	}

	got := downsample(data, 10)
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	if got[0] != 0 || got[9] != 999 {
		t.Errorf("endpoints = %v, %v, want 0, 999", got[0], got[9])
	}

	short := []float64{1, 2, 3}
	if got := downsample(short, 10); len(got) != 3 {
		t.Errorf("short input resized to %d", len(got))
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &sim.Result{
		Track:      "oval",
		StepsTaken: 12,
		LineLost:   true,
		RuleCounts: map[control.Rule]int{control.Straight: 11, control.LineLost: 1},
	})

	out := buf.String()
	for _, want := range []string{"oval", "Cycles:       12", "straight:", "lost:", "Line lost after 12 cycles"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSimCommand_LoadTrack(t *testing.T) {
	c := &SimCommand{Track: "wave"}
	track, err := c.loadTrack()
	if err != nil {
		t.Fatalf("loadTrack: %v", err)
	}
	if track.Name != "wave" {
		t.Errorf("track = %q, want wave", track.Name)
	}

	c.Track = "no-such-track"
	if _, err := c.loadTrack(); err == nil {
		t.Error("loadTrack should fail for an unknown track")
	}
}

func TestParseFlags(t *testing.T) {
	var o Options
	p := flags.NewParser(&o, flags.Default&^flags.PrintErrors)
	p.CommandHandler = func(flags.Commander, []string) error { return nil }

	if _, err := p.ParseArgs([]string{"-v", "sim", "--track", "straight", "--steps", "10", "--dt", "2ms"}); err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if !o.Verbose || o.Sim.Track != "straight" || o.Sim.Steps != 10 || o.Sim.Dt.Milliseconds() != 2 {
		t.Errorf("unexpected options: %+v", o.Sim)
	}
}

func TestSelectBridge(t *testing.T) {
	one := []bridgeInfo{{port: "/dev/ttyACM0", version: "1.0"}}
	two := append(one, bridgeInfo{port: "/dev/ttyACM1", version: "1.1"})
	noAsk := func([]bridgeInfo) (string, error) {
		t.Fatal("ask called")
		return "", nil
	}

	if _, err := selectBridge(nil, noAsk); !errors.Is(err, errNoBridge) {
		t.Errorf("no bridges: err = %v, want errNoBridge", err)
	}

	port, err := selectBridge(one, noAsk)
	if err != nil || port != "/dev/ttyACM0" {
		t.Errorf("one bridge: got %q, %v", port, err)
	}

	port, err = selectBridge(two, func([]bridgeInfo) (string, error) { return "/dev/ttyACM1", nil })
	if err != nil || port != "/dev/ttyACM1" {
		t.Errorf("chosen bridge: got %q, %v", port, err)
	}

	_, err = selectBridge(two, func([]bridgeInfo) (string, error) { return "", huh.ErrUserAborted })
	if !errors.Is(err, errSetupAborted) {
		t.Errorf("aborted: err = %v, want errSetupAborted", err)
	}
}
