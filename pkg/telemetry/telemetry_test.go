package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/robot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// net/http keeps idle connection goroutines around briefly.
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func sampleState() control.State {
	return control.State{
		Cycle:     42,
		Timestamp: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		Reading:   robot.SensorReading{Left: true},
		Rule:      control.LeftOnLine,
		Command:   robot.MotorCommand{Left: 100, Right: 200},
	}
}

func TestNewRecord(t *testing.T) {
	s := sampleState()
	s.Error = errors.New("read center sensor: timeout")

	got := NewRecord("run-1", robot.BaseSpeed, s)
	want := Record{
		RunID:     "run-1",
		Cycle:     42,
		Timestamp: s.Timestamp,
		Sensors:   [3]int{1, 0, 0},
		Motor:     Motor{LeftSpeed: 100, RightSpeed: 200},
		Control:   Control{Rule: "left", BaseSpeed: 150, Error: "read center sensor: timeout"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewRecord mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPSink(t *testing.T) {
	var got Record
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, time.Second)
	defer sink.Close()

	rec := NewRecord("run-1", 150, sampleState())
	require.NoError(t, sink.Send(context.Background(), rec))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, rec.Motor, got.Motor)
	assert.Equal(t, rec.Sensors, got.Sensors)
	assert.Equal(t, "left", got.Control.Rule)
}

func TestHTTPSink_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, time.Second)
	defer sink.Close()
	assert.Error(t, sink.Send(context.Background(), Record{}))
}

func TestSQLiteSink(t *testing.T) {
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer sink.Close()

	ctx := context.Background()
	first := NewRecord("run-1", 150, sampleState())
	second := first
	second.Cycle = 43
	second.Sensors = [3]int{0, 0, 0}
	second.Motor = Motor{}
	second.Control.Rule = "lost"

	require.NoError(t, sink.Send(ctx, second))
	require.NoError(t, sink.Send(ctx, first))
	require.NoError(t, sink.Send(ctx, NewRecord("run-2", 150, sampleState())))

	got, err := sink.Records(ctx, "run-1")
	require.NoError(t, err)

	want := []Record{first, second}
	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("Records mismatch (-want +got):\n%s", diff)
	}

	// Cycle numbers are unique per run.
	assert.Error(t, sink.Send(ctx, first))
}

type memorySink struct {
	mu      sync.Mutex
	records []Record
	err     error
	closed  bool
}

func (m *memorySink) Send(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func (m *memorySink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestPublisher(t *testing.T) {
	good := &memorySink{}
	bad := &memorySink{err: errors.New("offline")}
	p := NewPublisher(150, time.Hour, nil, good, bad)
	require.NotEmpty(t, p.RunID())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Only the newest observed state is published.
	for i := uint64(1); i <= 5; i++ {
		s := sampleState()
		s.Cycle = i
		p.Observe(s)
	}
	p.Flush()
	require.Eventually(t, func() bool { return good.len() == 1 }, time.Second, time.Millisecond)

	// Nothing new observed: flushing again sends nothing.
	p.Flush()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, good.len())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, p.Close())

	assert.EqualValues(t, 5, good.records[0].Cycle)
	assert.Equal(t, p.RunID(), good.records[0].RunID)
	assert.Equal(t, Stats{Success: 1, Fail: 1}, p.Stats())
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
}

func TestPublisher_FlushesOnStop(t *testing.T) {
	sink := &memorySink{}
	p := NewPublisher(150, time.Hour, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Observe(sampleState())
	cancel()
	<-done
	require.NoError(t, p.Close())
	assert.Equal(t, 1, sink.len())
}
