package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwillem/linetrace/pkg/control"
)

// DefaultInterval is how often the newest state is sampled.
const DefaultInterval = 500 * time.Millisecond

// Stats counts delivery outcomes.
type Stats struct {
	Success int
	Fail    int
}

func (s Stats) Total() int { return s.Success + s.Fail }

// Publisher samples controller states and forwards them to sinks. It
// implements control.Observer; Observe never blocks.
type Publisher struct {
	runID     string
	baseSpeed int
	interval  time.Duration
	sinks     []Sink
	logger    *zap.Logger

	mu      sync.Mutex
	latest  control.State
	pending bool
	stats   Stats

	wake chan struct{}
	done chan struct{}
}

// NewPublisher creates a publisher with a fresh run ID. A zero interval uses
// DefaultInterval.
func NewPublisher(baseSpeed int, interval time.Duration, logger *zap.Logger, sinks ...Sink) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		runID:     uuid.NewString(),
		baseSpeed: baseSpeed,
		interval:  interval,
		sinks:     sinks,
		logger:    logger,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// RunID identifies this run in every record.
func (p *Publisher) RunID() string {
	return p.runID
}

// Observe stores the state for the next sample.
func (p *Publisher) Observe(s control.State) {
	p.mu.Lock()
	p.latest = s
	p.pending = true
	p.mu.Unlock()
}

// Stats returns delivery counters.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run sends the newest state every interval until ctx is cancelled, then
// flushes a final pending state.
func (p *Publisher) Run(ctx context.Context) error {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), DefaultHTTPTimeout)
			p.flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			p.flush(ctx)
		case <-p.wake:
			p.flush(ctx)
		}
	}
}

// Flush asks the running publisher to send the pending state now.
func (p *Publisher) Flush() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		return
	}
	s := p.latest
	p.pending = false
	p.mu.Unlock()

	r := NewRecord(p.runID, p.baseSpeed, s)
	for _, sink := range p.sinks {
		err := sink.Send(ctx, r)

		p.mu.Lock()
		if err != nil {
			p.stats.Fail++
		} else {
			p.stats.Success++
		}
		n := p.stats.Total()
		p.mu.Unlock()

		if err != nil {
			p.logger.Warn("telemetry send failed", zap.Error(err), zap.Uint64("cycle", r.Cycle))
		} else {
			p.logger.Debug("telemetry sent",
				zap.Int("count", n),
				zap.Int("left_speed", r.Motor.LeftSpeed),
				zap.Int("right_speed", r.Motor.RightSpeed),
				zap.String("rule", r.Control.Rule))
		}
	}
}

// Close waits for Run to return and closes all sinks. Call it after the
// context passed to Run has been cancelled.
func (p *Publisher) Close() error {
	<-p.done

	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	st := p.Stats()
	p.logger.Info("telemetry stopped",
		zap.String("run_id", p.runID),
		zap.Int("success", st.Success),
		zap.Int("fail", st.Fail),
		zap.Int("total", st.Total()))
	return errors.Join(errs...)
}
