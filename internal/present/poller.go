package present

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/faulttwin/faulttwin/pkg/types"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = 1000 * time.Millisecond

// Snapshotter is the read side of the history store.
type Snapshotter interface {
	Snapshot() []types.HistoryEntry
	Cap() int
}

// Sink receives every view the poller builds. Publish is called on the
// poller goroutine and must not block.
type Sink interface {
	Publish(ctx context.Context, v *View)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, v *View)

func (f SinkFunc) Publish(ctx context.Context, v *View) { f(ctx, v) }

// Poller periodically snapshots the history and publishes views.
type Poller struct {
	st       Snapshotter
	interval time.Duration
	sinks    []Sink
	latest   atomic.Pointer[View]
	now      func() time.Time // injectable for deterministic tests
}

// NewPoller creates a Poller. A non-positive interval uses DefaultInterval.
func NewPoller(st Snapshotter, interval time.Duration, sinks ...Sink) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		st:       st,
		interval: interval,
		sinks:    sinks,
		now:      time.Now,
	}
}

// AddSink appends a sink. It must be called before Run.
func (p *Poller) AddSink(s Sink) { p.sinks = append(p.sinks, s) }

// Interval returns the refresh period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run polls immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("present: poller started", "interval", p.interval, "sinks", len(p.sinks))

	p.Poll(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.Poll(ctx)
		}
	}
}

// Poll takes one snapshot, stores the resulting view and hands it to every
// sink.
func (p *Poller) Poll(ctx context.Context) *View {
	v := Build(p.st.Snapshot(), p.st.Cap(), p.now())
	p.latest.Store(v)
	for _, s := range p.sinks {
		s.Publish(ctx, v)
	}
	return v
}

// Latest returns the most recent view. Before the first poll it returns a
// freshly built awaiting-data view.
func (p *Poller) Latest() *View {
	if v := p.latest.Load(); v != nil {
		return v
	}
	return Build(nil, p.st.Cap(), p.now())
}
