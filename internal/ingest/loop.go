// Package ingest runs the read → parse → enrich → infer → append pipeline
// for one sensor stream.
//
// The loop is the only writer to the history store. A malformed line or a
// failed inference drops that sample and the loop carries on; only context
// cancellation, end of stream, or a hard read error stop it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/faulttwin/faulttwin/internal/feature"
	"github.com/faulttwin/faulttwin/internal/metrics"
	"github.com/faulttwin/faulttwin/internal/record"
	"github.com/faulttwin/faulttwin/internal/source"
	"github.com/faulttwin/faulttwin/pkg/types"
)

// Inferrer runs the models on one enriched sample.
type Inferrer interface {
	Infer(e types.EnrichedSample) (types.InferenceResult, error)
}

// Appender stores one result.
type Appender interface {
	Append(s types.EnrichedSample, r types.InferenceResult) types.HistoryEntry
}

// Observer receives pipeline counts. *metrics.Metrics implements it.
type Observer interface {
	LineRead()
	Accepted()
	Rejected(reason string)
}

type nopObserver struct{}

func (nopObserver) LineRead()       {}
func (nopObserver) Accepted()       {}
func (nopObserver) Rejected(string) {}

// Stats is a point-in-time copy of the loop counters.
type Stats struct {
	Lines             uint64 `json:"lines"`
	Accepted          uint64 `json:"accepted"`
	IncompleteRecords uint64 `json:"incomplete_records"`
	NumericErrors     uint64 `json:"numeric_errors"`
	InferenceFailures uint64 `json:"inference_failures"`
}

// Rejected is the total number of dropped samples.
func (s Stats) Rejected() uint64 {
	return s.IncompleteRecords + s.NumericErrors + s.InferenceFailures
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger for per-sample diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithObserver sets the metrics sink.
func WithObserver(o Observer) Option {
	return func(lp *Loop) { lp.obs = o }
}

// Loop drives one source into the history store.
type Loop struct {
	src    source.Source
	inf    Inferrer
	store  Appender
	logger *slog.Logger
	obs    Observer

	lines      atomic.Uint64
	accepted   atomic.Uint64
	incomplete atomic.Uint64
	numeric    atomic.Uint64
	inference  atomic.Uint64
}

// New creates a Loop. The loop takes ownership of src and closes it when
// Run returns.
func New(src source.Source, inf Inferrer, store Appender, opts ...Option) *Loop {
	l := &Loop{
		src:    src,
		inf:    inf,
		store:  store,
		logger: slog.Default(),
		obs:    nopObserver{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run processes lines until ctx is cancelled or the source ends. It returns
// nil for both; any other read error is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.src.Close(); err != nil {
			l.logger.Warn("ingest: closing source", "err", err)
		}
	}()

	l.logger.Info("ingest: loop started")
	for {
		line, err := l.src.ReadLine(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			l.logger.Info("ingest: loop stopped", "lines", l.lines.Load())
			return nil
		case errors.Is(err, io.EOF):
			l.logger.Info("ingest: source exhausted", "lines", l.lines.Load())
			return nil
		default:
			return fmt.Errorf("ingest: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if line == "" {
			continue
		}
		l.Process(line)
	}
}

// Process runs one raw line through the pipeline. It reports whether the
// sample reached the history store.
func (l *Loop) Process(line string) bool {
	l.lines.Add(1)
	l.obs.LineRead()

	s, err := record.Parse(line)
	if err != nil {
		reason := metrics.ReasonNumeric
		if errors.Is(err, record.ErrIncompleteRecord) {
			reason = metrics.ReasonIncomplete
			l.incomplete.Add(1)
		} else {
			l.numeric.Add(1)
		}
		l.obs.Rejected(reason)
		l.logger.Warn("ingest: dropping malformed record", "line", line, "err", err)
		return false
	}

	e := feature.Enrich(s)
	if !feature.Finite(e) {
		l.numeric.Add(1)
		l.obs.Rejected(metrics.ReasonNumeric)
		l.logger.Warn("ingest: dropping record with non-finite derived power", "line", line, "power", e.Power)
		return false
	}

	res, err := l.inf.Infer(e)
	if err != nil {
		l.inference.Add(1)
		l.obs.Rejected(metrics.ReasonInference)
		l.logger.Warn("ingest: inference failed", "line", line, "err", err)
		return false
	}

	entry := l.store.Append(e, res)
	l.accepted.Add(1)
	l.obs.Accepted()
	l.logger.Debug("ingest: sample appended",
		"seq", entry.Seq,
		"fault", res.FaultLabel,
		"health_index", res.HealthIndex,
		"status", res.HealthStatus.String(),
	)
	return true
}

// Stats returns the current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Lines:             l.lines.Load(),
		Accepted:          l.accepted.Load(),
		IncompleteRecords: l.incomplete.Load(),
		NumericErrors:     l.numeric.Load(),
		InferenceFailures: l.inference.Load(),
	}
}
