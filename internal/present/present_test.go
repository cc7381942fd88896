package present

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulttwin/faulttwin/internal/feature"
	"github.com/faulttwin/faulttwin/internal/health"
	"github.com/faulttwin/faulttwin/internal/history"
	"github.com/faulttwin/faulttwin/internal/record"
	"github.com/faulttwin/faulttwin/pkg/types"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func mkEntry(t *testing.T, seq uint64, line, label string, hi float64) types.HistoryEntry {
	t.Helper()
	s, err := record.Parse(line)
	require.NoError(t, err)
	return types.HistoryEntry{
		Seq:       seq,
		Timestamp: t0.Add(time.Duration(seq) * time.Second),
		Sample:    feature.Enrich(s),
		Result:    types.InferenceResult{FaultLabel: label, HealthIndex: hi, HealthStatus: health.StatusFor(hi)},
	}
}

func hintKeys(v *View) []string {
	keys := make([]string, len(v.Diagnostics))
	for i, h := range v.Diagnostics {
		keys[i] = h.Key
	}
	return keys
}

func TestFaultColor(t *testing.T) {
	tests := map[string]string{
		"No Fault":         "green",
		"Overcurrent":      "red",
		"Overvoltage":      "orange",
		"Overtemperature":  "yellow",
		"Undervoltage":     "blue",
		"Normal Condition": "white",
		"":                 "white",
	}
	for label, want := range tests {
		assert.Equal(t, want, FaultColor(label), label)
	}
}

func TestBuild_Awaiting(t *testing.T) {
	v := Build(nil, 100, t0)

	assert.True(t, v.Awaiting())
	assert.Equal(t, StateAwaitingData, v.State)
	assert.Equal(t, FaultCard{Label: "Waiting for data...", Color: "white"}, v.Fault)
	assert.Equal(t, "secondary", v.Health.Severity)
	assert.Equal(t, "Waiting for data...", v.Health.Text)
	assert.Nil(t, v.Health.Index)
	assert.Nil(t, v.Health.Status)
	assert.Empty(t, v.Series.Time)
	assert.Equal(t, []string{"awaiting_data"}, hintKeys(v))

	// Encodes with empty arrays, not nulls.
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"current":[]`)
	assert.Contains(t, string(b), `"x":[]`)
}

func TestBuild_HealthyLatest(t *testing.T) {
	entries := []types.HistoryEntry{mkEntry(t, 1, "0.30,220.0,35.0", "No Fault", 90.0)}
	v := Build(entries, 100, t0.Add(2*time.Second))

	assert.Equal(t, StateLive, v.State)
	assert.Equal(t, uint64(1), v.Seq)
	assert.Equal(t, FaultCard{Label: "No Fault", Color: "green"}, v.Fault)
	assert.Equal(t, "90.00%", v.Health.Text)
	require.NotNil(t, v.Health.Status)
	assert.Equal(t, types.Healthy, *v.Health.Status)
	assert.Equal(t, "success", v.Health.Severity)
	assert.Equal(t, []string{"healthy"}, hintKeys(v))
}

func TestBuild_OvervoltageFaulty(t *testing.T) {
	entries := []types.HistoryEntry{mkEntry(t, 1, "0.50,250.0,35.0", "Overvoltage", 45.0)}
	v := Build(entries, 100, t0.Add(time.Second))

	assert.Equal(t, "orange", v.Fault.Color)
	assert.NotEqual(t, "red", v.Fault.Color)
	assert.Equal(t, "danger", v.Health.Severity)
	assert.Equal(t, "45.00%", v.Health.Text)
	assert.Equal(t, []string{"fault_present", "health_band"}, hintKeys(v))
}

func TestBuild_SeriesAligned(t *testing.T) {
	entries := []types.HistoryEntry{
		mkEntry(t, 1, "0.30,220.0,35.0", "No Fault", 90),
		mkEntry(t, 2, "0.40,230.0,36.0", "No Fault", 70),
		mkEntry(t, 3, "0.50,250.0,37.0", "Overvoltage", 45),
	}
	v := Build(entries, 3, t0.Add(3*time.Second))

	assert.Equal(t, []string{"12:00:01", "12:00:02", "12:00:03"}, v.Series.Time)
	assert.Equal(t, []float64{0.30, 0.40, 0.50}, v.Series.Current)
	assert.Equal(t, []float64{220, 230, 250}, v.Series.Voltage)
	assert.Equal(t, []float64{35, 36, 37}, v.Series.Temperature)
	assert.Equal(t, []float64{90, 70, 45}, v.Series.HealthIndex)
	assert.InDelta(t, 125.0, v.Series.Power[2], 1e-9)

	assert.Equal(t, v.Series.Current, v.Scatter.X)
	assert.Equal(t, v.Series.Voltage, v.Scatter.Y)
	assert.Equal(t, v.Series.Temperature, v.Scatter.Z)
	assert.Equal(t, v.Series.HealthIndex, v.Scatter.Color)
	assert.Equal(t, "Overvoltage", v.Fault.Label, "cards use the newest entry")
}

func TestBuild_ModerateAtBoundary(t *testing.T) {
	v := Build([]types.HistoryEntry{mkEntry(t, 1, "0.3,220,35", "No Fault", 80)}, 10, t0.Add(time.Second))
	assert.Equal(t, "warning", v.Health.Severity)

	v = Build([]types.HistoryEntry{mkEntry(t, 1, "0.3,220,35", "No Fault", 50)}, 10, t0.Add(time.Second))
	assert.Equal(t, "warning", v.Health.Severity)
}

func TestBuild_StaleAndImplausible(t *testing.T) {
	entries := []types.HistoryEntry{mkEntry(t, 1, "0.30,220.0,35.0", "No Fault", 104)}
	v := Build(entries, 10, t0.Add(time.Minute))

	assert.Equal(t, []string{"stale_data", "implausible_health"}, hintKeys(v))
	assert.Equal(t, "104.00%", v.Health.Text, "never clipped")
}

// recordingSink collects published views.
type recordingSink struct {
	mu    sync.Mutex
	views []*View
}

func (r *recordingSink) Publish(_ context.Context, v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func TestPoller_LatestBeforeFirstPoll(t *testing.T) {
	p := NewPoller(history.New(5), 0)
	assert.Equal(t, DefaultInterval, p.Interval())
	assert.True(t, p.Latest().Awaiting())
}

func TestPoller_PollFansOut(t *testing.T) {
	st := history.New(5)
	sink := &recordingSink{}
	var fnCalls int
	p := NewPoller(st, time.Second, sink, SinkFunc(func(context.Context, *View) { fnCalls++ }))

	v := p.Poll(context.Background())
	assert.True(t, v.Awaiting())

	st.Append(types.EnrichedSample{}, types.InferenceResult{FaultLabel: "No Fault", HealthIndex: 95, HealthStatus: types.Healthy})
	v = p.Poll(context.Background())
	assert.Equal(t, StateLive, v.State)
	assert.Same(t, v, p.Latest())
	assert.Equal(t, 5, v.Capacity)

	assert.Equal(t, 2, sink.count())
	assert.Equal(t, 2, fnCalls)
	assert.Equal(t, 1, st.Len(), "poller never mutates the store")
}

func TestPoller_RunTicks(t *testing.T) {
	sink := &recordingSink{}
	p := NewPoller(history.New(5), 10*time.Millisecond, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestPoller_AddSink(t *testing.T) {
	p := NewPoller(history.New(5), time.Second)
	var got *View
	p.AddSink(SinkFunc(func(_ context.Context, v *View) { got = v }))

	v := p.Poll(context.Background())
	assert.Same(t, v, got)
	assert.Same(t, v, p.Latest())
}
