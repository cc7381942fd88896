// Package scrape reads a running faulttwin's /metrics endpoint and reduces
// the exposition to a Snapshot for the stats command.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 10 * time.Second

// Metric names exported by internal/metrics.
const (
	mLinesRead     = "faulttwin_lines_read_total"
	mAccepted      = "faulttwin_samples_accepted_total"
	mRejected      = "faulttwin_samples_rejected_total"
	mInference     = "faulttwin_inference_duration_seconds"
	mImplausible   = "faulttwin_health_index_implausible_total"
	mHistory       = "faulttwin_history_entries"
	mHealthIndex   = "faulttwin_health_index"
	mMQTTPublished = "faulttwin_mqtt_published_total"
	mMQTTDropped   = "faulttwin_mqtt_dropped_total"
)

// Snapshot is one scrape. Counter fields are raw totals; Rates derives
// per-second values from two snapshots.
type Snapshot struct {
	ScrapedAt time.Time

	LinesRead   float64
	Accepted    float64
	Rejected    map[string]float64 // by reason
	Implausible float64

	InferenceCount      uint64
	InferenceSumSeconds float64

	HistoryEntries float64
	HealthIndex    float64
	HasHealthIndex bool

	MQTTPublished float64
	MQTTDropped   float64
}

// RejectedTotal sums Rejected over all reasons.
func (s *Snapshot) RejectedTotal() float64 {
	var total float64
	for _, v := range s.Rejected {
		total += v
	}
	return total
}

// MeanInference returns the average inference latency, or 0 before the
// first inference.
func (s *Snapshot) MeanInference() time.Duration {
	if s.InferenceCount == 0 {
		return 0
	}
	return time.Duration(s.InferenceSumSeconds / float64(s.InferenceCount) * float64(time.Second))
}

// Rates holds per-second deltas between two snapshots.
type Rates struct {
	LinesPerSec    float64
	AcceptedPerSec float64
	RejectedPerSec float64
}

// RatesSince computes rates from prev to s. A counter reset (process
// restart) yields zero for that counter.
func (s *Snapshot) RatesSince(prev *Snapshot) Rates {
	if prev == nil {
		return Rates{}
	}
	dt := s.ScrapedAt.Sub(prev.ScrapedAt).Seconds()
	if dt <= 0 {
		return Rates{}
	}
	rate := func(cur, old float64) float64 {
		if cur < old {
			return 0
		}
		return (cur - old) / dt
	}
	return Rates{
		LinesPerSec:    rate(s.LinesRead, prev.LinesRead),
		AcceptedPerSec: rate(s.Accepted, prev.Accepted),
		RejectedPerSec: rate(s.RejectedTotal(), prev.RejectedTotal()),
	}
}

// Client scrapes a single endpoint. The http.Client is built once and reused.
type Client struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// New returns a Client for url. A zero timeout uses 10s.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Scrape fetches and reduces the endpoint's metrics.
func (c *Client) Scrape(ctx context.Context) (*Snapshot, error) {
	mfs, err := fetchMetrics(ctx, c.client, c.url)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", c.url, err)
	}
	snap := reduce(mfs)
	snap.ScrapedAt = c.now().UTC()
	return snap, nil
}

func reduce(mfs map[string]*dto.MetricFamily) *Snapshot {
	s := &Snapshot{
		LinesRead:      sumFamily(mfs[mLinesRead]),
		Accepted:       sumFamily(mfs[mAccepted]),
		Rejected:       byLabel(mfs[mRejected], "reason"),
		Implausible:    sumFamily(mfs[mImplausible]),
		HistoryEntries: sumFamily(mfs[mHistory]),
		MQTTPublished:  sumFamily(mfs[mMQTTPublished]),
		MQTTDropped:    sumFamily(mfs[mMQTTDropped]),
	}
	// The gauge is registered at startup; it only means something once the
	// window holds data.
	if mf := mfs[mHealthIndex]; mf != nil && s.HistoryEntries > 0 {
		s.HealthIndex = sumFamily(mf)
		s.HasHealthIndex = true
	}
	if mf := mfs[mInference]; mf != nil {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				s.InferenceCount += h.GetSampleCount()
				s.InferenceSumSeconds += h.GetSampleSum()
			}
		}
	}
	return s
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition. A partial result with a
// trailing parse error is still returned.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in mf. Returns 0
// if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// byLabel splits a counter family by the value of label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
			}
		}
		switch {
		case m.Counter != nil:
			out[key] += m.Counter.GetValue()
		case m.Untyped != nil:
			out[key] += m.Untyped.GetValue()
		}
	}
	return out
}
