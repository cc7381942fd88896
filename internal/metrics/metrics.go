// Package metrics exposes pipeline counters, gauges and latencies for
// Prometheus. A Metrics value satisfies the observer interfaces of the
// ingest, inference and publish packages.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "faulttwin"

// Rejection reasons used as the "reason" label.
const (
	ReasonIncomplete = "incomplete_record"
	ReasonNumeric    = "numeric_format"
	ReasonInference  = "inference"
)

// Metrics holds all collectors.
type Metrics struct {
	linesRead        prometheus.Counter
	accepted         prometheus.Counter
	rejected         *prometheus.CounterVec
	inferenceLatency prometheus.Histogram
	implausible      prometheus.Counter
	historyLen       prometheus.Gauge
	healthIndex      prometheus.Gauge
	mqttPublished    prometheus.Counter
	mqttDropped      prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		linesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Non-empty lines read from the sensor source.",
		}),
		accepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_accepted_total",
			Help:      "Samples parsed, inferred and appended to history.",
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_rejected_total",
			Help:      "Samples dropped, by reason.",
		}, []string{"reason"}),
		inferenceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent running both models for one sample.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		implausible: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_index_implausible_total",
			Help:      "Health index predictions outside [0, 100].",
		}),
		historyLen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Entries in the rolling window at the last poll.",
		}),
		healthIndex: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_index",
			Help:      "Latest predicted health index.",
		}),
		mqttPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_published_total",
			Help:      "Status messages delivered to the MQTT broker.",
		}),
		mqttDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_dropped_total",
			Help:      "Status messages discarded because the publish buffer was full.",
		}),
	}
	// Pre-create the label values so they are exported as 0 from the start.
	for _, r := range []string{ReasonIncomplete, ReasonNumeric, ReasonInference} {
		m.rejected.WithLabelValues(r)
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) LineRead()              { m.linesRead.Inc() }
func (m *Metrics) Accepted()              { m.accepted.Inc() }
func (m *Metrics) Rejected(reason string) { m.rejected.WithLabelValues(reason).Inc() }

func (m *Metrics) ObserveInference(d time.Duration) { m.inferenceLatency.Observe(d.Seconds()) }
func (m *Metrics) ImplausibleHealthIndex()          { m.implausible.Inc() }

// SetWindow records the state seen by the last presentation poll.
func (m *Metrics) SetWindow(entries int, healthIndex float64, ok bool) {
	m.historyLen.Set(float64(entries))
	if ok {
		m.healthIndex.Set(healthIndex)
	}
}

func (m *Metrics) Published() { m.mqttPublished.Inc() }
func (m *Metrics) Dropped()   { m.mqttDropped.Inc() }
