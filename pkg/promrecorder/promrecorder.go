// Package promrecorder exposes admission metrics to Prometheus. It adapts
// the throttle.Recorder seam onto a CounterVec and a HistogramVec, so a
// service already scraping a Prometheus registry gets throttle metrics with
// no extra plumbing.
package promrecorder

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ekefan/admit/pkg/throttle"
)

// Recorder publishes throttle decisions to a Prometheus registry.
//
// Decisions land in admit_throttle_decisions_total, partitioned by result
// (allowed or denied) and algorithm. Check latency lands in
// admit_throttle_decision_duration_seconds, partitioned by algorithm.
type Recorder struct {
	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

var _ throttle.Recorder = (*Recorder)(nil)

// New builds a Recorder and registers its collectors with reg. It panics if
// a collector with the same name is already registered, matching the usual
// MustRegister contract.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admit_throttle_decisions_total",
				Help: "Total admission decisions, partitioned by result and algorithm",
			},
			[]string{"result", "algorithm"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admit_throttle_decision_duration_seconds",
				Help:    "Admission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"algorithm"},
		),
	}

	reg.MustRegister(r.decisions, r.duration)
	return r
}

// Add maps the throttle counter metrics onto the decisions counter. Metric
// names it does not know are dropped.
func (r *Recorder) Add(name string, value float64, tags map[string]string) {
	var result string
	switch name {
	case throttle.MetricAllowed:
		result = "allowed"
	case throttle.MetricDenied:
		result = "denied"
	default:
		return
	}
	r.decisions.WithLabelValues(result, tags["algorithm"]).Add(value)
}

// Observe maps the throttle latency metric onto the duration histogram.
func (r *Recorder) Observe(name string, value float64, tags map[string]string) {
	if name != throttle.MetricLatency {
		return
	}
	r.duration.WithLabelValues(tags["algorithm"]).Observe(value)
}
