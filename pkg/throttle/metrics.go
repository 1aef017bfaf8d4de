package throttle

// Recorder receives admission metrics. Implementations must be safe for
// concurrent use; see the promrecorder package for a Prometheus-backed one.
type Recorder interface {
	// Add increments a counter metric by value.
	Add(name string, value float64, tags map[string]string)
	// Observe records one sample of a distribution metric.
	Observe(name string, value float64, tags map[string]string)
}

// Metric names emitted by the throttles in this package.
const (
	MetricAllowed = "throttle.allowed"
	MetricDenied  = "throttle.denied"
	MetricLatency = "throttle.latency"
)

// NoopRecorder is a placeholder that does nothing. It ensures the hot path
// never has to check for a nil recorder.
type NoopRecorder struct{}

func (NoopRecorder) Add(name string, value float64, tags map[string]string)     {}
func (NoopRecorder) Observe(name string, value float64, tags map[string]string) {}
