// Package metrics exposes detection run counters as Prometheus metrics.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"framecut/internal/detect"
)

const (
	namespace = "framecut"

	// Run duration buckets span 100ms to roughly 14 minutes.
	bucketStart  = 0.1
	bucketFactor = 2
	bucketCount  = 14
)

// Detection counts frames and events for detection runs. It implements
// detect.Observer.
type Detection struct {
	registry *prometheus.Registry

	framesDecoded prometheus.Counter
	framesSkipped prometheus.Counter
	events        *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runs          prometheus.Counter
}

var _ detect.Observer = (*Detection)(nil)

// NewDetection creates the collector and registers it with registry.
func NewDetection(registry *prometheus.Registry) (*Detection, error) {
	m := &Detection{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register detection metrics: %w", err)
	}
	return m, nil
}

func (m *Detection) initMetrics() {
	m.framesDecoded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_decoded_total",
		Help:      "Frames decoded and handed to detectors",
	})
	m.framesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_skipped_total",
		Help:      "Frames advanced without decoding, from cached metrics or frame skip",
	})
	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Scene events emitted by detectors",
	}, []string{"kind"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of completed detection runs",
		Buckets:   prometheus.ExponentialBuckets(bucketStart, bucketFactor, bucketCount),
	})
	m.runs = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Completed detection runs",
	})
}

// Describe implements the Collector interface
func (m *Detection) Describe(ch chan<- *prometheus.Desc) {
	m.framesDecoded.Describe(ch)
	m.framesSkipped.Describe(ch)
	m.events.Describe(ch)
	m.runDuration.Describe(ch)
	m.runs.Describe(ch)
}

// Collect implements the Collector interface
func (m *Detection) Collect(ch chan<- prometheus.Metric) {
	m.framesDecoded.Collect(ch)
	m.framesSkipped.Collect(ch)
	m.events.Collect(ch)
	m.runDuration.Collect(ch)
	m.runs.Collect(ch)
}

func (m *Detection) FrameDecoded() { m.framesDecoded.Inc() }

func (m *Detection) FrameSkipped() { m.framesSkipped.Inc() }

func (m *Detection) EventsEmitted(kind detect.EventKind, n int) {
	m.events.WithLabelValues(kind.String()).Add(float64(n))
}

func (m *Detection) RunFinished(_ int, elapsed time.Duration) {
	m.runs.Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// WriteTextfile writes every metric in g to path in the text exposition
// format read by the node exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
