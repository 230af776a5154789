// Package metricgate cuts where a cached per-frame metric crosses a
// threshold. It never inspects pixels: values come from a metric store
// filled by an earlier run or loaded from a stats database.
package metricgate

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"framecut/internal/detect"
	"framecut/internal/frame"
	"framecut/internal/logging"
	"framecut/internal/timecode"
)

// Crossing is the context attached to emitted cuts.
type Crossing struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

// Detector emits a CUT when the metric reaches the threshold and at least
// MinSceneLen frames have passed since the previous cut.
type Detector struct {
	metric      string
	threshold   float64
	minSceneLen int

	store   detect.MetricStore
	logger  *slog.Logger
	lastCut *timecode.Timecode
	hits    int
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used to report a run with no cached values.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logging.NewComponentLogger(logger, "metricgate")
	}
}

// New validates the gate settings.
func New(metric string, threshold float64, minSceneLen int, opts ...Option) (*Detector, error) {
	metric = strings.TrimSpace(metric)
	if metric == "" {
		return nil, fmt.Errorf("%w: metric key is required", detect.ErrInvalidArgument)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: threshold %v is not finite", detect.ErrInvalidArgument, threshold)
	}
	if minSceneLen < 0 {
		return nil, fmt.Errorf("%w: min scene length %d must not be negative", detect.ErrInvalidArgument, minSceneLen)
	}
	d := &Detector{metric: metric, threshold: threshold, minSceneLen: minSceneLen, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Detector) Metrics() []string { return []string{d.metric} }

func (d *Detector) StatsRequired() bool { return true }

func (d *Detector) BindStore(store detect.MetricStore) { d.store = store }

// IsProcessingRequired is always false: the gate reads cached values only,
// so decoding a frame could never produce the missing metric.
func (d *Detector) IsProcessingRequired(int) bool { return false }

// ProcessFrame compares the cached metric for tc against the threshold.
// Frames with no cached value emit nothing.
func (d *Detector) ProcessFrame(tc timecode.Timecode, _ *frame.Frame) ([]detect.Event, error) {
	if d.store == nil {
		return nil, fmt.Errorf("%w: metric store not bound", detect.ErrInvalidArgument)
	}
	if d.lastCut == nil {
		start := tc
		d.lastCut = &start
	}
	values, ok := d.store.Metrics(tc.Frame(), d.metric)
	if !ok {
		return nil, nil
	}
	d.hits++
	if values[0] < d.threshold {
		return nil, nil
	}
	if tc.Sub(*d.lastCut) < d.minSceneLen {
		return nil, nil
	}
	cut := tc
	d.lastCut = &cut
	return []detect.Event{detect.Cut(tc, Crossing{Metric: d.metric, Value: values[0]})}, nil
}

// PostProcess warns once when no processed frame had a cached value.
func (d *Detector) PostProcess(start, end timecode.Timecode) ([]detect.Event, error) {
	if d.hits == 0 {
		logging.WarnWithContext(d.logger, "no cached values for metric", "metric_not_cached",
			logging.String("metric", d.metric),
			logging.Int("start_frame", start.Frame()),
			logging.Int("end_frame", end.Frame()),
			logging.String(logging.FieldImpact, "no cuts were emitted by the metric gate"),
			logging.String(logging.FieldErrorHint, "load a stats database that holds this metric"),
		)
	}
	return nil, nil
}
