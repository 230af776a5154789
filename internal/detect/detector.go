package detect

import (
	"time"

	"framecut/internal/frame"
	"framecut/internal/timecode"
)

// Detector is a pluggable scene detection algorithm.
type Detector interface {
	// Metrics lists the metric keys the detector reads or writes.
	Metrics() []string
	// StatsRequired reports whether the detector needs a metric store.
	StatsRequired() bool
	// IsProcessingRequired reports whether frame must be decoded for this
	// detector, i.e. its metrics are not already cached.
	IsProcessingRequired(frame int) bool
	// ProcessFrame consumes the frame at tc. f is nil when decoding was
	// skipped because cached metrics cover the frame.
	ProcessFrame(tc timecode.Timecode, f *frame.Frame) ([]Event, error)
	// PostProcess runs once after the frame loop with the processed span.
	PostProcess(start, end timecode.Timecode) ([]Event, error)
}

// StoreBinder is implemented by detectors that want the shared metric store.
type StoreBinder interface {
	BindStore(store MetricStore)
}

// MetricStore is the per-frame metric cache a Manager shares with its
// detectors.
type MetricStore interface {
	RegisterMetrics(keys ...string) error
	MetricsExist(frame int, keys ...string) bool
	Metrics(frame int, keys ...string) ([]float64, bool)
	SetMetrics(frame int, values map[string]float64)
}

// Progress receives one tick per frame advanced during a run.
type Progress interface {
	Add(n int)
	Close() error
}

// ProgressFactory opens a Progress for a run expected to cover total frames.
// total is 0 when the source length is unknown.
type ProgressFactory func(total int) Progress

// FrameCallback is invoked once per detector that emitted events for a
// frame, with the frame (nil when not decoded) and its frame number.
type FrameCallback func(f *frame.Frame, frameNumber int)

// Observer receives run counters. Implementations must be cheap; they are
// called from the frame loop.
type Observer interface {
	FrameDecoded()
	FrameSkipped()
	EventsEmitted(kind EventKind, n int)
	RunFinished(frames int, elapsed time.Duration)
}

type nopProgress struct{}

func (nopProgress) Add(int) {}

func (nopProgress) Close() error { return nil }

type nopObserver struct{}

func (nopObserver) FrameDecoded() {}

func (nopObserver) FrameSkipped() {}

func (nopObserver) EventsEmitted(EventKind, int) {}

func (nopObserver) RunFinished(int, time.Duration) {}
