package detect_test

import (
	"sync"
	"testing"

	"framecut/internal/detect"
	"framecut/internal/frame"
	"framecut/internal/timecode"
)

const testFPS = 24.0

// scriptedDetector emits fixed event kinds at chosen frames.
type scriptedDetector struct {
	mu      sync.Mutex
	at      map[int][]detect.EventKind
	post    []detect.EventKind
	tag     any
	failAt  int
	failErr error

	widths    []int
	processed []int
	postSpan  [2]int
	postRuns  int
}

func newScripted(at map[int][]detect.EventKind) *scriptedDetector {
	return &scriptedDetector{at: at, failAt: -1}
}

func (d *scriptedDetector) Metrics() []string { return nil }

func (d *scriptedDetector) StatsRequired() bool { return false }

func (d *scriptedDetector) IsProcessingRequired(int) bool { return true }

func (d *scriptedDetector) ProcessFrame(tc timecode.Timecode, f *frame.Frame) ([]detect.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tc.Frame() == d.failAt {
		return nil, d.failErr
	}
	d.processed = append(d.processed, tc.Frame())
	if f != nil {
		d.widths = append(d.widths, f.Width)
	}
	var events []detect.Event
	for _, kind := range d.at[tc.Frame()] {
		var ctx any = tc.Frame()
		if d.tag != nil {
			ctx = d.tag
		}
		events = append(events, detect.Event{Kind: kind, Time: tc, Context: ctx})
	}
	return events, nil
}

func (d *scriptedDetector) PostProcess(start, end timecode.Timecode) ([]detect.Event, error) {
	d.postRuns++
	d.postSpan = [2]int{start.Frame(), end.Frame()}
	var events []detect.Event
	for _, kind := range d.post {
		events = append(events, detect.Event{Kind: kind, Time: end})
	}
	return events, nil
}

// cachedDetector writes one metric per decoded frame and asks for decoding
// only when that metric is missing.
type cachedDetector struct {
	key     string
	store   detect.MetricStore
	decoded []int
	skipped []int
}

func (d *cachedDetector) Metrics() []string { return []string{d.key} }

func (d *cachedDetector) StatsRequired() bool { return true }

func (d *cachedDetector) BindStore(store detect.MetricStore) { d.store = store }

func (d *cachedDetector) IsProcessingRequired(n int) bool {
	return !d.store.MetricsExist(n, d.key)
}

func (d *cachedDetector) ProcessFrame(tc timecode.Timecode, f *frame.Frame) ([]detect.Event, error) {
	if f == nil {
		d.skipped = append(d.skipped, tc.Frame())
		return nil, nil
	}
	d.decoded = append(d.decoded, tc.Frame())
	d.store.SetMetrics(tc.Frame(), map[string]float64{d.key: float64(tc.Frame())})
	return nil, nil
}

func (d *cachedDetector) PostProcess(timecode.Timecode, timecode.Timecode) ([]detect.Event, error) {
	return nil, nil
}

type recordingProgress struct {
	total  int
	ticks  int
	closed int
}

func (p *recordingProgress) Add(n int) { p.ticks += n }

func (p *recordingProgress) Close() error {
	p.closed++
	return nil
}

func (p *recordingProgress) factory() detect.ProgressFactory {
	return func(total int) detect.Progress {
		p.total = total
		return p
	}
}

func newSource(t *testing.T, frames, width int) *frame.MemorySource {
	t.Helper()
	src, err := frame.NewMemorySource(frames, width, width/2, testFPS, nil)
	if err != nil {
		t.Fatalf("NewMemorySource: %v", err)
	}
	return src
}

func cutsAt(frames ...int) map[int][]detect.EventKind {
	at := make(map[int][]detect.EventKind, len(frames))
	for _, f := range frames {
		at[f] = append(at[f], detect.EventCut)
	}
	return at
}

func tc(frame int) timecode.Timecode {
	return timecode.MustNew(frame, testFPS)
}

func sceneFrames(scenes []detect.Scene) [][2]int {
	out := make([][2]int, 0, len(scenes))
	for _, s := range scenes {
		out = append(out, [2]int{s.Start.Frame(), s.End.Frame()})
	}
	return out
}

func cutFrames(cuts []timecode.Timecode) []int {
	out := make([]int, 0, len(cuts))
	for _, c := range cuts {
		out = append(out, c.Frame())
	}
	return out
}

func runDetect(t *testing.T, m *detect.Manager, src frame.Source, opts detect.DetectOptions) int {
	t.Helper()
	n, err := m.DetectScenes(t.Context(), src, opts)
	if err != nil {
		t.Fatalf("DetectScenes: %v", err)
	}
	return n
}
