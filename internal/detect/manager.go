package detect

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"

	"framecut/internal/logging"
	"framecut/internal/stats"
	"framecut/internal/timecode"
)

// Manager runs registered detectors over a frame source and owns the
// resulting event ledger.
type Manager struct {
	logger   *slog.Logger
	observer Observer
	store    MetricStore

	detectors []Detector
	events    map[timecode.Timecode][]Event
	onlyCuts  bool

	startPos *timecode.Timecode
	lastPos  *timecode.Timecode

	downscale     int
	autoDownscale bool
	minWidth      int
	parallel      bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore attaches a metric store up front instead of creating one lazily.
func WithStore(store MetricStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "detect")
	}
}

// WithObserver receives frame and event counters.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

// WithParallelDispatch runs the detectors of one frame concurrently.
func WithParallelDispatch(enabled bool) Option {
	return func(m *Manager) {
		m.parallel = enabled
	}
}

// WithMinWidth overrides the effective width targeted by auto-downscale.
func WithMinWidth(width int) Option {
	return func(m *Manager) {
		if width > 0 {
			m.minWidth = width
		}
	}
}

// NewManager returns a Manager with auto-downscale enabled.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:        logging.NewComponentLogger(nil, "detect"),
		observer:      nopObserver{},
		events:        make(map[timecode.Timecode][]Event),
		onlyCuts:      true,
		downscale:     1,
		autoDownscale: true,
		minWidth:      DefaultMinWidth,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the attached metric store, or nil.
func (m *Manager) Store() MetricStore {
	return m.store
}

// Detectors returns the registered detectors in registration order.
func (m *Manager) Detectors() []Detector {
	return slices.Clone(m.detectors)
}

// AddDetector registers d. A stats store is created when d needs one and
// none is attached. Metric keys already registered by another detector are
// tolerated.
func (m *Manager) AddDetector(d Detector) error {
	if d == nil {
		return fmt.Errorf("%w: nil detector", ErrInvalidArgument)
	}
	if d.StatsRequired() && m.store == nil {
		m.store = stats.NewStore()
	}
	m.detectors = append(m.detectors, d)
	if m.store == nil {
		return nil
	}
	if binder, ok := d.(StoreBinder); ok {
		binder.BindStore(m.store)
	}
	if keys := d.Metrics(); len(keys) > 0 {
		if err := m.store.RegisterMetrics(keys...); err != nil && !errors.Is(err, stats.ErrMetricRegistered) {
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

// ClearDetectors removes every registered detector. The ledger is untouched.
func (m *Manager) ClearDetectors() {
	m.detectors = nil
}

// Clear empties the ledger and forgets the run start. Cached metrics are
// kept so a later run can reuse them.
func (m *Manager) Clear() {
	clear(m.events)
	m.startPos = nil
	m.onlyCuts = true
}

// AddEvents merges events into the ledger, preserving arrival order for
// events sharing a timecode. An event whose rate differs from an existing
// key at the same frame only by float noise is filed under that key.
func (m *Manager) AddEvents(events ...Event) {
	for _, ev := range events {
		ev.Time = m.ledgerKey(ev.Time)
		m.events[ev.Time] = append(m.events[ev.Time], ev)
		if ev.Kind != EventCut {
			m.onlyCuts = false
		}
	}
}

func (m *Manager) ledgerKey(tc timecode.Timecode) timecode.Timecode {
	if _, ok := m.events[tc]; ok {
		return tc
	}
	for key := range m.events {
		if key.Frame() == tc.Frame() && key.SameRate(tc) {
			return key
		}
	}
	return tc
}

// Events returns a copy of the ledger.
func (m *Manager) Events() map[timecode.Timecode][]Event {
	out := make(map[timecode.Timecode][]Event, len(m.events))
	for tc, evs := range m.events {
		out[tc] = slices.Clone(evs)
	}
	return out
}

// EventList flattens the ledger in timecode then arrival order.
func (m *Manager) EventList() []Event {
	var out []Event
	for _, tc := range m.sortedTimecodes() {
		out = append(out, m.events[tc]...)
	}
	return out
}

// SetDownscale sets the explicit downscale factor used when auto-downscale
// is off. Fractional factors are truncated.
func (m *Manager) SetDownscale(factor float64) error {
	if math.IsNaN(factor) || factor < 1 {
		return fmt.Errorf("%w: downscale factor %v must be at least 1", ErrInvalidArgument, factor)
	}
	whole := int(factor)
	if float64(whole) != factor {
		logging.WarnWithContext(m.logger, "downscale factor truncated", "downscale_truncated",
			logging.Float64("requested", factor),
			logging.Int("applied", whole),
			logging.String(logging.FieldImpact, "frames are subsampled with the truncated factor"),
			logging.String(logging.FieldErrorHint, "use an integer downscale factor"),
		)
	}
	if m.autoDownscale {
		logging.WarnWithContext(m.logger, "downscale set while auto-downscale is enabled", "downscale_ignored",
			logging.Int("downscale", whole),
			logging.String(logging.FieldImpact, "explicit factor is ignored"),
			logging.String(logging.FieldErrorHint, "disable auto-downscale to use an explicit factor"),
		)
	}
	m.downscale = whole
	return nil
}

// SetAutoDownscale toggles deriving the downscale factor from frame width.
func (m *Manager) SetAutoDownscale(enabled bool) {
	m.autoDownscale = enabled
}

// Downscale returns the explicit factor and the auto-downscale setting.
func (m *Manager) Downscale() (factor int, auto bool) {
	return m.downscale, m.autoDownscale
}

func (m *Manager) sortedTimecodes() []timecode.Timecode {
	return slices.SortedFunc(maps.Keys(m.events), timecode.Timecode.Compare)
}
