package stats

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrMetricRegistered indicates a metric key was already registered.
var ErrMetricRegistered = errors.New("metric already registered")

// Store caches named metric values per frame index. It is safe for
// concurrent use.
type Store struct {
	mu         sync.RWMutex
	registered map[string]struct{}
	frames     map[int]map[string]float64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		registered: make(map[string]struct{}),
		frames:     make(map[int]map[string]float64),
	}
}

// RegisterMetrics records keys as known metrics. Keys are registered even
// when some were already present; the returned error then wraps
// ErrMetricRegistered and names the duplicates.
func (s *Store) RegisterMetrics(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dupes []string
	for _, key := range keys {
		if _, ok := s.registered[key]; ok {
			dupes = append(dupes, key)
			continue
		}
		s.registered[key] = struct{}{}
	}
	if len(dupes) > 0 {
		return fmt.Errorf("%w: %v", ErrMetricRegistered, dupes)
	}
	return nil
}

// MetricsExist reports whether every key has a value for frame.
func (s *Store) MetricsExist(frame int, keys ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values, ok := s.frames[frame]
	if !ok {
		return false
	}
	for _, key := range keys {
		if _, ok := values[key]; !ok {
			return false
		}
	}
	return true
}

// Metrics returns the values of keys for frame in key order. ok is false
// when any key is missing.
func (s *Store) Metrics(frame int, keys ...string) ([]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values, found := s.frames[frame]
	if !found {
		return nil, false
	}
	out := make([]float64, 0, len(keys))
	for _, key := range keys {
		v, ok := values[key]
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// SetMetrics stores values for frame, replacing existing keys.
func (s *Store) SetMetrics(frame int, values map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.frames[frame]
	if !ok {
		current = make(map[string]float64, len(values))
		s.frames[frame] = current
	}
	for key, v := range values {
		current[key] = v
	}
}

// Keys returns every registered or stored metric key, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := maps.Clone(s.registered)
	for _, values := range s.frames {
		for key := range values {
			seen[key] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Frames returns the frame indices holding at least one value, ascending.
func (s *Store) Frames() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.frames))
}

// Len returns the number of frames with stored values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

func (s *Store) snapshot(frame int) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.frames[frame])
}
