package detect

import (
	"fmt"

	"framecut/internal/timecode"
)

// DefaultMinCutSpacing is the spacing CutList callers use when they have no
// preference.
const DefaultMinCutSpacing = 15

// SceneList assembles the ledger into ordered, non-overlapping scenes.
//
// Events are walked in timecode order. IN opens a scene, OUT closes the open
// scene, and CUT closes the open scene and opens the next at the same frame.
// At most one scene is emitted per timecode. When only CUT events were ever
// added, the run start counts as an open scene. With alwaysIncludeEnd, a
// scene still open after the last event runs to one frame past the last
// processed position.
func (m *Manager) SceneList(alwaysIncludeEnd bool) []Scene {
	if len(m.events) == 0 {
		return nil
	}

	order := m.sortedTimecodes()
	start, last := m.span(order)
	lastEvent := start
	inScene := m.onlyCuts
	var scenes []Scene

	for _, tc := range order {
		added := false
		for _, ev := range m.events[tc] {
			switch ev.Kind {
			case EventIn:
				inScene = true
				lastEvent = tc
			case EventOut:
				opened := lastEvent
				if inScene {
					lastEvent = tc
					inScene = false
					if !added {
						scenes = appendScene(scenes, opened, tc)
						added = true
					}
				}
			case EventCut:
				if inScene {
					if !added {
						scenes = appendScene(scenes, lastEvent, tc)
						added = true
					}
					lastEvent = tc
				}
			}
		}
	}

	if inScene && alwaysIncludeEnd {
		scenes = appendScene(scenes, lastEvent, last.Add(1))
	}
	return scenes
}

// appendScene drops empty intervals, which arise when a boundary lands on
// the frame a scene opened at.
func appendScene(scenes []Scene, start, end timecode.Timecode) []Scene {
	if !start.Before(end) {
		return scenes
	}
	return append(scenes, Scene{Start: start, End: end})
}

// span returns the recorded run start and last position. Without a run the
// span is frame 0 through the last event.
func (m *Manager) span(order []timecode.Timecode) (timecode.Timecode, timecode.Timecode) {
	first, final := order[0], order[len(order)-1]
	start := first.WithFrame(0)
	if m.startPos != nil {
		start = *m.startPos
	}
	last := final
	if m.lastPos != nil {
		last = *m.lastPos
	}
	return start, last
}

// CutList returns the timecodes holding at least one CUT, ascending. When
// minimumSpacing exceeds 1, a cut closer than minimumSpacing frames to the
// previously kept cut is dropped.
func (m *Manager) CutList(minimumSpacing int) []timecode.Timecode {
	var cuts []timecode.Timecode
	for _, tc := range m.sortedTimecodes() {
		for _, ev := range m.events[tc] {
			if ev.Kind == EventCut {
				cuts = append(cuts, tc)
				break
			}
		}
	}
	if minimumSpacing <= 1 || len(cuts) < 2 {
		return cuts
	}
	kept := []timecode.Timecode{cuts[0]}
	for _, cut := range cuts[1:] {
		if cut.Sub(kept[len(kept)-1]) >= minimumSpacing {
			kept = append(kept, cut)
		}
	}
	return kept
}

// TransformEventsToCuts rewrites every event as a CUT at its own timecode,
// keeping its context. The only-cuts flag is left as it was. A non-nil
// fadeBias, which would place cuts between OUT/IN pairs, is not implemented
// and returns ErrUnsupported without touching the ledger.
func (m *Manager) TransformEventsToCuts(fadeBias *float64) error {
	if fadeBias != nil {
		return fmt.Errorf("%w: transform events to cuts with fade bias %v", ErrUnsupported, *fadeBias)
	}
	for tc, events := range m.events {
		rewritten := make([]Event, len(events))
		for i, ev := range events {
			rewritten[i] = Cut(ev.Time, ev.Context)
		}
		m.events[tc] = rewritten
	}
	return nil
}
