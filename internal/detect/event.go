package detect

import (
	"fmt"

	"framecut/internal/timecode"
)

// EventKind classifies a detector verdict.
type EventKind int

const (
	// EventIn marks the start of a scene.
	EventIn EventKind = iota + 1
	// EventOut marks the end of a scene.
	EventOut
	// EventCut is an instantaneous boundary between two scenes.
	EventCut
)

func (k EventKind) String() string {
	switch k {
	case EventIn:
		return "in"
	case EventOut:
		return "out"
	case EventCut:
		return "cut"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind name for JSON and logs.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a single detector verdict at a frame. Context carries
// detector-specific data and is never inspected by scene assembly.
type Event struct {
	Kind    EventKind         `json:"kind"`
	Time    timecode.Timecode `json:"time"`
	Context any               `json:"context,omitempty"`
}

// Cut builds a CUT event at tc.
func Cut(tc timecode.Timecode, context any) Event {
	return Event{Kind: EventCut, Time: tc, Context: context}
}

// In builds an IN event at tc.
func In(tc timecode.Timecode, context any) Event {
	return Event{Kind: EventIn, Time: tc, Context: context}
}

// Out builds an OUT event at tc.
func Out(tc timecode.Timecode, context any) Event {
	return Event{Kind: EventOut, Time: tc, Context: context}
}

// Scene is the half-open frame interval [Start, End).
type Scene struct {
	Start timecode.Timecode `json:"start"`
	End   timecode.Timecode `json:"end"`
}

// Len returns the scene length in frames.
func (s Scene) Len() int {
	return s.End.Sub(s.Start)
}
