// Package scenelist post-processes detected scenes: dropping short scenes,
// merging them into neighbours and trimming scene edges.
package scenelist

import (
	"slices"

	"framecut/internal/detect"
)

// Drop removes scenes shorter than minLen frames. A scene's length counts
// both its start and end frame. minLen of 1 or less keeps everything.
func Drop(scenes []detect.Scene, minLen int) []detect.Scene {
	if minLen <= 1 {
		return slices.Clone(scenes)
	}
	out := make([]detect.Scene, 0, len(scenes))
	for _, s := range scenes {
		if s.End.Sub(s.Start)+1 >= minLen {
			out = append(out, s)
		}
	}
	return out
}

// Merge folds scenes shorter than minLen frames into a neighbour. The
// previous scene is preferred when the gap to it is at most maxGap frames,
// otherwise the next scene is tried. Scenes with no close neighbour are
// kept unchanged.
func Merge(scenes []detect.Scene, minLen, maxGap int) []detect.Scene {
	if len(scenes) < 2 || minLen <= 0 {
		return slices.Clone(scenes)
	}
	work := slices.Clone(scenes)
	out := make([]detect.Scene, 0, len(work))
	for i := 0; i < len(work); i++ {
		cur := work[i]
		if cur.Len() >= minLen {
			out = append(out, cur)
			continue
		}
		if n := len(out); n > 0 && cur.Start.Sub(out[n-1].End) <= maxGap {
			out[n-1].End = cur.End
			continue
		}
		if i+1 < len(work) && work[i+1].Start.Sub(cur.End) <= maxGap {
			work[i+1].Start = cur.Start
			continue
		}
		out = append(out, cur)
	}
	return out
}

// Contract moves every scene start forward by start frames and every end
// back by end frames. Scenes that become empty are removed.
func Contract(scenes []detect.Scene, start, end int) []detect.Scene {
	out := make([]detect.Scene, 0, len(scenes))
	for _, s := range scenes {
		s.Start = s.Start.Add(max(start, 0))
		s.End = s.End.Add(-max(end, 0))
		if s.Start.Before(s.End) {
			out = append(out, s)
		}
	}
	return out
}
