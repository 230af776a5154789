// Package cutfile replays a scene-change list produced by an external tool
// as CUT events.
package cutfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"framecut/internal/detect"
	"framecut/internal/frame"
	"framecut/internal/timecode"
)

// Load reads a cut list from path.
func Load(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cut list: %w", err)
	}
	defer func() { _ = f.Close() }()
	frames, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// Parse reads one frame number per line. Blank lines and lines starting
// with # are skipped. The result is sorted with duplicates removed.
func Parse(r io.Reader) ([]int, error) {
	var frames []int
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: line %d: %q is not a frame number", detect.ErrInvalidArgument, line, text)
		}
		frames = append(frames, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cut list: %w", err)
	}
	slices.Sort(frames)
	return slices.Compact(frames), nil
}

// Write formats frames in the form Parse reads, preceded by a comment
// header when header is non-empty.
func Write(w io.Writer, header string, frames []int) error {
	bw := bufio.NewWriter(w)
	if header != "" {
		for line := range strings.Lines(header) {
			if _, err := fmt.Fprintf(bw, "# %s\n", strings.TrimRight(line, "\n")); err != nil {
				return err
			}
		}
	}
	for _, f := range frames {
		if _, err := fmt.Fprintln(bw, f); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Detector emits a CUT when the frame loop reaches each listed frame.
type Detector struct {
	frames  []int
	next    int
	started bool
}

// Source is the context attached to replayed events.
const Source = "cutfile"

// New returns a detector for the given frames, which need not be sorted.
func New(frames []int) *Detector {
	sorted := slices.Clone(frames)
	slices.Sort(sorted)
	return &Detector{frames: slices.Compact(sorted)}
}

// Frames returns the cut frames in ascending order.
func (d *Detector) Frames() []int {
	return slices.Clone(d.frames)
}

func (d *Detector) Metrics() []string { return nil }

func (d *Detector) StatsRequired() bool { return false }

// IsProcessingRequired is false; the detector never inspects pixels.
func (d *Detector) IsProcessingRequired(int) bool { return false }

// ProcessFrame emits a CUT for each listed frame passed since the previous
// call, stamped with its own frame number. Frames before the first frame
// seen are skipped.
func (d *Detector) ProcessFrame(tc timecode.Timecode, _ *frame.Frame) ([]detect.Event, error) {
	if !d.started {
		d.started = true
		for d.next < len(d.frames) && d.frames[d.next] < tc.Frame() {
			d.next++
		}
	}
	var events []detect.Event
	for d.next < len(d.frames) && d.frames[d.next] <= tc.Frame() {
		events = append(events, detect.Cut(tc.WithFrame(d.frames[d.next]), Source))
		d.next++
	}
	return events, nil
}

func (d *Detector) PostProcess(timecode.Timecode, timecode.Timecode) ([]detect.Event, error) {
	return nil, nil
}

// Reset rewinds the detector so the list can be replayed.
func (d *Detector) Reset() {
	d.next = 0
	d.started = false
}
