package frame

import (
	"fmt"
	"io"

	"framecut/internal/timecode"
)

// FillFunc paints the pixels of frame index into f.
type FillFunc func(index int, f *Frame)

// MemorySource synthesizes a fixed number of frames in memory.
type MemorySource struct {
	base     timecode.Timecode
	width    int
	height   int
	channels int
	total    int
	fill     FillFunc
	next     int

	// Decoded counts frames materialized by Read(true).
	Decoded int
}

// NewMemorySource returns a source of total frames at fps. fill may be nil.
func NewMemorySource(total, width, height int, fps float64, fill FillFunc) (*MemorySource, error) {
	base, err := timecode.New(0, fps)
	if err != nil {
		return nil, err
	}
	if total < 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("memory source: invalid geometry %dx%d with %d frames", width, height, total)
	}
	return &MemorySource{base: base, width: width, height: height, channels: 3, total: total, fill: fill}, nil
}

func (s *MemorySource) BaseTimecode() timecode.Timecode { return s.base }

func (s *MemorySource) FrameNumber() int { return s.next }

func (s *MemorySource) Position() timecode.Timecode {
	if s.next == 0 {
		return s.base
	}
	return s.base.Add(s.next - 1)
}

func (s *MemorySource) Duration() (timecode.Timecode, bool) {
	return s.base.Add(s.total), true
}

func (s *MemorySource) FrameSize() (int, int) { return s.width, s.height }

func (s *MemorySource) Read(decode bool) (*Frame, error) {
	if s.next >= s.total {
		return nil, io.EOF
	}
	index := s.next
	s.next++
	if !decode {
		return nil, nil
	}
	s.Decoded++
	f := New(s.width, s.height, s.channels)
	if s.fill != nil {
		s.fill(index, f)
	}
	return f, nil
}

func (s *MemorySource) Grab() error {
	_, err := s.Read(false)
	return err
}

func (s *MemorySource) Seek(target timecode.Timecode) error {
	if target.Frame() > s.total {
		return io.EOF
	}
	s.next = target.Frame()
	return nil
}

func (s *MemorySource) Reset() error {
	s.next = 0
	s.Decoded = 0
	return nil
}
