package frame

import "framecut/internal/timecode"

// Source is a seekable stream of decoded frames.
//
// Read, Grab, and Seek report end of stream as io.EOF; any other error is a
// decode failure.
type Source interface {
	// BaseTimecode is frame zero at the stream's frame rate.
	BaseTimecode() timecode.Timecode
	// FrameNumber counts frames consumed so far; it is also the index of the
	// next frame Read will return.
	FrameNumber() int
	// Position is the last frame consumed, or BaseTimecode before any read.
	Position() timecode.Timecode
	// Duration reports the stream length when it is known.
	Duration() (timecode.Timecode, bool)
	FrameSize() (width, height int)
	// Read advances one frame. With decode false the returned frame is nil.
	Read(decode bool) (*Frame, error)
	// Grab advances one frame without materializing it.
	Grab() error
	Seek(target timecode.Timecode) error
	Reset() error
}
