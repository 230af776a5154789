package frame

// Frame is a decoded picture stored as row-major interleaved samples.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// New allocates a zeroed frame.
func New(width, height, channels int) *Frame {
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Stride returns the byte length of a row.
func (f *Frame) Stride() int {
	return f.Width * f.Channels
}

// At returns the samples of the pixel at (x, y).
func (f *Frame) At(x, y int) []byte {
	offset := y*f.Stride() + x*f.Channels
	return f.Pix[offset : offset+f.Channels]
}

// Subsample keeps every factor-th row and column starting at the origin.
// No interpolation is applied. A factor of 1 or less returns f itself.
func Subsample(f *Frame, factor int) *Frame {
	if f == nil || factor <= 1 {
		return f
	}
	width := (f.Width + factor - 1) / factor
	height := (f.Height + factor - 1) / factor
	out := New(width, height, f.Channels)
	dst := 0
	for y := 0; y < f.Height; y += factor {
		row := y * f.Stride()
		for x := 0; x < f.Width; x += factor {
			src := row + x*f.Channels
			copy(out.Pix[dst:dst+f.Channels], f.Pix[src:src+f.Channels])
			dst += f.Channels
		}
	}
	return out
}
