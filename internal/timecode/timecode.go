package timecode

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// MinFPS is the smallest frame rate a Timecode accepts.
	MinFPS = 1.0 / 1000.0
	// RateTolerance is the maximum difference at which two frame rates are
	// treated as equal for arithmetic.
	RateTolerance = 1.0 / 100000.0
)

// ErrInvalid flags malformed timecode input or an unusable frame rate.
var ErrInvalid = errors.New("invalid timecode")

// Timecode is an exact frame position at a fixed frame rate.
type Timecode struct {
	frame int
	fps   float64
}

// New returns the timecode for frame at fps.
func New(frame int, fps float64) (Timecode, error) {
	if err := checkRate(fps); err != nil {
		return Timecode{}, err
	}
	if frame < 0 {
		return Timecode{}, fmt.Errorf("%w: frame %d is negative", ErrInvalid, frame)
	}
	return Timecode{frame: frame, fps: fps}, nil
}

// MustNew is New for constant inputs; it panics on error.
func MustNew(frame int, fps float64) Timecode {
	tc, err := New(frame, fps)
	if err != nil {
		panic(err)
	}
	return tc
}

// FromSeconds converts seconds to the frame at or before that instant.
func FromSeconds(seconds, fps float64) (Timecode, error) {
	if err := checkRate(fps); err != nil {
		return Timecode{}, err
	}
	if seconds < 0 || math.IsNaN(seconds) {
		return Timecode{}, fmt.Errorf("%w: seconds %v is negative", ErrInvalid, seconds)
	}
	return Timecode{frame: int(seconds * fps), fps: fps}, nil
}

// Parse reads "HH:MM:SS[.nnn]", a bare frame number, or seconds suffixed
// with "s" ("300s", "12.5s").
func Parse(value string, fps float64) (Timecode, error) {
	if err := checkRate(fps); err != nil {
		return Timecode{}, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Timecode{}, fmt.Errorf("%w: empty value", ErrInvalid)
	}

	if secs, ok := strings.CutSuffix(value, "s"); ok {
		if !isDecimal(secs) {
			return Timecode{}, fmt.Errorf("%w: %q is not a seconds value", ErrInvalid, value)
		}
		parsed, err := strconv.ParseFloat(secs, 64)
		if err != nil {
			return Timecode{}, fmt.Errorf("%w: %q: %v", ErrInvalid, value, err)
		}
		return FromSeconds(parsed, fps)
	}

	if isDigits(value) {
		frame, err := strconv.Atoi(value)
		if err != nil {
			return Timecode{}, fmt.Errorf("%w: %q: %v", ErrInvalid, value, err)
		}
		return New(frame, fps)
	}

	parts := strings.Split(value, ":")
	if len(parts) != 3 || !isDigits(parts[0]) || !isDigits(parts[1]) || !isDecimal(parts[2]) {
		return Timecode{}, fmt.Errorf("%w: %q is not HH:MM:SS[.nnn]", ErrInvalid, value)
	}
	hrs, _ := strconv.Atoi(parts[0])
	mins, _ := strconv.Atoi(parts[1])
	secs, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Timecode{}, fmt.Errorf("%w: %q: %v", ErrInvalid, value, err)
	}
	if mins >= 60 || secs >= 60 {
		return Timecode{}, fmt.Errorf("%w: %q is out of range", ErrInvalid, value)
	}
	total := secs + (float64(hrs)*60+float64(mins))*60
	return Timecode{frame: int(total * fps), fps: fps}, nil
}

// Frame returns the zero-based frame number.
func (t Timecode) Frame() int { return t.frame }

// FPS returns the frame rate.
func (t Timecode) FPS() float64 { return t.fps }

// Seconds returns the presentation time in seconds.
func (t Timecode) Seconds() float64 {
	if t.fps == 0 {
		return 0
	}
	return float64(t.frame) / t.fps
}

// IsZero reports whether t is the zero value (no frame rate).
func (t Timecode) IsZero() bool { return t.fps == 0 }

// Add offsets t by frames, clamping at frame 0.
func (t Timecode) Add(frames int) Timecode {
	next := t.frame + frames
	if next < 0 {
		next = 0
	}
	return Timecode{frame: next, fps: t.fps}
}

// Sub returns the signed number of frames from other to t.
func (t Timecode) Sub(other Timecode) int {
	return t.frame - other.frame
}

// WithFrame returns a timecode at frame sharing t's rate.
func (t Timecode) WithFrame(frame int) Timecode {
	return t.Add(frame - t.frame)
}

// SameRate reports whether t and other share a frame rate within RateTolerance.
func (t Timecode) SameRate(other Timecode) bool {
	return math.Abs(t.fps-other.fps) < RateTolerance
}

// Equal reports whether t and other are the same frame at the same rate.
func (t Timecode) Equal(other Timecode) bool {
	return t.frame == other.frame && t.SameRate(other)
}

// Compare orders timecodes by frame number.
func (t Timecode) Compare(other Timecode) int {
	switch {
	case t.frame < other.frame:
		return -1
	case t.frame > other.frame:
		return 1
	default:
		return 0
	}
}

// Before reports whether t precedes other.
func (t Timecode) Before(other Timecode) bool { return t.frame < other.frame }

// String renders HH:MM:SS.mmm.
func (t Timecode) String() string {
	return t.Format(3, true)
}

// Format renders HH:MM:SS with precision decimal places on the seconds
// field, rounding or truncating the remainder. The total is rounded before
// it is split, so a carry reaches the minutes and hours.
func (t Timecode) Format(precision int, round bool) string {
	precision = max(precision, 0)
	scale := math.Pow(10, float64(precision))
	scaled := t.Seconds() * scale
	if round {
		scaled = math.Round(scaled)
	} else {
		scaled = math.Floor(scaled)
	}
	units := int64(scaled)
	perSecond := int64(scale)

	whole, frac := units/perSecond, units%perSecond
	hrs, rem := whole/3600, whole%3600
	mins, secs := rem/60, rem%60
	if precision == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%0*d", hrs, mins, secs, precision, frac)
}

type jsonTimecode struct {
	Frame    int     `json:"frame"`
	Timecode string  `json:"timecode"`
	Seconds  float64 `json:"seconds"`
}

// MarshalJSON encodes the frame alongside its rendered timecode.
func (t Timecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonTimecode{Frame: t.frame, Timecode: t.String(), Seconds: t.Seconds()})
}

func checkRate(fps float64) error {
	if math.IsNaN(fps) || fps < MinFPS {
		return fmt.Errorf("%w: frame rate %v must be at least %v", ErrInvalid, fps, MinFPS)
	}
	return nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isDecimal(value string) bool {
	return isDigits(strings.Replace(value, ".", "", 1))
}
