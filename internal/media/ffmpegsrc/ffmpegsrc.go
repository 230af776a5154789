// Package ffmpegsrc decodes video through an ffmpeg subprocess and serves
// the frames as a frame.Source.
package ffmpegsrc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"framecut/internal/frame"
	"framecut/internal/logging"
	"framecut/internal/services"
	"framecut/internal/timecode"
)

const (
	channels       = 3
	stderrCapacity = 4096
)

// Options describes the stream to decode. Width, Height and FPS usually
// come from an ffprobe of Path.
type Options struct {
	FFmpeg string
	Path   string
	Width  int
	Height int
	FPS    float64
	// Duration is the stream length in frames; 0 means unknown.
	Duration int
	// Start is the frame decoding begins at.
	Start  int
	Logger *slog.Logger
}

// Source reads raw bgr24 frames from ffmpeg's stdout.
type Source struct {
	opts       Options
	ctx        context.Context
	logger     *slog.Logger
	base       timecode.Timecode
	frameBytes int
	next       int
	proc       *process
}

type process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *boundedBuffer
}

// Open validates opts and starts ffmpeg at opts.Start.
func Open(ctx context.Context, opts Options) (*Source, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "open", "empty path", nil)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "open",
			fmt.Sprintf("invalid frame size %dx%d", opts.Width, opts.Height), nil)
	}
	base, err := timecode.New(0, opts.FPS)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "open", "invalid frame rate", err)
	}
	if opts.Start < 0 {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "open", "negative start frame", nil)
	}
	if strings.TrimSpace(opts.FFmpeg) == "" {
		opts.FFmpeg = "ffmpeg"
	}

	s := &Source{
		opts:       opts,
		ctx:        ctx,
		logger:     logging.NewComponentLogger(opts.Logger, "ffmpeg"),
		base:       base,
		frameBytes: opts.Width * opts.Height * channels,
	}
	if err := s.restart(opts.Start); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) restart(startFrame int) error {
	s.stop()

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if startFrame > 0 {
		seconds := float64(startFrame) / s.base.FPS()
		args = append(args, "-ss", strconv.FormatFloat(seconds, 'f', -1, 64))
	}
	args = append(args, "-i", s.opts.Path, "-map", "0:v:0", "-f", "rawvideo", "-pix_fmt", "bgr24", "-")

	ctx, cancel := context.WithCancel(s.ctx)
	cmd := exec.CommandContext(ctx, s.opts.FFmpeg, args...)
	stderr := &boundedBuffer{size: stderrCapacity}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "open stdout", "", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "start", s.opts.FFmpeg, err)
	}

	s.logger.Debug("ffmpeg started",
		logging.String(logging.FieldVideo, s.opts.Path),
		logging.Int("start_frame", startFrame),
		logging.Int("frame_bytes", s.frameBytes),
	)
	s.proc = &process{
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, min(s.frameBytes, 1<<20)),
		stderr: stderr,
	}
	s.next = startFrame
	return nil
}

func (s *Source) BaseTimecode() timecode.Timecode { return s.base }

func (s *Source) FrameNumber() int { return s.next }

func (s *Source) Position() timecode.Timecode {
	if s.next == 0 {
		return s.base
	}
	return s.base.Add(s.next - 1)
}

func (s *Source) Duration() (timecode.Timecode, bool) {
	if s.opts.Duration <= 0 {
		return timecode.Timecode{}, false
	}
	return s.base.Add(s.opts.Duration), true
}

func (s *Source) FrameSize() (int, int) { return s.opts.Width, s.opts.Height }

// Read consumes one frame. With decode false the bytes are discarded.
func (s *Source) Read(decode bool) (*frame.Frame, error) {
	if s.proc == nil {
		return nil, io.EOF
	}
	if !decode {
		if _, err := s.proc.reader.Discard(s.frameBytes); err != nil {
			return nil, s.finish(err)
		}
		s.next++
		return nil, nil
	}
	f := frame.New(s.opts.Width, s.opts.Height, channels)
	if _, err := io.ReadFull(s.proc.reader, f.Pix); err != nil {
		return nil, s.finish(err)
	}
	s.next++
	return f, nil
}

func (s *Source) Grab() error {
	_, err := s.Read(false)
	return err
}

// Seek restarts decoding at target.
func (s *Source) Seek(target timecode.Timecode) error {
	if d, ok := s.Duration(); ok && target.Frame() > d.Frame() {
		return io.EOF
	}
	return s.restart(target.Frame())
}

// Reset restarts decoding at frame zero.
func (s *Source) Reset() error {
	return s.restart(0)
}

// Close stops ffmpeg and waits for it to exit.
func (s *Source) Close() error {
	s.stop()
	return nil
}

// finish waits for the process once stdout is exhausted. A clean exit is
// io.EOF, including when the last frame was truncated.
func (s *Source) finish(readErr error) error {
	proc := s.proc
	s.proc = nil
	waitErr := proc.cmd.Wait()
	proc.cancel()
	if err := s.ctx.Err(); err != nil {
		return err
	}

	if errors.Is(readErr, io.ErrUnexpectedEOF) {
		logging.WarnWithContext(s.logger, "truncated final frame", "ffmpeg_short_read",
			logging.String(logging.FieldVideo, s.opts.Path),
			logging.Int("frame", s.next),
			logging.String(logging.FieldImpact, "the partial frame is dropped"),
			logging.String(logging.FieldErrorHint, "check the file for corruption near the end"),
		)
	} else if !errors.Is(readErr, io.EOF) {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "read frame", strconv.Itoa(s.next), readErr)
	}
	if waitErr != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "decode", proc.stderr.String(), waitErr)
	}
	return io.EOF
}

func (s *Source) stop() {
	if s.proc == nil {
		return
	}
	s.proc.cancel()
	_ = s.proc.stdout.Close()
	_ = s.proc.cmd.Wait()
	s.proc = nil
}

// boundedBuffer keeps the last size bytes written to it.
type boundedBuffer struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.size; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
