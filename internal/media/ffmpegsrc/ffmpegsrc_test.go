package ffmpegsrc_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"framecut/internal/frame"
	"framecut/internal/media/ffmpegsrc"
	"framecut/internal/services"
	"framecut/internal/testsupport"
	"framecut/internal/timecode"
)

// A 2x2 bgr24 frame is 12 bytes.
const frameBytes = 12

func stubFFmpeg(t *testing.T, frames int, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> '" + argsLog + "'\n" +
		extra +
		"head -c " + strconv.Itoa(frames*frameBytes) + " /dev/zero\n"
	return testsupport.WriteScript(t, dir, "ffmpeg", script), argsLog
}

func openSource(t *testing.T, bin string, duration int) *ffmpegsrc.Source {
	t.Helper()
	src, err := ffmpegsrc.Open(t.Context(), ffmpegsrc.Options{
		FFmpeg:   bin,
		Path:     "/media/clip.mkv",
		Width:    2,
		Height:   2,
		FPS:      24,
		Duration: duration,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func drain(t *testing.T, src frame.Source, decode bool) int {
	t.Helper()
	n := 0
	for {
		f, err := src.Read(decode)
		if errors.Is(err, io.EOF) {
			return n
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if decode && (f == nil || len(f.Pix) != frameBytes) {
			t.Fatalf("frame %d has unexpected shape %+v", n, f)
		}
		if !decode && f != nil {
			t.Fatal("expected nil frame without decode")
		}
		n++
	}
}

func TestReadsFramesUntilEOF(t *testing.T) {
	bin, _ := stubFFmpeg(t, 5, "")
	src := openSource(t, bin, 5)

	if got := drain(t, src, true); got != 5 {
		t.Fatalf("read %d frames, want 5", got)
	}
	if src.FrameNumber() != 5 || src.Position().Frame() != 4 {
		t.Fatalf("FrameNumber = %d Position = %d", src.FrameNumber(), src.Position().Frame())
	}
	if d, ok := src.Duration(); !ok || d.Frame() != 5 {
		t.Fatalf("Duration = %v, %v", d, ok)
	}
	if _, err := src.Read(true); !errors.Is(err, io.EOF) {
		t.Fatalf("read after EOF = %v", err)
	}
}

func TestGrabDiscardsFrames(t *testing.T) {
	bin, _ := stubFFmpeg(t, 4, "")
	src := openSource(t, bin, 0)
	if err := src.Grab(); err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if got := drain(t, src, false); got != 3 {
		t.Fatalf("skipped %d frames, want 3", got)
	}
	if _, ok := src.Duration(); ok {
		t.Fatal("expected unknown duration")
	}
}

func TestSeekRestartsAtOffset(t *testing.T) {
	bin, argsLog := stubFFmpeg(t, 3, "")
	src := openSource(t, bin, 10)
	if _, err := src.Read(true); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if err := src.Seek(timecode.MustNew(6, 24)); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if src.FrameNumber() != 6 {
		t.Fatalf("FrameNumber after seek = %d", src.FrameNumber())
	}
	drain(t, src, true)
	if src.FrameNumber() != 9 {
		t.Fatalf("FrameNumber after drain = %d, want 9", src.FrameNumber())
	}
	if err := src.Seek(timecode.MustNew(11, 24)); !errors.Is(err, io.EOF) {
		t.Fatalf("seek past end = %v, want io.EOF", err)
	}
	if err := src.Reset(); err != nil || src.FrameNumber() != 0 {
		t.Fatalf("Reset = %v, frame %d", err, src.FrameNumber())
	}
	if _, err := src.Read(false); err != nil {
		t.Fatalf("Read after reset: %v", err)
	}

	data, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 ffmpeg launches, got %d: %q", len(lines), lines)
	}
	if strings.Contains(lines[0], "-ss") || !strings.Contains(lines[1], "-ss 0.25") || strings.Contains(lines[2], "-ss") {
		t.Fatalf("unexpected seek arguments: %q", lines)
	}
	if !strings.Contains(lines[0], "-pix_fmt bgr24") {
		t.Fatalf("expected bgr24 output in %q", lines[0])
	}
}

func TestTruncatedTailIsEOF(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteScript(t, dir, "ffmpeg", "#!/bin/sh\nhead -c 20 /dev/zero\n")
	src := openSource(t, bin, 0)
	if got := drain(t, src, true); got != 1 {
		t.Fatalf("read %d frames, want 1", got)
	}
}

func TestProcessFailureIsExternalToolError(t *testing.T) {
	dir := t.TempDir()
	bin := testsupport.WriteScript(t, dir, "ffmpeg", "#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n")
	src := openSource(t, bin, 0)
	_, err := src.Read(true)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr in error: %v", err)
	}
}

func TestOpenValidates(t *testing.T) {
	tests := []ffmpegsrc.Options{
		{Path: "", Width: 2, Height: 2, FPS: 24},
		{Path: "a.mkv", Width: 0, Height: 2, FPS: 24},
		{Path: "a.mkv", Width: 2, Height: 2, FPS: 0},
		{Path: "a.mkv", Width: 2, Height: 2, FPS: 24, Start: -1},
	}
	for i, opts := range tests {
		if _, err := ffmpegsrc.Open(t.Context(), opts); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: err = %v, want ErrValidation", i, err)
		}
	}
	if _, err := ffmpegsrc.Open(t.Context(), ffmpegsrc.Options{
		FFmpeg: filepath.Join(t.TempDir(), "missing"), Path: "a.mkv", Width: 2, Height: 2, FPS: 24,
	}); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("missing binary err = %v", err)
	}
}
