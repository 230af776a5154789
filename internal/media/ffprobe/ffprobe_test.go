package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"framecut/internal/services"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestFrameRateAndCount(t *testing.T) {
	tests := []struct {
		name      string
		result    Result
		wantFPS   float64
		wantCount int
	}{
		{
			name: "nb_frames present",
			result: Result{Streams: []Stream{
				{CodecType: "audio"},
				{CodecType: "video", AvgFrameRate: "24000/1001", NBFrames: "1440"},
			}},
			wantFPS:   24000.0 / 1001.0,
			wantCount: 1440,
		},
		{
			name: "estimated from stream duration",
			result: Result{Streams: []Stream{
				{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "25/1", Duration: "10.0"},
			}},
			wantFPS:   25,
			wantCount: 250,
		},
		{
			name: "estimated from container duration",
			result: Result{
				Streams: []Stream{{CodecType: "video", AvgFrameRate: "30"}},
				Format:  Format{Duration: "2.5"},
			},
			wantFPS:   30,
			wantCount: 75,
		},
		{
			name:   "no video",
			result: Result{Streams: []Stream{{CodecType: "audio"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.FrameRate(); math.Abs(got-tt.wantFPS) > 1e-9 {
				t.Fatalf("FrameRate = %v, want %v", got, tt.wantFPS)
			}
			if got := tt.result.FrameCount(); got != tt.wantCount {
				t.Fatalf("FrameCount = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{"": 0, "0/0": 0, "25/0": 0, "abc": 0, "-5": 0, "30000/1001": 30000.0 / 1001.0, "50": 50}
	for in, want := range tests {
		if got := parseRate(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("parseRate(%q) = %v, want %v", in, got, want)
		}
	}
}

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","width":1920,"height":1080,"avg_frame_rate":"24/1","nb_frames":"48"}],"format":{"duration":"2.0","size":"1234"}}`

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestInspectRunsBinary(t *testing.T) {
	stub := writeStub(t, "#!/bin/sh\ncat <<'JSON'\n"+probeJSON+"\nJSON\n")
	result, err := Inspect(t.Context(), stub, "/media/movie.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	stream, ok := result.VideoStream()
	if !ok || stream.Width != 1920 || result.FrameCount() != 48 || result.FrameRate() != 24 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw JSON to be retained")
	}
}

func TestInspectFailureIsExternalToolError(t *testing.T) {
	stub := writeStub(t, "#!/bin/sh\necho 'No such file' >&2\nexit 1\n")
	_, err := Inspect(t.Context(), stub, "/missing.mkv")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := Inspect(t.Context(), stub, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestProberMemoizesUntilFileChanges(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mkv")
	if err := os.WriteFile(video, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := 0
	p := NewProber("ffprobe", time.Minute)
	p.inspect = func(_ context.Context, _ string, _ string) (Result, error) {
		calls++
		return Result{Format: Format{Size: "1"}}, nil
	}

	for i := 0; i < 3; i++ {
		if _, err := p.Inspect(t.Context(), video); err != nil {
			t.Fatalf("Inspect: %v", err)
		}
	}
	if calls != 1 || p.Cached() != 1 {
		t.Fatalf("calls = %d cached = %d, want 1 and 1", calls, p.Cached())
	}

	if err := os.WriteFile(video, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Inspect(t.Context(), video); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d after file change, want 2", calls)
	}

	if _, err := p.Inspect(t.Context(), filepath.Join(t.TempDir(), "missing.mkv")); err == nil {
		t.Fatal("expected stat error for missing file")
	}
}

func TestProberWithoutTTLAlwaysProbes(t *testing.T) {
	calls := 0
	p := NewProber("ffprobe", 0)
	p.inspect = func(context.Context, string, string) (Result, error) {
		calls++
		return Result{}, nil
	}
	for i := 0; i < 2; i++ {
		if _, err := p.Inspect(t.Context(), "anything.mkv"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 || p.Cached() != 0 {
		t.Fatalf("calls = %d cached = %d", calls, p.Cached())
	}
}
