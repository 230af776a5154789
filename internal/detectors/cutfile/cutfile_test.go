package cutfile_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"framecut/internal/detect"
	"framecut/internal/detectors/cutfile"
	"framecut/internal/frame"
)

func TestParse(t *testing.T) {
	input := "# exported scene list\n120\n\n  48 \n120\n0\n"
	got, err := cutfile.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if want := []int{0, 48, 120}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
}

func TestParseRejectsInvalidLines(t *testing.T) {
	for _, input := range []string{"12\nabc\n", "-4\n", "1.5\n"} {
		if _, err := cutfile.Parse(strings.NewReader(input)); !errors.Is(err, detect.ErrInvalidArgument) {
			t.Fatalf("Parse(%q) err = %v, want ErrInvalidArgument", input, err)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.txt")
	if err := os.WriteFile(path, []byte("10\n20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := cutfile.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, []int{10, 20}) {
		t.Fatalf("Load = %v", got)
	}
	if _, err := cutfile.Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func scenesOf(m *detect.Manager) [][2]int {
	var out [][2]int
	for _, s := range m.SceneList(true) {
		out = append(out, [2]int{s.Start.Frame(), s.End.Frame()})
	}
	return out
}

func TestDetectorDrivesSceneList(t *testing.T) {
	src, err := frame.NewMemorySource(50, 32, 16, 25, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := detect.NewManager()
	if err := m.AddDetector(cutfile.New([]int{30, 12, 12})); err != nil {
		t.Fatalf("AddDetector: %v", err)
	}
	if _, err := m.DetectScenes(t.Context(), src, detect.DetectOptions{}); err != nil {
		t.Fatalf("DetectScenes: %v", err)
	}
	if got, want := scenesOf(m), [][2]int{{0, 12}, {12, 30}, {30, 50}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("scenes = %v, want %v", got, want)
	}
	for _, ev := range m.EventList() {
		if ev.Context != cutfile.Source {
			t.Fatalf("event context = %v, want %q", ev.Context, cutfile.Source)
		}
	}
}

func TestDetectorKeepsOwnFrameUnderFrameSkip(t *testing.T) {
	src, err := frame.NewMemorySource(40, 32, 16, 25, nil)
	if err != nil {
		t.Fatal(err)
	}
	m := detect.NewManager()
	if err := m.AddDetector(cutfile.New([]int{7, 22})); err != nil {
		t.Fatal(err)
	}
	if _, err := m.DetectScenes(t.Context(), src, detect.DetectOptions{FrameSkip: 4}); err != nil {
		t.Fatalf("DetectScenes: %v", err)
	}
	var cuts []int
	for _, c := range m.CutList(0) {
		cuts = append(cuts, c.Frame())
	}
	if !reflect.DeepEqual(cuts, []int{7, 22}) {
		t.Fatalf("cuts = %v, want [7 22]", cuts)
	}
}

func TestDetectorSkipsFramesBeforeStart(t *testing.T) {
	src, err := frame.NewMemorySource(40, 32, 16, 25, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Seek(src.BaseTimecode().Add(15)); err != nil {
		t.Fatal(err)
	}
	d := cutfile.New([]int{5, 20})
	m := detect.NewManager()
	if err := m.AddDetector(d); err != nil {
		t.Fatal(err)
	}
	if _, err := m.DetectScenes(t.Context(), src, detect.DetectOptions{}); err != nil {
		t.Fatalf("DetectScenes: %v", err)
	}
	var cuts []int
	for _, c := range m.CutList(0) {
		cuts = append(cuts, c.Frame())
	}
	if !reflect.DeepEqual(cuts, []int{20}) {
		t.Fatalf("cuts = %v, want [20]", cuts)
	}
	if !reflect.DeepEqual(d.Frames(), []int{5, 20}) {
		t.Fatalf("Frames() = %v", d.Frames())
	}
}

func TestWriteRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := cutfile.Write(&buf, "clip.mkv\n24 fps", []int{12, 30}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "# clip.mkv\n# 24 fps\n12\n30\n"
	if buf.String() != want {
		t.Fatalf("Write = %q, want %q", buf.String(), want)
	}
	frames, err := cutfile.Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(frames, []int{12, 30}) {
		t.Fatalf("round trip = %v", frames)
	}
}
