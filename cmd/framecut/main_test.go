package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"framecut/internal/services"
	"framecut/internal/stats"
)

type jsonTimecode struct {
	Frame int `json:"frame"`
}

type jsonReport struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"frames_processed"`
	Scenes    []struct {
		Start  jsonTimecode `json:"start"`
		End    jsonTimecode `json:"end"`
		Frames int          `json:"frames"`
	} `json:"scenes"`
	Cuts    []jsonTimecode `json:"cuts"`
	StatsDB string         `json:"stats_db"`
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()
	var report jsonReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	return report
}

func (r jsonReport) sceneFrames() [][2]int {
	out := make([][2]int, 0, len(r.Scenes))
	for _, s := range r.Scenes {
		out = append(out, [2]int{s.Start.Frame, s.End.Frame})
	}
	return out
}

func (r jsonReport) cutFrames() []int {
	out := make([]int, 0, len(r.Cuts))
	for _, c := range r.Cuts {
		out = append(out, c.Frame)
	}
	return out
}

func TestDetectCutsFileJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	cuts := env.writeCuts(t, 30, 12)

	out, _, err := runCLI(t, []string{"detect", env.clip, "--cuts-file", cuts, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	report := decodeReport(t, out)
	if report.RunID == "" {
		t.Fatal("expected run id")
	}
	if report.Processed != clipFrames {
		t.Fatalf("frames processed = %d, want %d", report.Processed, clipFrames)
	}
	want := [][2]int{{0, 12}, {12, 30}, {30, 48}}
	if got := report.sceneFrames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("scenes = %v, want %v", got, want)
	}
	if got := report.cutFrames(); !reflect.DeepEqual(got, []int{12, 30}) {
		t.Fatalf("cuts = %v", got)
	}
	if report.StatsDB != "" {
		t.Fatalf("unexpected stats db %q without --stats", report.StatsDB)
	}
}

func TestDetectContractsScenes(t *testing.T) {
	env := setupCLITestEnv(t)
	cuts := env.writeCuts(t, 12, 30)

	out, _, err := runCLI(t, []string{
		"detect", env.clip, "--cuts-file", cuts, "--json",
		"--contract-start", "2", "--contract-end", "1",
	}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	report := decodeReport(t, out)
	want := [][2]int{{2, 11}, {14, 29}, {32, 47}}
	if got := report.sceneFrames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("scenes = %v, want %v", got, want)
	}
	if got := report.cutFrames(); !reflect.DeepEqual(got, []int{12, 30}) {
		t.Fatalf("cuts = %v, want contraction to leave cuts alone", got)
	}

	_, _, err = runCLI(t, []string{"detect", env.clip, "--cuts-file", cuts, "--contract-end", "-1"}, env.configPath)
	if code := services.ExitCode(err); code != services.ExitUsage {
		t.Fatalf("negative contraction: exit code %d (%v)", code, err)
	}
}

func TestDetectTableOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	cuts := env.writeCuts(t, 24)

	out, _, err := runCLI(t, []string{"detect", env.clip, "--cuts-file", cuts, "--no-end"}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "clip.mkv")
	requireContains(t, out, "00:00:01.000")
	requireContains(t, out, "Start Frame")
	requireContains(t, out, "Cuts (1): 00:00:01.000")
	if strings.Contains(out, "00:00:02.000") {
		t.Fatalf("--no-end should stop the scene list at the last cut:\n%s", out)
	}
}

func TestDetectWindowAndPostProcessing(t *testing.T) {
	env := setupCLITestEnv(t)
	cuts := env.writeCuts(t, 4, 20, 21, 40)

	out, _, err := runCLI(t, []string{
		"detect", env.clip,
		"--cuts-file", cuts,
		"--start", "2",
		"--end", "1.5s",
		"--min-scene-len", "3",
		"--min-cut-spacing", "0",
		"--json",
	}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	report := decodeReport(t, out)
	// Frames 2 through 36; the cut at 40 is never reached and the two-frame
	// scene between 20 and 21 is dropped.
	want := [][2]int{{2, 4}, {4, 20}, {21, 37}}
	if got := report.sceneFrames(); !reflect.DeepEqual(got, want) {
		t.Fatalf("scenes = %v, want %v", got, want)
	}
	if got := report.cutFrames(); !reflect.DeepEqual(got, []int{4, 20, 21}) {
		t.Fatalf("cuts = %v", got)
	}

	args, err := os.ReadFile(env.ffmpegArgs)
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, string(args), "-ss 0.08333333333333333")
}

func TestDetectMetricReplayFromStats(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "clip-stats.db")

	db, err := stats.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	key, err := stats.VideoKey(env.clip)
	if err != nil {
		t.Fatalf("VideoKey: %v", err)
	}
	store := stats.NewStore()
	for f := 0; f <= clipFrames; f++ {
		value := 0.1
		if f == 20 || f == 25 {
			value = 0.9
		}
		store.SetMetrics(f, map[string]float64{"score": value})
	}
	if err := db.SaveStore(context.Background(), key, 24, store); err != nil {
		t.Fatalf("SaveStore: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	exportPath := filepath.Join(env.baseDir, "out", "cuts.txt")
	metricsPath := filepath.Join(env.baseDir, "out", "framecut.prom")
	out, _, err := runCLI(t, []string{
		"detect", env.clip,
		"--metric", "score",
		"--threshold", "0.5",
		"--stats", dbPath,
		"--write-cuts", exportPath,
		"--metrics-file", metricsPath,
		"--json",
	}, env.configPath)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	report := decodeReport(t, out)
	if got := report.cutFrames(); !reflect.DeepEqual(got, []int{20}) {
		t.Fatalf("cuts = %v, want [20]", got)
	}
	if report.StatsDB != dbPath {
		t.Fatalf("stats db = %q, want %q", report.StatsDB, dbPath)
	}

	exported, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read exported cuts: %v", err)
	}
	requireContains(t, string(exported), "# framecut cut list for clip.mkv")
	requireContains(t, string(exported), "\n20\n")

	prom, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	requireContains(t, string(prom), `framecut_events_total{kind="cut"} 1`)
	requireContains(t, string(prom), "framecut_runs_total 1")

	out, _, err = runCLI(t, []string{"stats", "list", "--stats", dbPath}, env.configPath)
	if err != nil {
		t.Fatalf("stats list: %v", err)
	}
	requireContains(t, out, env.clip)
	requireContains(t, out, "score")
}

func TestDetectRejectsLockedStats(t *testing.T) {
	env := setupCLITestEnv(t)
	dbPath := filepath.Join(env.baseDir, "locked.db")
	db, err := stats.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	_, _, err = runCLI(t, []string{"detect", env.clip, "--metric", "score", "--threshold", "1", "--stats", dbPath}, env.configPath)
	if err == nil {
		t.Fatal("expected lock failure")
	}
	if code := services.ExitCode(err); code != services.ExitUsage {
		t.Fatalf("exit code = %d, want %d (%v)", code, services.ExitUsage, err)
	}
}

func TestDetectFrameSkipWithStatsIsUsageError(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{
		"detect", env.clip, "--metric", "score", "--threshold", "1", "--frame-skip", "2",
	}, env.configPath)
	if code := services.ExitCode(err); code != services.ExitUsage {
		t.Fatalf("exit code = %d, want %d (%v)", code, services.ExitUsage, err)
	}
}

func TestDetectExitCodes(t *testing.T) {
	env := setupCLITestEnv(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no detector", []string{"detect", env.clip}, services.ExitUsage},
		{"missing video", []string{"detect", filepath.Join(env.baseDir, "nope.mkv"), "--cuts-file", env.writeCuts(t, 1)}, services.ExitNotFound},
		{"bad start", []string{"detect", env.clip, "--cuts-file", env.writeCuts(t, 1), "--start", "1:2"}, services.ExitUsage},
		{"duration and end", []string{"detect", env.clip, "--cuts-file", env.writeCuts(t, 1), "--duration", "5", "--end", "10"}, services.ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, env.configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := services.ExitCode(err); code != tt.want {
				t.Fatalf("exit code = %d, want %d (%v)", code, tt.want, err)
			}
		})
	}
}

func TestProbeCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"probe", env.clip}, env.configPath)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	requireContains(t, out, "4x2")
	requireContains(t, out, "24.000")
	requireContains(t, out, "yuv420p")

	out, _, err = runCLI(t, []string{"probe", env.clip, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("probe --json: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode probe: %v", err)
	}
	if report["frames"] != float64(clipFrames) || report["auto_downscale_factor"] != float64(1) {
		t.Fatalf("unexpected probe report: %v", report)
	}
}

func TestDoctorPassesWithStubs(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "ffmpeg version 7.1-stub")
	requireContains(t, out, "All checks passed")
}
