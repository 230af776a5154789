package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framecut/internal/testsupport"
)

const (
	clipWidth  = 4
	clipHeight = 2
	clipFrames = 48
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	statsDir   string
	clip       string
	ffmpegArgs string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	binDir := filepath.Join(base, "bin")
	argsLog := filepath.Join(base, "ffmpeg-args.log")

	versionCase := `case "$*" in *-version*) echo "%s version 7.1-stub"; exit 0;; esac` + "\n"
	ffprobe := testsupport.WriteScript(t, binDir, "ffprobe", "#!/bin/sh\n"+
		fmt.Sprintf(versionCase, "ffprobe")+
		`cat <<'JSON'
{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","width":4,"height":2,"pix_fmt":"yuv420p","avg_frame_rate":"24/1","r_frame_rate":"24/1","nb_frames":"48"}],
 "format":{"filename":"clip.mkv","nb_streams":1,"duration":"2.000000","size":"2048","format_name":"matroska"}}
JSON
`)
	ffmpeg := testsupport.WriteScript(t, binDir, "ffmpeg", "#!/bin/sh\n"+
		fmt.Sprintf(versionCase, "ffmpeg")+
		fmt.Sprintf("echo \"$@\" >> '%s'\n", argsLog)+
		fmt.Sprintf("head -c %d /dev/zero\n", clipWidth*clipHeight*3*clipFrames))

	statsDir := filepath.Join(base, "stats")
	configPath := filepath.Join(base, "config.toml")
	configBody := fmt.Sprintf(`[paths]
stats_dir = %q
log_dir = %q

[detection]
show_progress = false

[media]
ffmpeg_binary = %q
ffprobe_binary = %q

[logging]
level = "error"
`, statsDir, filepath.Join(base, "logs"), ffmpeg, ffprobe)
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clip := testsupport.WriteFile(t, filepath.Join(base, "media", "clip.mkv"), 2048)

	return &cliTestEnv{
		baseDir:    base,
		configPath: configPath,
		statsDir:   statsDir,
		clip:       clip,
		ffmpegArgs: argsLog,
	}
}

func (e *cliTestEnv) writeCuts(t *testing.T, frames ...int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("# test cuts\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "%d\n", f)
	}
	path := filepath.Join(e.baseDir, "cuts.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write cuts: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}
