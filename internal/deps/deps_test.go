package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present", "#!/bin/sh\nexit 0\n")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status: %#v", results[2])
	}
}

func TestCheckBinariesCapturesVersion(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 7.1 Copyright'\necho 'built with gcc'\n")
	broken := writeStub(t, binDir, "ffprobe", "#!/bin/sh\nexit 3\n")

	results := CheckBinaries(context.Background(), MediaRequirements(ffmpeg, broken))
	if results[0].Version != "ffmpeg version 7.1 Copyright" {
		t.Fatalf("version = %q", results[0].Version)
	}
	if !results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected available ffprobe with version failure detail, got %#v", results[1])
	}
}

func TestMissingSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "a", Available: true},
		{Name: "b"},
		{Name: "c", Optional: true},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "b" {
		t.Fatalf("Missing = %#v", missing)
	}
}
