package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"framecut/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
	if err := services.Wrap(nil, "", "", "", nil); !errors.Is(err, services.ErrTransient) || !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("unexpected default wrap: %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, services.ExitOK},
		{errors.New("plain"), services.ExitFailure},
		{services.Wrap(services.ErrValidation, "detect", "flags", "bad", nil), services.ExitUsage},
		{services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil), services.ExitUsage},
		{services.Wrap(services.ErrNotFound, "stats", "show", "missing", nil), services.ExitNotFound},
		{services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "exit 1", nil), services.ExitExternalTool},
		{fmt.Errorf("run: %w", context.DeadlineExceeded), services.ExitTimeout},
		{fmt.Errorf("run: %w", context.Canceled), services.ExitInterrupted},
	}
	for _, tt := range tests {
		if got := services.ExitCode(tt.err); got != tt.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
