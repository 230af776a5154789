package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	videoKey    contextKey = "video"
	detectorKey contextKey = "detector"
)

// WithRunID annotates context with the correlation id of a detection run.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run id if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithVideo annotates context with the input video path.
func WithVideo(ctx context.Context, path string) context.Context {
	return withString(ctx, videoKey, path)
}

// VideoFromContext returns the video path if present.
func VideoFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, videoKey)
}

// WithDetector annotates context with a detector name.
func WithDetector(ctx context.Context, name string) context.Context {
	return withString(ctx, detectorKey, name)
}

// DetectorFromContext returns the detector name if present.
func DetectorFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, detectorKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
