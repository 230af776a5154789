package logging

import (
	"context"
	"log/slog"

	"framecut/internal/services"
)

const (
	// FieldComponent names the package or subsystem emitting the line.
	FieldComponent = "component"
	// FieldRunID correlates every line of one detection run.
	FieldRunID = "run_id"
	// FieldVideo is the input video path.
	FieldVideo = "video"
	// FieldDetector names the detector a line concerns.
	FieldDetector = "detector"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if video, ok := services.VideoFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldVideo, video))
	}
	if detector, ok := services.DetectorFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDetector, detector))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
