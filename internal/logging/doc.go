// Package logging assembles the slog loggers used by framecut.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context helpers that tag lines with the run id, video and detector of the
// current detection run. A no-op logger backs library code that is handed
// no logger.
package logging
