// Package services defines the error markers and context helpers shared by
// the detection pipeline and the CLI.
//
// Wrap tags failures with a marker so the CLI can map them to exit codes via
// ExitCode. The context helpers stamp run ids, video paths and detector names
// that the logging package turns into structured fields.
package services
