// Package main hosts the framecut CLI entrypoint and command graph.
//
// The Cobra command tree wires the detection core to real media: ffprobe
// supplies stream geometry, an ffmpeg subprocess supplies raw frames, and
// the SQLite stats database carries frame metrics between runs. Commands
// resolve configuration and logging once through commandContext so each
// subcommand only translates flags into detect options and renders results.
package main
