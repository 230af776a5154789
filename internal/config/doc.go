// Package config loads, normalizes and validates the framecut TOML
// configuration.
//
// Load searches ~/.config/framecut/config.toml and then ./framecut.toml,
// starting from Default so a missing file still yields a usable config.
// Paths are expanded to absolute form and FRAMECUT_LOG_LEVEL overrides the
// configured log level.
package config
