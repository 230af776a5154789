// Package stats caches per-frame detector metrics in memory and persists
// them to SQLite so repeat runs over the same video can skip decoding.
package stats
