package preflight

import (
	"context"

	"framecut/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config. Binary
// checks are reported separately by CheckSystemDeps.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Stats directory (always checked)
	results = append(results, CheckDirectoryAccess("Stats directory", cfg.Paths.StatsDir))

	// Log directory (when configured)
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckStatsDB(ctx, cfg.StatsDBPath()))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
