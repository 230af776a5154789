package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"framecut/internal/config"
	"framecut/internal/deps"
	"framecut/internal/stats"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStatsDB opens the metric cache read-only in spirit: a missing file
// passes without being created, an existing one must carry the current
// schema and must not be locked by a running detection.
func CheckStatsDB(ctx context.Context, path string) Result {
	const name = "Stats database"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}
	db, err := stats.OpenDB(path)
	if err != nil {
		if errors.Is(err, stats.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema mismatch, run stats clear --all or delete the file)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer func() { _ = db.Close() }()

	if err := db.Lock(); err != nil {
		if errors.Is(err, stats.ErrStoreLocked) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: locked by another run)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	videos, err := db.Videos(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d cached videos)", path, len(videos))}
}

// CheckSystemDeps evaluates the media binaries configured in cfg.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, deps.MediaRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}
