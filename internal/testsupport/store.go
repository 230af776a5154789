package testsupport

import (
	"testing"

	"framecut/internal/config"
	"framecut/internal/stats"
)

// MustOpenStatsDB opens the config's stats database and registers cleanup.
func MustOpenStatsDB(t testing.TB, cfg *config.Config) *stats.DB {
	t.Helper()

	db, err := stats.OpenDB(cfg.StatsDBPath())
	if err != nil {
		t.Fatalf("open stats db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
