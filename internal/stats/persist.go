package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// VideoSummary describes one cached video.
type VideoSummary struct {
	Key       string    `json:"key"`
	FPS       float64   `json:"fps"`
	Frames    int       `json:"frames"`
	Metrics   []string  `json:"metrics"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VideoKey identifies a video file by absolute path, size and modification
// time so stale metrics are not reused after the file changes.
func VideoKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", abs, err)
	}
	return fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

// SaveStore writes every cached value of s under videoKey, replacing values
// for the same frame and metric.
func (d *DB) SaveStore(ctx context.Context, videoKey string, fps float64, s *Store) error {
	videoKey = strings.TrimSpace(videoKey)
	if videoKey == "" {
		return errors.New("save stats: empty video key")
	}
	if s == nil {
		return errors.New("save stats: nil store")
	}
	return retryOnBusy(ctx, func() error {
		return d.saveStoreTx(ctx, videoKey, fps, s)
	})
}

func (d *DB) saveStoreTx(ctx context.Context, videoKey string, fps float64, s *Store) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO videos (video_key, fps, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(video_key) DO UPDATE SET fps = excluded.fps, updated_at = excluded.updated_at`,
		videoKey, fps, now,
	); err != nil {
		return fmt.Errorf("upsert video: %w", err)
	}

	var videoID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM videos WHERE video_key = ?", videoKey).Scan(&videoID); err != nil {
		return fmt.Errorf("lookup video id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frame_metrics (video_id, frame, metric, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(video_id, frame, metric) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare metric insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, frame := range s.Frames() {
		for key, value := range s.snapshot(frame) {
			if _, err := stmt.ExecContext(ctx, videoID, frame, key, value); err != nil {
				return fmt.Errorf("insert metric %s at frame %d: %w", key, frame, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// LoadStore reads the cached values of videoKey into a new Store. found is
// false when the video has never been saved.
func (d *DB) LoadStore(ctx context.Context, videoKey string) (store *Store, found bool, err error) {
	var videoID int64
	err = d.db.QueryRowContext(ctx, "SELECT id FROM videos WHERE video_key = ?", videoKey).Scan(&videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewStore(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup video: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT frame, metric, value FROM frame_metrics WHERE video_id = ? ORDER BY frame", videoID)
	if err != nil {
		return nil, false, fmt.Errorf("query metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	store = NewStore()
	for rows.Next() {
		var (
			frame  int
			metric string
			value  float64
		)
		if err := rows.Scan(&frame, &metric, &value); err != nil {
			return nil, false, fmt.Errorf("scan metric row: %w", err)
		}
		store.SetMetrics(frame, map[string]float64{metric: value})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate metrics: %w", err)
	}
	return store, true, nil
}

// Videos lists every cached video, most recently updated first.
func (d *DB) Videos(ctx context.Context) ([]VideoSummary, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT v.video_key, v.fps, v.updated_at,
		       COUNT(DISTINCT m.frame),
		       COALESCE(GROUP_CONCAT(DISTINCT m.metric), '')
		FROM videos v
		LEFT JOIN frame_metrics m ON m.video_id = v.id
		GROUP BY v.id
		ORDER BY v.updated_at DESC, v.video_key`)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []VideoSummary
	for rows.Next() {
		var (
			summary VideoSummary
			updated string
			metrics string
		)
		if err := rows.Scan(&summary.Key, &summary.FPS, &updated, &summary.Frames, &metrics); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, updated); parseErr == nil {
			summary.UpdatedAt = ts
		}
		if metrics != "" {
			summary.Metrics = strings.Split(metrics, ",")
			slices.Sort(summary.Metrics)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// DeleteVideo removes a cached video and its metrics. It reports whether a
// row was removed.
func (d *DB) DeleteVideo(ctx context.Context, videoKey string) (bool, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := d.db.ExecContext(ctx, "DELETE FROM videos WHERE video_key = ?", videoKey)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	return removed > 0, nil
}

// DeleteAll removes every cached video.
func (d *DB) DeleteAll(ctx context.Context) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := d.db.ExecContext(ctx, "DELETE FROM videos")
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("delete videos: %w", err)
	}
	return removed, nil
}
