package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"framecut/internal/config"
	"framecut/internal/services"
	"framecut/internal/stats"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var dbPath string

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Inspect and clear cached frame metrics",
	}
	statsCmd.PersistentFlags().StringVar(&dbPath, "stats", "", "Stats database (defaults to the configured stats_dir)")

	open := func() (*stats.DB, error) {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return nil, err
		}
		path := strings.TrimSpace(dbPath)
		if path == "" {
			path = cfg.StatsDBPath()
		}
		if path, err = config.ExpandPath(path); err != nil {
			return nil, services.Wrap(services.ErrValidation, "stats", "resolve path", "", err)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "stats", "open", fmt.Sprintf("no stats database at %s", path), err)
		}
		db, err := stats.OpenDB(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "stats", "open", path, err)
		}
		return db, nil
	}

	statsCmd.AddCommand(newStatsListCommand(open))
	statsCmd.AddCommand(newStatsShowCommand(open))
	statsCmd.AddCommand(newStatsClearCommand(open))
	return statsCmd
}

func newStatsListCommand(open func() (*stats.DB, error)) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos with cached metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			videos, err := db.Videos(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, videos)
			}
			out := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(out, "No cached videos")
				return nil
			}
			rows := make([][]string, 0, len(videos))
			for _, v := range videos {
				rows = append(rows, []string{
					displayVideoKey(v.Key),
					formatFPS(v.FPS),
					formatCount(v.Frames),
					strings.Join(v.Metrics, ", "),
					v.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(db.Path(),
				[]string{"Video", "FPS", "Frames", "Metrics", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newStatsShowCommand(open func() (*stats.DB, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <video>",
		Short: "Print cached metric values for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()

			key, err := resolveVideoKey(db, cmd, args[0])
			if err != nil {
				return err
			}
			store, found, err := db.LoadStore(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !found {
				return services.Wrap(services.ErrNotFound, "stats", "show", fmt.Sprintf("no cached metrics for %s", args[0]), nil)
			}

			keys := store.Keys()
			frames := store.Frames()
			shown := frames
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			rows := make([][]string, 0, len(shown))
			for _, f := range shown {
				row := []string{formatCount(f)}
				for _, k := range keys {
					if v, ok := store.Metrics(f, k); ok {
						row = append(row, strconv.FormatFloat(v[0], 'g', 6, 64))
					} else {
						row = append(row, "")
					}
				}
				rows = append(rows, row)
			}
			aligns := slices.Repeat([]columnAlignment{alignRight}, len(keys)+1)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(displayVideoKey(key), append([]string{"Frame"}, keys...), rows, aligns))
			if len(shown) < len(frames) {
				fmt.Fprintf(out, "Showing %s of %s frames (use --limit 0 for all)\n", formatCount(len(shown)), formatCount(len(frames)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum frames to print (0 for all)")
	return cmd
}

func newStatsClearCommand(open func() (*stats.DB, error)) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [video]",
		Short: "Delete cached metrics for one video or all videos",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return services.Wrap(services.ErrValidation, "stats", "clear", "pass a video or --all", nil)
			}
			db, err := open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Lock(); err != nil {
				return services.Wrap(services.ErrValidation, "stats", "lock", "another run is using this database", err)
			}

			out := cmd.OutOrStdout()
			if all {
				n, err := db.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %s cached videos\n", formatCount(int(n)))
				return nil
			}
			key, err := resolveVideoKey(db, cmd, args[0])
			if err != nil {
				return err
			}
			removed, err := db.DeleteVideo(cmd.Context(), key)
			if err != nil {
				return err
			}
			if !removed {
				return services.Wrap(services.ErrNotFound, "stats", "clear", fmt.Sprintf("no cached metrics for %s", args[0]), nil)
			}
			fmt.Fprintf(out, "Cleared cached metrics for %s\n", displayVideoKey(key))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every cached video")
	return cmd
}

// resolveVideoKey accepts a video path, an exact stored key, or a path
// whose file changed since it was cached when exactly one stored key
// matches it.
func resolveVideoKey(db *stats.DB, cmd *cobra.Command, arg string) (string, error) {
	if path, err := config.ExpandPath(arg); err == nil {
		if key, err := stats.VideoKey(path); err == nil {
			if _, found, err := db.LoadStore(cmd.Context(), key); err == nil && found {
				return key, nil
			}
		}
		arg = path
	}
	videos, err := db.Videos(cmd.Context())
	if err != nil {
		return "", err
	}
	var matches []string
	for _, v := range videos {
		if v.Key == arg {
			return v.Key, nil
		}
		if videoPath(v.Key) == arg {
			matches = append(matches, v.Key)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return "", services.Wrap(services.ErrValidation, "stats", "resolve video",
			fmt.Sprintf("%s matches %d cached versions; pass the full key", arg, len(matches)), nil)
	}
	return "", services.Wrap(services.ErrNotFound, "stats", "resolve video", fmt.Sprintf("no cached metrics for %s", arg), nil)
}

// videoPath strips the size and mtime suffix VideoKey appends.
func videoPath(key string) string {
	parts := strings.Split(key, "|")
	if len(parts) < 3 {
		return key
	}
	return strings.Join(parts[:len(parts)-2], "|")
}

func displayVideoKey(key string) string {
	return videoPath(key)
}
