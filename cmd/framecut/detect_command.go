package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"framecut/internal/config"
	"framecut/internal/detect"
	"framecut/internal/detectors/cutfile"
	"framecut/internal/detectors/metricgate"
	"framecut/internal/fileutil"
	"framecut/internal/logging"
	"framecut/internal/media/ffmpegsrc"
	"framecut/internal/metrics"
	"framecut/internal/progress"
	"framecut/internal/scenelist"
	"framecut/internal/services"
	"framecut/internal/stats"
	"framecut/internal/timecode"
)

const defaultGateMinLen = 15

type detectFlags struct {
	cutsFile   string
	metric     string
	threshold  float64
	gateMinLen int

	start    string
	duration string
	end      string

	frameSkip     int
	downscale     float64
	minSceneLen   int
	mergeLen      int
	mergeMaxGap   int
	contractStart int
	contractEnd   int
	minCutSpacing int
	noEnd         bool

	statsPath   string
	jsonOutput  bool
	noProgress  bool
	metricsFile string
	writeCuts   string
	parallel    bool
}

type sceneRow struct {
	Index  int               `json:"index"`
	Start  timecode.Timecode `json:"start"`
	End    timecode.Timecode `json:"end"`
	Frames int               `json:"frames"`
}

type detectReport struct {
	RunID     string              `json:"run_id"`
	Video     videoInfo           `json:"video"`
	Processed int                 `json:"frames_processed"`
	Scenes    []sceneRow          `json:"scenes"`
	Cuts      []timecode.Timecode `json:"cuts"`
	StatsDB   string              `json:"stats_db,omitempty"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var flags detectFlags

	cmd := &cobra.Command{
		Use:   "detect <video>",
		Short: "Detect scene boundaries in a video",
		Long: `Detect runs the selected detectors over every frame of a video and prints
the resulting scene list and cut list.

Detectors:
  --cuts-file FILE          replay a scene-change list, one frame number per line
  --metric KEY --threshold  cut where a cached metric reaches the threshold

Metric replay reads values from the stats database without decoding any
frames. Frames with no cached value never produce a cut.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			applyDetectDefaults(cmd, cfg, &flags)
			return runDetect(cmd, cfg, logger, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.cutsFile, "cuts-file", "", "Scene-change list to replay as cuts")
	f.StringVar(&flags.metric, "metric", "", "Cached metric key to threshold")
	f.Float64Var(&flags.threshold, "threshold", 0, "Metric value at or above which a cut is emitted")
	f.IntVar(&flags.gateMinLen, "gate-min-len", defaultGateMinLen, "Minimum frames between metric cuts")
	f.StringVar(&flags.start, "start", "", "Start position (HH:MM:SS[.nnn], frames, or seconds with s suffix)")
	f.StringVar(&flags.duration, "duration", "", "Length to process, same formats as --start")
	f.StringVar(&flags.end, "end", "", "Absolute end position, same formats as --start")
	f.IntVar(&flags.frameSkip, "frame-skip", 0, "Frames skipped after each processed frame")
	f.Float64Var(&flags.downscale, "downscale", 0, "Explicit downscale factor (0 uses auto-downscale)")
	f.IntVar(&flags.minSceneLen, "min-scene-len", 0, "Drop scenes shorter than this many frames")
	f.IntVar(&flags.mergeLen, "merge-len", 0, "Merge scenes shorter than this many frames into a neighbour")
	f.IntVar(&flags.mergeMaxGap, "merge-max-gap", 0, "Largest gap in frames bridged by --merge-len")
	f.IntVar(&flags.contractStart, "contract-start", 0, "Move each scene start forward by this many frames")
	f.IntVar(&flags.contractEnd, "contract-end", 0, "Move each scene end back by this many frames")
	f.IntVar(&flags.minCutSpacing, "min-cut-spacing", detect.DefaultMinCutSpacing, "Minimum frames between listed cuts")
	f.BoolVar(&flags.noEnd, "no-end", false, "End the scene list at the last event instead of the end of the video")
	f.StringVar(&flags.statsPath, "stats", "", "Stats database for metric caching (defaults to the configured stats_dir)")
	f.BoolVar(&flags.jsonOutput, "json", false, "Emit JSON instead of tables")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Disable progress output")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics after the run")
	f.StringVar(&flags.writeCuts, "write-cuts", "", "Write the cut list in --cuts-file format")
	f.BoolVar(&flags.parallel, "parallel", false, "Run detectors for one frame concurrently")
	return cmd
}

// applyDetectDefaults fills unset flags from the [detection] section.
func applyDetectDefaults(cmd *cobra.Command, cfg *config.Config, flags *detectFlags) {
	d := cfg.Detection
	changed := cmd.Flags().Changed
	if !changed("frame-skip") {
		flags.frameSkip = d.FrameSkip
	}
	if !changed("downscale") {
		flags.downscale = d.Downscale
	}
	if !changed("min-scene-len") {
		flags.minSceneLen = d.MinSceneLen
	}
	if !changed("merge-len") {
		flags.mergeLen = d.MergeLen
	}
	if !changed("merge-max-gap") {
		flags.mergeMaxGap = d.MergeMaxGap
	}
	if !changed("min-cut-spacing") {
		flags.minCutSpacing = d.MinCutSpacing
	}
	if !changed("no-end") {
		flags.noEnd = !d.AlwaysIncludeEnd
	}
	if !changed("parallel") {
		flags.parallel = d.ParallelDispatch
	}
	if !changed("no-progress") {
		flags.noProgress = !d.ShowProgress
	}
}

func runDetect(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, path string, flags detectFlags) error {
	path, err := config.ExpandPath(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "detect", "resolve path", "", err)
	}
	if flags.cutsFile == "" && flags.metric == "" {
		return services.Wrap(services.ErrValidation, "detect", "select detectors",
			"pass --cuts-file or --metric", nil)
	}
	if flags.contractStart < 0 || flags.contractEnd < 0 {
		return services.Wrap(services.ErrValidation, "detect", "contract",
			"--contract-start and --contract-end must not be negative", nil)
	}

	runID := uuid.NewString()
	ctx := services.WithRunID(cmd.Context(), runID)
	ctx = services.WithVideo(ctx, path)
	logger = logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldVideo, path),
	)

	info, err := probeVideo(ctx, newProber(cfg), path)
	if err != nil {
		return err
	}

	window, err := parseWindow(flags, info.FPS)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	observer, err := metrics.NewDetection(registry)
	if err != nil {
		return err
	}

	var (
		db       *stats.DB
		store    *stats.Store
		videoKey string
	)
	if flags.metric != "" || flags.statsPath != "" {
		db, store, videoKey, err = openStats(ctx, cfg, flags.statsPath, path, logger)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.Warn("close stats database", logging.Error(cerr))
			}
		}()
	}

	opts := []detect.Option{
		detect.WithLogger(logger),
		detect.WithObserver(observer),
		detect.WithParallelDispatch(flags.parallel),
		detect.WithMinWidth(cfg.Detection.MinWidth),
	}
	if store != nil {
		opts = append(opts, detect.WithStore(store))
	}
	manager := detect.NewManager(opts...)
	if err := configureDownscale(manager, cfg, flags); err != nil {
		return err
	}
	if err := addDetectors(manager, flags, logger); err != nil {
		return err
	}

	source, err := ffmpegsrc.Open(ctx, ffmpegsrc.Options{
		FFmpeg:   cfg.FFmpegBinary(),
		Path:     path,
		Width:    info.Width,
		Height:   info.Height,
		FPS:      info.FPS,
		Duration: info.Frames,
		Start:    window.start,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	runOpts := detect.DetectOptions{
		Duration:  window.duration,
		EndTime:   window.end,
		FrameSkip: flags.frameSkip,
	}
	if !flags.noProgress {
		runOpts.Progress = progress.Factory(cfg, cmd.ErrOrStderr(), logger)
	}

	processed, err := manager.DetectScenes(ctx, source, runOpts)
	if err != nil {
		if errors.Is(err, detect.ErrInvalidArgument) {
			return services.Wrap(services.ErrValidation, "detect", "run", "", err)
		}
		return err
	}

	if db != nil {
		if err := db.SaveStore(ctx, videoKey, info.FPS, store); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
		logger.Info("stats saved",
			logging.String("stats_db", db.Path()),
			logging.Int("frames", store.Len()),
		)
	}

	scenes := manager.SceneList(!flags.noEnd)
	scenes = scenelist.Drop(scenes, flags.minSceneLen)
	if flags.mergeLen > 0 {
		scenes = scenelist.Merge(scenes, flags.mergeLen, flags.mergeMaxGap)
	}
	if flags.contractStart > 0 || flags.contractEnd > 0 {
		scenes = scenelist.Contract(scenes, flags.contractStart, flags.contractEnd)
	}
	cuts := manager.CutList(flags.minCutSpacing)

	if flags.writeCuts != "" {
		if err := writeCutList(flags.writeCuts, path, info.FPS, cuts); err != nil {
			return err
		}
	}
	if flags.metricsFile != "" {
		if err := metrics.WriteTextfile(registry, flags.metricsFile); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run results are unaffected"),
				logging.String(logging.FieldErrorHint, "check that the --metrics-file directory is writable"),
			)
		}
	}

	report := detectReport{
		RunID:     runID,
		Video:     info,
		Processed: processed,
		Scenes:    sceneRows(scenes),
		Cuts:      cuts,
	}
	if db != nil {
		report.StatsDB = db.Path()
	}
	if flags.jsonOutput {
		return writeJSON(cmd, report)
	}
	printDetectReport(cmd, report)
	return nil
}

type detectWindow struct {
	start    int
	duration *int
	end      *int
}

func parseWindow(flags detectFlags, fps float64) (detectWindow, error) {
	var w detectWindow
	parse := func(name, value string) (int, error) {
		tc, err := timecode.Parse(value, fps)
		if err != nil {
			return 0, services.Wrap(services.ErrValidation, "detect", "--"+name, "", err)
		}
		return tc.Frame(), nil
	}
	if flags.duration != "" && flags.end != "" {
		return w, services.Wrap(services.ErrValidation, "detect", "window", "--duration and --end are mutually exclusive", nil)
	}
	if flags.start != "" {
		n, err := parse("start", flags.start)
		if err != nil {
			return w, err
		}
		w.start = n
	}
	if flags.duration != "" {
		n, err := parse("duration", flags.duration)
		if err != nil {
			return w, err
		}
		w.duration = detect.Frames(n)
	}
	if flags.end != "" {
		n, err := parse("end", flags.end)
		if err != nil {
			return w, err
		}
		if n <= w.start {
			return w, services.Wrap(services.ErrValidation, "detect", "--end", "end must be after start", nil)
		}
		w.end = detect.Frames(n)
	}
	return w, nil
}

func openStats(ctx context.Context, cfg *config.Config, statsPath, video string, logger *slog.Logger) (*stats.DB, *stats.Store, string, error) {
	if statsPath == "" {
		statsPath = cfg.StatsDBPath()
	}
	statsPath, err := config.ExpandPath(statsPath)
	if err != nil {
		return nil, nil, "", services.Wrap(services.ErrValidation, "stats", "resolve path", "", err)
	}
	key, err := stats.VideoKey(video)
	if err != nil {
		return nil, nil, "", services.Wrap(services.ErrNotFound, "stats", "video key", video, err)
	}
	db, err := stats.OpenDB(statsPath)
	if err != nil {
		return nil, nil, "", services.Wrap(services.ErrConfiguration, "stats", "open", statsPath, err)
	}
	if err := db.Lock(); err != nil {
		_ = db.Close()
		return nil, nil, "", services.Wrap(services.ErrValidation, "stats", "lock", "another run is using this database", err)
	}
	store, found, err := db.LoadStore(ctx, key)
	if err != nil {
		_ = db.Close()
		return nil, nil, "", err
	}
	logger.Info("stats loaded",
		logging.String("stats_db", statsPath),
		logging.Bool("cached", found),
		logging.Int("frames", store.Len()),
	)
	return db, store, key, nil
}

func configureDownscale(m *detect.Manager, cfg *config.Config, flags detectFlags) error {
	if flags.downscale > 0 {
		m.SetAutoDownscale(false)
		if err := m.SetDownscale(flags.downscale); err != nil {
			return services.Wrap(services.ErrValidation, "detect", "--downscale", "", err)
		}
		return nil
	}
	m.SetAutoDownscale(cfg.Detection.AutoDownscale)
	return nil
}

func addDetectors(m *detect.Manager, flags detectFlags, logger *slog.Logger) error {
	if flags.cutsFile != "" {
		frames, err := cutfile.Load(flags.cutsFile)
		if err != nil {
			return services.Wrap(services.ErrValidation, "detect", "--cuts-file", "", err)
		}
		if err := m.AddDetector(cutfile.New(frames)); err != nil {
			return err
		}
	}
	if flags.metric != "" {
		gate, err := metricgate.New(flags.metric, flags.threshold, flags.gateMinLen, metricgate.WithLogger(logger))
		if err != nil {
			return services.Wrap(services.ErrValidation, "detect", "--metric", "", err)
		}
		if err := m.AddDetector(gate); err != nil {
			return err
		}
	}
	return nil
}

func writeCutList(target, video string, fps float64, cuts []timecode.Timecode) error {
	frames := make([]int, 0, len(cuts))
	for _, c := range cuts {
		frames = append(frames, c.Frame())
	}
	var buf bytes.Buffer
	header := fmt.Sprintf("framecut cut list for %s\nfps %s", filepath.Base(video), formatFPS(fps))
	if err := cutfile.Write(&buf, header, frames); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(target, &buf, 0o644); err != nil {
		return fmt.Errorf("write cut list: %w", err)
	}
	return nil
}

func sceneRows(scenes []detect.Scene) []sceneRow {
	rows := make([]sceneRow, 0, len(scenes))
	for i, s := range scenes {
		rows = append(rows, sceneRow{Index: i + 1, Start: s.Start, End: s.End, Frames: s.Len()})
	}
	return rows
}

func printDetectReport(cmd *cobra.Command, report detectReport) {
	out := cmd.OutOrStdout()
	if len(report.Scenes) == 0 {
		fmt.Fprintln(out, "No scenes detected")
	} else {
		rows := make([][]string, 0, len(report.Scenes))
		for _, s := range report.Scenes {
			rows = append(rows, []string{
				formatCount(s.Index),
				s.Start.String(),
				s.End.String(),
				formatCount(s.Start.Frame()),
				formatCount(s.End.Frame()),
				formatCount(s.Frames),
			})
		}
		title := fmt.Sprintf("%s · %s frames", filepath.Base(report.Video.Path), formatCount(report.Processed))
		fmt.Fprintln(out, renderTable(title,
			[]string{"#", "Start", "End", "Start Frame", "End Frame", "Length"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
		))
	}

	if len(report.Cuts) == 0 {
		fmt.Fprintln(out, "Cuts: none")
		return
	}
	parts := make([]string, 0, len(report.Cuts))
	for _, c := range report.Cuts {
		parts = append(parts, c.String())
	}
	fmt.Fprintf(out, "Cuts (%s): %s\n", formatCount(len(report.Cuts)), strings.Join(parts, ", "))
}
