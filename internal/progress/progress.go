// Package progress renders per-frame detection progress either as a
// terminal bar or as sampled log lines.
package progress

import (
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"framecut/internal/config"
	"framecut/internal/detect"
	"framecut/internal/logging"
)

// unknownTotalInterval is how many frames pass between log lines when the
// source length is unknown.
const unknownTotalInterval = 1000

// Bar draws a terminal progress bar.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar writes a bar for total frames to w, drawn at zero straight away. A
// total of 0 draws a spinner.
func NewBar(total int, w io.Writer) *Bar {
	limit := total
	if limit <= 0 {
		limit = -1
	}
	return &Bar{bar: progressbar.NewOptions(limit,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("detecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)}
}

// Add advances the bar by n frames.
func (b *Bar) Add(n int) {
	_ = b.bar.Add(n)
}

// Close finishes and clears the bar.
func (b *Bar) Close() error {
	return b.bar.Finish()
}

// Log reports progress through a logger, thinned by a ProgressSampler.
type Log struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	total   int
	done    int
	started time.Time
}

// NewLog logs progress for a run of total frames. A total of 0 logs every
// few thousand frames instead of by percentage.
func NewLog(logger *slog.Logger, total int) *Log {
	return &Log{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(10),
		total:   max(total, 0),
		started: time.Now(),
	}
}

func (l *Log) Add(n int) {
	l.done += n
	if l.total == 0 {
		if l.done/unknownTotalInterval > (l.done-n)/unknownTotalInterval {
			l.logger.Info("detection progress", logging.Int("frames", l.done))
		}
		return
	}
	percent := float64(l.done) / float64(l.total) * 100
	if l.sampler.ShouldLog(percent, "detect") {
		l.logger.Info("detection progress",
			logging.Int("frames", l.done),
			logging.Int("total", l.total),
			logging.Float64("percent", math.Round(percent*10)/10),
		)
	}
}

// Close logs the final frame count.
func (l *Log) Close() error {
	l.logger.Debug("detection progress complete",
		logging.Int("frames", l.done),
		logging.Duration("elapsed", time.Since(l.started)),
	)
	return nil
}

type nop struct{}

func (nop) Add(int) {}

func (nop) Close() error { return nil }

// Factory picks a progress reporter for each run. Progress disabled in cfg
// yields a no-op, a terminal w yields a Bar, anything else a Log.
func Factory(cfg *config.Config, w io.Writer, logger *slog.Logger) detect.ProgressFactory {
	show := cfg == nil || cfg.Detection.ShowProgress
	terminal := IsTerminal(w)
	return func(total int) detect.Progress {
		switch {
		case !show:
			return nop{}
		case terminal:
			return NewBar(total, w)
		default:
			return NewLog(logger, total)
		}
	}
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
