package detect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"framecut/internal/frame"
	"framecut/internal/logging"
	"framecut/internal/timecode"
)

// DetectOptions bounds a run. Duration and EndTime are frame counts; at
// most one may be set.
type DetectOptions struct {
	// Duration limits the run to this many frames past the current position.
	Duration *int
	// EndTime is an absolute frame at which the run stops.
	EndTime *int
	// FrameSkip advances this many extra frames after each processed frame.
	// It cannot be combined with a metric store.
	FrameSkip int
	Progress  ProgressFactory
	Callback  FrameCallback
}

// Frames is a helper for the optional frame fields of DetectOptions.
func Frames(n int) *int {
	return &n
}

// DetectScenes feeds frames from source to every registered detector until
// the source ends or the requested bound is reached, then runs each
// detector's post-processing. It returns the number of frames advanced.
func (m *Manager) DetectScenes(ctx context.Context, source frame.Source, opts DetectOptions) (int, error) {
	if err := m.validateRun(source, opts); err != nil {
		return 0, err
	}

	started := time.Now()
	startFrame := source.FrameNumber()
	base := source.BaseTimecode()

	var end *timecode.Timecode
	switch {
	case opts.Duration != nil:
		tc := base.Add(*opts.Duration + startFrame)
		end = &tc
	case opts.EndTime != nil:
		tc := base.Add(*opts.EndTime)
		end = &tc
	}

	total := expectedFrames(source, startFrame, end)
	factor := m.effectiveDownscale(source)

	openProgress := opts.Progress
	if openProgress == nil {
		openProgress = func(int) Progress { return nopProgress{} }
	}
	progress := openProgress(total)
	defer func() {
		if err := progress.Close(); err != nil {
			m.logger.Debug("progress close failed", logging.Error(err))
		}
	}()

	m.logger.Info("detection started",
		logging.Int("start_frame", startFrame),
		logging.Int("expected_frames", total),
		logging.Int("detectors", len(m.detectors)),
		logging.Int("downscale", factor),
		logging.Int("frame_skip", opts.FrameSkip),
	)

	if err := m.runLoop(ctx, source, opts, end, factor, progress); err != nil {
		return 0, err
	}

	if m.startPos == nil {
		pos := source.Position()
		m.startPos = &pos
	}
	if err := m.postProcess(*m.startPos, source.Position()); err != nil {
		return 0, err
	}

	last := source.Position()
	m.lastPos = &last
	advanced := source.FrameNumber() - startFrame
	m.observer.RunFinished(advanced, time.Since(started))
	m.logger.Info("detection finished",
		logging.Int("frames", advanced),
		logging.Int("event_timecodes", len(m.events)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return advanced, nil
}

func (m *Manager) validateRun(source frame.Source, opts DetectOptions) error {
	if source == nil {
		return fmt.Errorf("%w: nil frame source", ErrInvalidArgument)
	}
	if opts.Duration != nil && opts.EndTime != nil {
		return fmt.Errorf("%w: duration and end time cannot both be set", ErrInvalidArgument)
	}
	if opts.Duration != nil && *opts.Duration < 0 {
		return fmt.Errorf("%w: duration %d must not be negative", ErrInvalidArgument, *opts.Duration)
	}
	if opts.EndTime != nil && *opts.EndTime < 0 {
		return fmt.Errorf("%w: end time %d must not be negative", ErrInvalidArgument, *opts.EndTime)
	}
	if opts.FrameSkip < 0 {
		return fmt.Errorf("%w: frame skip %d must not be negative", ErrInvalidArgument, opts.FrameSkip)
	}
	if opts.FrameSkip > 0 && m.store != nil {
		return fmt.Errorf("%w: frame skip cannot be used with a metric store", ErrInvalidArgument)
	}
	return nil
}

func expectedFrames(source frame.Source, startFrame int, end *timecode.Timecode) int {
	duration, ok := source.Duration()
	if !ok {
		return 0
	}
	if end != nil && end.Before(duration) {
		return end.Frame() - startFrame + 1
	}
	return max(duration.Frame()-startFrame, 0)
}

func (m *Manager) runLoop(ctx context.Context, source frame.Source, opts DetectOptions, end *timecode.Timecode, factor int, progress Progress) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := source.FrameNumber()
		var current *frame.Frame
		if m.processingRequired(next) || m.processingRequired(next+1) {
			f, err := source.Read(true)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("decode frame %d: %w", next, err)
			}
			current = frame.Subsample(f, factor)
			m.observer.FrameDecoded()
		} else {
			if _, err := source.Read(false); errors.Is(err, io.EOF) {
				return nil
			} else if err != nil {
				return fmt.Errorf("skip frame %d: %w", next, err)
			}
			m.observer.FrameSkipped()
		}

		position := source.Position()
		if m.startPos == nil {
			m.startPos = &position
		}

		if err := m.processFrame(position, current, opts.Callback); err != nil {
			return err
		}
		progress.Add(1)

		for i := 0; i < opts.FrameSkip; i++ {
			if err := source.Grab(); errors.Is(err, io.EOF) {
				break
			} else if err != nil {
				return fmt.Errorf("grab frame %d: %w", source.FrameNumber(), err)
			}
			m.observer.FrameSkipped()
			progress.Add(1)
		}

		if end != nil && source.Position().Compare(*end) >= 0 {
			return nil
		}
	}
}

// processingRequired reports whether frameNum must be decoded. Without a
// store every frame is decoded; with one, any detector missing cached
// metrics for the frame forces a decode.
func (m *Manager) processingRequired(frameNum int) bool {
	if m.store == nil {
		return true
	}
	for _, d := range m.detectors {
		if d.IsProcessingRequired(frameNum) {
			return true
		}
	}
	return false
}

func (m *Manager) processFrame(position timecode.Timecode, f *frame.Frame, callback FrameCallback) error {
	results, err := m.dispatch(position, f)
	if err != nil {
		return err
	}
	for _, events := range results {
		if len(events) == 0 {
			continue
		}
		m.record(events)
		if callback != nil {
			callback(f, position.Frame())
		}
	}
	return nil
}

// dispatch returns each detector's events in registration order.
func (m *Manager) dispatch(position timecode.Timecode, f *frame.Frame) ([][]Event, error) {
	results := make([][]Event, len(m.detectors))
	if !m.parallel || len(m.detectors) < 2 {
		for i, d := range m.detectors {
			events, err := d.ProcessFrame(position, f)
			if err != nil {
				return nil, fmt.Errorf("detector %d: frame %d: %w", i, position.Frame(), err)
			}
			results[i] = events
		}
		return results, nil
	}

	var g errgroup.Group
	for i, d := range m.detectors {
		g.Go(func() error {
			events, err := d.ProcessFrame(position, f)
			if err != nil {
				return fmt.Errorf("detector %d: frame %d: %w", i, position.Frame(), err)
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *Manager) postProcess(start, end timecode.Timecode) error {
	for i, d := range m.detectors {
		events, err := d.PostProcess(start, end)
		if err != nil {
			return fmt.Errorf("detector %d: post-process: %w", i, err)
		}
		m.record(events)
	}
	return nil
}

func (m *Manager) record(events []Event) {
	if len(events) == 0 {
		return
	}
	m.AddEvents(events...)
	counts := make(map[EventKind]int, 3)
	for _, ev := range events {
		counts[ev.Kind]++
	}
	for kind, n := range counts {
		m.observer.EventsEmitted(kind, n)
	}
}
